package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
)

//TxSender broadcasts a signed transaction, as ethclient.Client does.
type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

//EOA signs orders and transactions for one account. Transactions are signed and sent under
//a lock so nonces stay in order.
type EOA struct {
	Address    common.Address
	Signer     types.Signer
	PrivateKey *ecdsa.PrivateKey

	nonce       uint64
	signerMutex sync.Mutex
}

func New(privateKey *ecdsa.PrivateKey, chainID *big.Int) *EOA {
	return &EOA{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		Signer:     types.LatestSignerForChainID(chainID),
		PrivateKey: privateKey,
	}
}

func FromHex(privateKey string, chainID *big.Int) (*EOA, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return New(key, chainID), nil
}

//Load builds the configured wallet, prompting on the terminal when the private key is set to
//"prompt". The key must belong to the configured address.
func Load(conf config.WalletConfig, chainID *big.Int) (*EOA, error) {
	var key *ecdsa.PrivateKey
	var err error
	switch conf.PrivateKey {
	case "":
		return nil, errors.Errorf("no private key configured for %s, set wallet.private_key or %s", conf.Address, config.EnvPrivateKey)
	case config.PromptPrivateKey:
		key, err = PromptPrivateKey(fmt.Sprintf("Input the private key for %s: ", conf.Address))
	default:
		key, err = crypto.HexToECDSA(strings.TrimPrefix(conf.PrivateKey, "0x"))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "incorrect or invalid private key for %s", conf.Address)
	}

	eoa := New(key, chainID)
	if conf.Address != "" && eoa.Address != common.HexToAddress(conf.Address) {
		return nil, errors.Errorf("private key belongs to %s, not %s", eoa.Address.Hex(), conf.Address)
	}
	return eoa, nil
}

//LoadSessionKey returns the configured session key, or nil when orders are signed by the
//wallet itself.
func LoadSessionKey(conf config.WalletConfig) (*ecdsa.PrivateKey, error) {
	if conf.SessionPrivateKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(conf.SessionPrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid session private key")
	}
	return key, nil
}

// Prompt the user for a terminal input while obscuring the input. The raw input is zeroed
// once parsed.
func PromptPrivateKey(message string) (*ecdsa.PrivateKey, error) {
	color.New(color.FgYellow).Fprint(os.Stderr, message)
	input, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read private key")
	}
	defer zero(input)

	return bytesToECDSA(trimHexPrefix(input))
}

func trimHexPrefix(b []byte) []byte {
	if len(b) >= 2 && b[0] == '0' && (b[1] == 'x' || b[1] == 'X') {
		return b[2:]
	}
	return b
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Parses hex private key bytes to an ECDSA key, decoding in place
func bytesToECDSA(byteSlice []byte) (*ecdsa.PrivateKey, error) {
	n, err := hex.Decode(byteSlice, byteSlice)
	if byteErr, ok := err.(hex.InvalidByteError); ok {
		return nil, errors.Errorf("invalid hex character %q in private key", byte(byteErr))
	} else if err != nil {
		return nil, errors.New("invalid hex data for private key")
	}
	return crypto.ToECDSA(byteSlice[:n])
}

func (e *EOA) Nonce() uint64 {
	e.signerMutex.Lock()
	defer e.signerMutex.Unlock()
	return e.nonce
}

//SetNonce is called with the account's pending nonce before the first transaction.
func (e *EOA) SetNonce(nonce uint64) {
	e.signerMutex.Lock()
	defer e.signerMutex.Unlock()
	e.nonce = nonce
}

func (e *EOA) SignHash(hash common.Hash) ([]byte, error) {
	return orders.SignHash(hash, e.PrivateKey)
}

func (e *EOA) SignOrder(codec *orders.Codec, order *orders.RFQOrder) ([]byte, error) {
	hash, err := codec.Hash(order)
	if err != nil {
		return nil, err
	}
	return e.SignHash(hash)
}

// Creates a new transaction at the next nonce, signs and sends it. The nonce only advances
// when the transaction was accepted by sender.
func (e *EOA) SignAndSendTransaction(ctx context.Context, sender TxSender, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, calldata []byte) (*types.Transaction, error) {
	e.signerMutex.Lock()
	defer e.signerMutex.Unlock()

	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTransaction(e.nonce, to, value, gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, e.Signer, e.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	if err := sender.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	e.nonce++
	return signedTx, nil
}
