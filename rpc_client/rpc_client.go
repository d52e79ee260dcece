package rpcClient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/invalidator"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/sessions"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/wallet"
)

//Backend is the part of ethclient.Client the settlement client needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

//Client reads and writes the deployed RFQ router. Writes are signed by wallet.
type Client struct {
	backend      Backend
	abis         *contractAbis.ABIs
	contract     common.Address
	wallet       *wallet.EOA
	pollInterval time.Duration
}

func New(backend Backend, abis *contractAbis.ABIs, contract common.Address, eoa *wallet.EOA, pollInterval time.Duration) *Client {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Client{backend: backend, abis: abis, contract: contract, wallet: eoa, pollInterval: pollInterval}
}

//Dial connects to the configured node and loads the wallet's pending nonce.
func Dial(ctx context.Context, conf config.ChainConfig, abis *contractAbis.ABIs, eoa *wallet.EOA) (*Client, error) {
	httpClient, err := ethclient.DialContext(ctx, conf.NodeHttpEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", conf.NodeHttpEndpoint)
	}
	client := New(httpClient, abis, common.HexToAddress(conf.ContractAddress), eoa, time.Duration(conf.ReceiptPollSeconds)*time.Second)
	if eoa != nil {
		nonce, err := httpClient.PendingNonceAt(ctx, eoa.Address)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get wallet nonce")
		}
		eoa.SetNonce(nonce)
	}
	return client, nil
}

func (c *Client) Contract() common.Address {
	return c.contract
}

//Call packs the method call, runs it against the latest block and unpacks the result.
func (c *Client) Call(ctx context.Context, contractABI *abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	callData, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	msg := ethereum.CallMsg{To: &to, Data: callData}
	result, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s failed", method)
	}

	values, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}
	return values, nil
}

func (c *Client) callRouter(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	return c.Call(ctx, c.abis.RFQRouter, c.contract, method, args...)
}

func (c *Client) SessionOf(ctx context.Context, owner common.Address) (sessions.Session, error) {
	values, err := c.callRouter(ctx, "session", owner)
	if err != nil {
		return sessions.Session{}, err
	}
	if len(values) != 4 {
		return sessions.Session{}, errors.Errorf("session returned %d values", len(values))
	}
	return sessions.Session{
		Creator:        values[0].(common.Address),
		SessionKey:     values[1].(common.Address),
		ExpirationTime: saturate(values[2].(*big.Int)),
		TxCount:        saturate(values[3].(*big.Int)),
	}, nil
}

func (c *Client) SessionExpirationTime(ctx context.Context, owner common.Address) (uint64, error) {
	values, err := c.callRouter(ctx, "sessionExpirationTime", owner)
	if err != nil {
		return 0, err
	}
	return saturate(values[0].(*big.Int)), nil
}

func (c *Client) InvalidatorForOrderRFQ(ctx context.Context, maker common.Address, slot uint64) (*big.Int, error) {
	values, err := c.callRouter(ctx, "invalidatorForOrderRFQ", maker, new(big.Int).SetUint64(slot))
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

func (c *Client) InvalidatedOrderRFQ(ctx context.Context, account common.Address, orderID uint64) (bool, error) {
	slot, bit := invalidator.Position(orderID)
	word, err := c.InvalidatorForOrderRFQ(ctx, account, slot)
	if err != nil {
		return false, err
	}
	return word.Bit(int(bit)) == 1, nil
}

//Balance is account's fee balance of token held by the router.
func (c *Client) Balance(ctx context.Context, account common.Address, token common.Address) (*big.Int, error) {
	values, err := c.callRouter(ctx, "balance", account, token)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

func (c *Client) TokenBalance(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	values, err := c.Call(ctx, c.abis.ERC20, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// Creates a transaction calling method on to, estimates its gas, signs and sends it.
// The transaction hash is returned.
func (c *Client) transact(ctx context.Context, contractABI *abi.ABI, to common.Address, method string, args ...interface{}) (common.Hash, error) {
	if c.wallet == nil {
		return common.Hash{}, errors.New("no wallet configured")
	}
	calldata, err := contractABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "failed to pack %s", method)
	}

	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.wallet.Address, To: &to, Data: calldata})
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "failed to estimate gas for %s", method)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get gas price")
	}

	signedTx, err := c.wallet.SignAndSendTransaction(ctx, c.backend, to, nil, gasLimit, gasPrice, calldata)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, method)
	}
	log.Debug().Str("method", method).Str("hash", signedTx.Hash().Hex()).Uint64("nonce", signedTx.Nonce()).Msg("transaction sent")
	return signedTx.Hash(), nil
}

func (c *Client) transactRouter(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	return c.transact(ctx, c.abis.RFQRouter, c.contract, method, args...)
}

//WaitMined polls for the receipt of hash until it is mined or ctx is done.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "failed to get receipt for %s", hash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

//Wait returns an error when the transaction reverted.
func (c *Client) Wait(ctx context.Context, hash common.Hash) error {
	receipt, err := c.WaitMined(ctx, hash)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Errorf("transaction %s reverted", hash.Hex())
	}
	return nil
}

func (c *Client) SubmitFill(ctx context.Context, order *orders.RFQOrder, signature []byte, takingAmount *big.Int, makingAmount *big.Int) (common.Hash, error) {
	return c.transactRouter(ctx, "fillOrderRFQ", *order, signature, nonNil(takingAmount), nonNil(makingAmount))
}

func (c *Client) WaitFill(ctx context.Context, hash common.Hash) error {
	return c.Wait(ctx, hash)
}

func (c *Client) CreateOrUpdateSession(ctx context.Context, sessionKey common.Address, expirationTime uint64) (common.Hash, error) {
	return c.transactRouter(ctx, "createOrUpdateSession", sessionKey, new(big.Int).SetUint64(expirationTime))
}

func (c *Client) EndSession(ctx context.Context) (common.Hash, error) {
	return c.transactRouter(ctx, "endSession")
}

func (c *Client) CancelOrderRFQ(ctx context.Context, orderID uint64) (common.Hash, error) {
	return c.transactRouter(ctx, "cancelOrderRFQ", new(big.Int).SetUint64(orderID))
}

func (c *Client) DepositToken(ctx context.Context, token common.Address, amount *big.Int) (common.Hash, error) {
	return c.transactRouter(ctx, "depositToken", token, amount)
}

func (c *Client) WithdrawToken(ctx context.Context, token common.Address, amount *big.Int) (common.Hash, error) {
	return c.transactRouter(ctx, "withdrawToken", token, amount)
}

func (c *Client) WithdrawTokenTo(ctx context.Context, token common.Address, amount *big.Int, to common.Address) (common.Hash, error) {
	return c.transactRouter(ctx, "withdrawTokenTo", token, amount, to)
}

func (c *Client) TransferTo(ctx context.Context, token common.Address, amount *big.Int, to common.Address) (common.Hash, error) {
	return c.transactRouter(ctx, "transferTo", token, amount, to)
}

//Approve lets spender move amount of the wallet's token.
func (c *Client) Approve(ctx context.Context, token common.Address, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, c.abis.ERC20, token, "approve", spender, amount)
}

func saturate(v *big.Int) uint64 {
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
