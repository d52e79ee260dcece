package tokens

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
)

var (
	ErrUnknownToken          = chain.NewError(chain.KindValidation, "unknown token")
	ErrTokenExists           = chain.NewError(chain.KindValidation, "token already deployed")
	ErrInsufficientBalance   = chain.NewError(chain.KindValidation, "ERC20: transfer amount exceeds balance")
	ErrInsufficientAllowance = chain.NewError(chain.KindValidation, "ERC20: insufficient allowance")
	ErrZeroAddress           = chain.NewError(chain.KindValidation, "ERC20: transfer to the zero address")
)

type token struct {
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

//Ledger holds the ERC20 tokens living in the runtime. Mutations take the executing
//transaction so they revert with it.
type Ledger struct {
	erc20  *abi.ABI
	tokens map[common.Address]*token
}

func NewLedger(abis *contractAbis.ABIs) *Ledger {
	return &Ledger{erc20: abis.ERC20, tokens: make(map[common.Address]*token)}
}

func (l *Ledger) Deploy(tx *chain.Tx, address common.Address, symbol string, decimals uint8) error {
	if _, ok := l.tokens[address]; ok {
		return ErrTokenExists
	}
	chain.Set(tx, l.tokens, address, &token{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	})
	return nil
}

func (l *Ledger) lookup(address common.Address) (*token, error) {
	t, ok := l.tokens[address]
	if !ok {
		return nil, errors.Wrap(ErrUnknownToken, address.Hex())
	}
	return t, nil
}

func (l *Ledger) Mint(tx *chain.Tx, address common.Address, to common.Address, amount *big.Int) error {
	t, err := l.lookup(address)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	chain.Set(tx, t.balances, to, new(big.Int).Add(balanceOf(t, to), amount))
	return tx.EmitEvent(address, l.erc20, "Transfer", common.Address{}, to, amount)
}

//Approve sets the allowance of spender over tx.Sender's balance.
func (l *Ledger) Approve(tx *chain.Tx, address common.Address, spender common.Address, amount *big.Int) error {
	t, err := l.lookup(address)
	if err != nil {
		return err
	}
	chain.Set(tx, t.allowances, allowanceKey{tx.Sender, spender}, new(big.Int).Set(amount))
	return tx.EmitEvent(address, l.erc20, "Approval", tx.Sender, spender, amount)
}

func (l *Ledger) Transfer(tx *chain.Tx, address common.Address, from common.Address, to common.Address, amount *big.Int) error {
	t, err := l.lookup(address)
	if err != nil {
		return err
	}
	return l.move(tx, address, t, from, to, amount)
}

//TransferFrom moves amount from from to to, spending the allowance from granted spender.
func (l *Ledger) TransferFrom(tx *chain.Tx, address common.Address, spender common.Address, from common.Address, to common.Address, amount *big.Int) error {
	t, err := l.lookup(address)
	if err != nil {
		return err
	}
	if spender != from {
		key := allowanceKey{from, spender}
		allowance := t.allowances[key]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		chain.Set(tx, t.allowances, key, new(big.Int).Sub(allowance, amount))
	}
	return l.move(tx, address, t, from, to, amount)
}

func (l *Ledger) move(tx *chain.Tx, address common.Address, t *token, from common.Address, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBalance := balanceOf(t, from)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	chain.Set(tx, t.balances, from, new(big.Int).Sub(fromBalance, amount))
	chain.Set(tx, t.balances, to, new(big.Int).Add(balanceOf(t, to), amount))
	return tx.EmitEvent(address, l.erc20, "Transfer", from, to, amount)
}

//Call executes ERC20 calldata against token address on behalf of spender. Only
//transferFrom and transfer are understood.
func (l *Ledger) Call(tx *chain.Tx, address common.Address, spender common.Address, calldata []byte) error {
	if len(calldata) < 4 {
		return errors.New("calldata too short")
	}
	method, err := l.erc20.MethodById(calldata[:4])
	if err != nil {
		return errors.Wrap(err, "unsupported token call")
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", method.Name)
	}
	switch method.Name {
	case "transferFrom":
		return l.TransferFrom(tx, address, spender, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int))
	case "transfer":
		return l.Transfer(tx, address, spender, args[0].(common.Address), args[1].(*big.Int))
	default:
		return errors.Errorf("unsupported token call %s", method.Name)
	}
}

func balanceOf(t *token, account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

//Reads below are called under the runtime's read lock or from inside a transaction.

func (l *Ledger) BalanceOf(address common.Address, account common.Address) *big.Int {
	t, ok := l.tokens[address]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balanceOf(t, account))
}

func (l *Ledger) Allowance(address common.Address, owner common.Address, spender common.Address) *big.Int {
	t, ok := l.tokens[address]
	if !ok {
		return new(big.Int)
	}
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

//Metadata returns the symbol and decimals token address was deployed with.
func (l *Ledger) Metadata(address common.Address) (symbol string, decimals uint8, ok bool) {
	t, ok := l.tokens[address]
	if !ok {
		return "", 0, false
	}
	return t.symbol, t.decimals, true
}
