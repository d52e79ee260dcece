package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	feeLedger "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/fee_ledger"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/invalidator"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/sessions"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/tokens"
)

type Params struct {
	Address common.Address
	Owner   common.Address
	Name    string
	Version string
	ChainID *big.Int
	Clock   chain.Clock
}

//Contract is the in-process settlement contract. Every mutating method is one atomic
//runtime transaction sent by sender; every read runs under the runtime's read lock.
type Contract struct {
	address     common.Address
	rt          *chain.Runtime
	abis        *contractAbis.ABIs
	codec       *orders.Codec
	tokens      *tokens.Ledger
	sessions    *sessions.Registry
	invalidator *invalidator.Ledger
	fees        *feeLedger.Ledger
	engine      *Engine
}

func Deploy(abis *contractAbis.ABIs, params Params) (*Contract, error) {
	if params.Address == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}
	if params.Owner == (common.Address{}) {
		return nil, errors.New("contract owner is required")
	}
	codec, err := orders.NewCodec(abis, orders.Domain{
		Name:              params.Name,
		Version:           params.Version,
		ChainID:           params.ChainID,
		VerifyingContract: params.Address,
	})
	if err != nil {
		return nil, err
	}

	c := &Contract{
		address:     params.Address,
		rt:          chain.NewRuntime(params.Clock),
		abis:        abis,
		codec:       codec,
		tokens:      tokens.NewLedger(abis),
		invalidator: invalidator.NewLedger(),
	}
	c.sessions = sessions.NewRegistry(params.Address, abis.RFQRouter)
	c.fees = feeLedger.NewLedger(params.Address, abis.RFQRouter, c.tokens, params.Owner)
	c.engine = NewEngine(params.Address, abis.RFQRouter, codec, c.tokens, c.sessions, c.invalidator, c.fees)
	return c, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Codec() *orders.Codec {
	return c.codec
}

func (c *Contract) Runtime() *chain.Runtime {
	return c.rt
}

func (c *Contract) exec(sender common.Address, fn func(tx *chain.Tx) error) (*chain.Receipt, error) {
	return c.rt.Execute(sender, fn)
}

func (c *Contract) FillOrderRFQ(sender common.Address, order *orders.RFQOrder, signature []byte, takingAmount *big.Int, makingAmount *big.Int) (filledTaking *big.Int, filledMaking *big.Int, receipt *chain.Receipt, err error) {
	receipt, err = c.exec(sender, func(tx *chain.Tx) error {
		var fillErr error
		filledTaking, filledMaking, fillErr = c.engine.FillOrderRFQ(tx, order, signature, takingAmount, makingAmount)
		return fillErr
	})
	if err != nil {
		return nil, nil, receipt, err
	}
	return filledTaking, filledMaking, receipt, nil
}

func (c *Contract) CancelOrderRFQ(sender common.Address, orderID uint64) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		c.invalidator.CancelOrderRFQ(tx, orderID)
		return nil
	})
}

func (c *Contract) CreateOrUpdateSession(sender common.Address, sessionKey common.Address, expirationTime uint64) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.sessions.CreateOrUpdateSession(tx, sessionKey, expirationTime)
	})
}

func (c *Contract) EndSession(sender common.Address) (*chain.Receipt, error) {
	return c.exec(sender, c.sessions.EndSession)
}

func (c *Contract) DepositToken(sender common.Address, token common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.DepositToken(tx, token, amount)
	})
}

func (c *Contract) WithdrawToken(sender common.Address, token common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.WithdrawToken(tx, token, amount)
	})
}

func (c *Contract) WithdrawTokenTo(sender common.Address, token common.Address, amount *big.Int, to common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.WithdrawTokenTo(tx, token, amount, to)
	})
}

func (c *Contract) TransferTo(sender common.Address, token common.Address, amount *big.Int, to common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.TransferTo(tx, token, amount, to)
	})
}

func (c *Contract) AddCollector(sender common.Address, collector common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.AddCollector(tx, collector)
	})
}

func (c *Contract) RemoveCollector(sender common.Address, collector common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.RemoveCollector(tx, collector)
	})
}

func (c *Contract) IssuePenalty(sender common.Address, target common.Address, token common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.IssuePenalty(tx, target, token, amount)
	})
}

func (c *Contract) IssuePenaltySplit(sender common.Address, target common.Address, token common.Address, amount *big.Int, splitTo common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.IssuePenaltySplit(tx, target, token, amount, splitTo)
	})
}

func (c *Contract) SetSplitBonus(sender common.Address, bonus uint64) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.SetSplitBonus(tx, bonus)
	})
}

func (c *Contract) TransferOwnership(sender common.Address, newOwner common.Address) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.fees.TransferOwnership(tx, newOwner)
	})
}

//DeployToken registers an ERC20 in the runtime so orders can move it.
func (c *Contract) DeployToken(sender common.Address, token common.Address, symbol string, decimals uint8) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.tokens.Deploy(tx, token, symbol, decimals)
	})
}

func (c *Contract) Mint(sender common.Address, token common.Address, to common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.tokens.Mint(tx, token, to, amount)
	})
}

func (c *Contract) Approve(sender common.Address, token common.Address, spender common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.exec(sender, func(tx *chain.Tx) error {
		return c.tokens.Approve(tx, token, spender, amount)
	})
}

func (c *Contract) Session(owner common.Address) (session sessions.Session) {
	c.rt.View(func(uint64) { session = c.sessions.Session(owner) })
	return session
}

func (c *Contract) SessionExpirationTime(owner common.Address) (expiration uint64) {
	c.rt.View(func(uint64) { expiration = c.sessions.SessionExpirationTime(owner) })
	return expiration
}

func (c *Contract) InvalidatorForOrderRFQ(account common.Address, slot uint64) (word *big.Int) {
	c.rt.View(func(uint64) { word = c.invalidator.InvalidatorForOrderRFQ(account, slot) })
	return word
}

func (c *Contract) Balance(account common.Address, token common.Address) (balance *big.Int) {
	c.rt.View(func(uint64) { balance = c.fees.Balance(account, token) })
	return balance
}

func (c *Contract) TokenBalance(token common.Address, account common.Address) (balance *big.Int) {
	c.rt.View(func(uint64) { balance = c.tokens.BalanceOf(token, account) })
	return balance
}

func (c *Contract) TokenMetadata(token common.Address) (symbol string, decimals uint8, deployed bool) {
	c.rt.View(func(uint64) { symbol, decimals, deployed = c.tokens.Metadata(token) })
	return symbol, decimals, deployed
}

func (c *Contract) SplitBonus() (bonus uint64) {
	c.rt.View(func(uint64) { bonus = c.fees.SplitBonus() })
	return bonus
}

func (c *Contract) Owner() (owner common.Address) {
	c.rt.View(func(uint64) { owner = c.fees.Owner() })
	return owner
}

func (c *Contract) Logs() []types.Log {
	return c.rt.Logs()
}

//SessionOf and InvalidatedOrderRFQ give maker components the same read interface over the
//in-process contract as over a remote node.

func (c *Contract) SessionOf(ctx context.Context, owner common.Address) (sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return sessions.Session{}, err
	}
	return c.Session(owner), nil
}

func (c *Contract) InvalidatedOrderRFQ(ctx context.Context, account common.Address, orderID uint64) (invalidated bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.rt.View(func(uint64) { invalidated = c.invalidator.IsInvalidated(account, orderID) })
	return invalidated, nil
}
