package feeLedger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/tokens"
)

var (
	contract  = common.HexToAddress("0xc0de000000000000000000000000000000000001")
	owner     = common.HexToAddress("0x0e0e000000000000000000000000000000000001")
	maker     = common.HexToAddress("0x3a3e000000000000000000000000000000000001")
	taker     = common.HexToAddress("0x7a3e000000000000000000000000000000000001")
	frontend  = common.HexToAddress("0xf00d000000000000000000000000000000000001")
	collector = common.HexToAddress("0xc011000000000000000000000000000000000001")
	usdc      = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fixture struct {
	rt     *chain.Runtime
	tokens *tokens.Ledger
	fees   *Ledger
}

func newFixture(t *testing.T) *fixture {
	abis := contractAbis.MustLoad()
	f := &fixture{rt: chain.NewRuntime(chain.NewManualClock(1)), tokens: tokens.NewLedger(abis)}
	f.fees = NewLedger(contract, abis.RFQRouter, f.tokens, owner)
	f.exec(t, owner, func(tx *chain.Tx) error {
		if err := f.tokens.Deploy(tx, usdc, "USDC", 6); err != nil {
			return err
		}
		return f.tokens.Mint(tx, usdc, maker, big.NewInt(10000))
	})
	return f
}

func (f *fixture) exec(t *testing.T, sender common.Address, fn func(tx *chain.Tx) error) {
	_, err := f.rt.Execute(sender, fn)
	require.NoError(t, err)
}

func (f *fixture) try(sender common.Address, fn func(tx *chain.Tx) error) error {
	_, err := f.rt.Execute(sender, fn)
	return err
}

func (f *fixture) deposit(t *testing.T, amount int64) {
	f.exec(t, maker, func(tx *chain.Tx) error {
		if err := f.tokens.Approve(tx, usdc, contract, big.NewInt(amount)); err != nil {
			return err
		}
		return f.fees.DepositToken(tx, usdc, big.NewInt(amount))
	})
}

func (f *fixture) collect(frontendAddress common.Address, fee int64) error {
	return f.try(contract, func(tx *chain.Tx) error {
		return f.fees.Collect(tx, maker, usdc, big.NewInt(fee), frontendAddress, taker)
	})
}

func TestDepositWithdraw(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	assert.Equal(t, int64(1000), f.fees.Balance(maker, usdc).Int64())
	assert.Equal(t, int64(9000), f.tokens.BalanceOf(usdc, maker).Int64())

	f.exec(t, maker, func(tx *chain.Tx) error {
		return f.fees.WithdrawToken(tx, usdc, big.NewInt(400))
	})
	assert.Equal(t, int64(600), f.fees.Balance(maker, usdc).Int64())
	assert.Equal(t, int64(9400), f.tokens.BalanceOf(usdc, maker).Int64())
	assert.Equal(t, int64(600), f.tokens.BalanceOf(usdc, contract).Int64())

	err := f.try(maker, func(tx *chain.Tx) error {
		return f.fees.WithdrawToken(tx, usdc, big.NewInt(601))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "insufficient balance", chain.ReasonOf(err))
	assert.Equal(t, int64(600), f.fees.Balance(maker, usdc).Int64())
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	err := f.try(maker, func(tx *chain.Tx) error {
		return f.fees.DepositToken(tx, usdc, big.NewInt(0))
	})
	assert.ErrorIs(t, err, ErrZeroAmount)

	err = f.try(maker, func(tx *chain.Tx) error {
		return f.fees.DepositToken(tx, usdc, big.NewInt(5))
	})
	assert.ErrorIs(t, err, tokens.ErrInsufficientAllowance)
}

func TestWithdrawToAndTransferTargets(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)

	for _, target := range []common.Address{{}, contract, maker} {
		err := f.try(maker, func(tx *chain.Tx) error {
			return f.fees.WithdrawTokenTo(tx, usdc, big.NewInt(1), target)
		})
		assert.ErrorIs(t, err, ErrInvalidTarget)
		err = f.try(maker, func(tx *chain.Tx) error {
			return f.fees.TransferTo(tx, usdc, big.NewInt(1), target)
		})
		assert.ErrorIs(t, err, ErrInvalidTarget)
	}

	f.exec(t, maker, func(tx *chain.Tx) error {
		return f.fees.WithdrawTokenTo(tx, usdc, big.NewInt(100), taker)
	})
	assert.Equal(t, int64(100), f.tokens.BalanceOf(usdc, taker).Int64())

	f.exec(t, maker, func(tx *chain.Tx) error {
		return f.fees.TransferTo(tx, usdc, big.NewInt(200), taker)
	})
	assert.Equal(t, int64(700), f.fees.Balance(maker, usdc).Int64())
	assert.Equal(t, int64(200), f.fees.Balance(taker, usdc).Int64())
}

func TestCollectSplitsByBonus(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)

	require.NoError(t, f.collect(frontend, 400))
	assert.Equal(t, int64(100), f.fees.Balance(taker, usdc).Int64())
	assert.Equal(t, int64(300), f.fees.Balance(frontend, usdc).Int64())
	assert.Equal(t, int64(600), f.fees.Balance(maker, usdc).Int64())
}

func TestCollectWithZeroBonus(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	f.exec(t, owner, func(tx *chain.Tx) error {
		return f.fees.SetSplitBonus(tx, 0)
	})

	require.NoError(t, f.collect(frontend, 400))
	assert.Equal(t, int64(400), f.fees.Balance(frontend, usdc).Int64())
	assert.Equal(t, int64(0), f.fees.Balance(taker, usdc).Int64())
}

func TestCollectWithoutFrontendPaysOwner(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)

	require.NoError(t, f.collect(common.Address{}, 400))
	assert.Equal(t, int64(400), f.fees.Balance(owner, usdc).Int64())
}

func TestCollectInsufficientFee(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 100)

	err := f.collect(frontend, 400)
	assert.ErrorIs(t, err, ErrInsufficientFee)
	assert.Equal(t, "insufficient maker fee", chain.ReasonOf(err))
	assert.Equal(t, int64(100), f.fees.Balance(maker, usdc).Int64())
}

func TestOwnerOnlyOperations(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.try(maker, func(tx *chain.Tx) error { return f.fees.SetSplitBonus(tx, 10) }), ErrNotOwner)
	assert.ErrorIs(t, f.try(maker, func(tx *chain.Tx) error { return f.fees.AddCollector(tx, maker) }), ErrNotOwner)
	assert.ErrorIs(t, f.try(owner, func(tx *chain.Tx) error { return f.fees.SetSplitBonus(tx, 101) }), ErrInvalidSplitBonus)
	assert.Equal(t, uint64(DefaultSplitBonus), f.fees.SplitBonus())

	f.exec(t, owner, func(tx *chain.Tx) error { return f.fees.TransferOwnership(tx, frontend) })
	assert.Equal(t, frontend, f.fees.Owner())
	assert.ErrorIs(t, f.try(owner, func(tx *chain.Tx) error { return f.fees.TransferOwnership(tx, owner) }), ErrNotOwner)
}

func TestPenalties(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)

	penalty := func(tx *chain.Tx) error { return f.fees.IssuePenalty(tx, maker, usdc, big.NewInt(100)) }
	assert.ErrorIs(t, f.try(collector, penalty), ErrNotCollector)

	f.exec(t, owner, func(tx *chain.Tx) error { return f.fees.AddCollector(tx, collector) })
	assert.True(t, f.fees.IsCollector(collector))

	f.exec(t, collector, penalty)
	assert.Equal(t, int64(900), f.fees.Balance(maker, usdc).Int64())
	assert.Equal(t, int64(100), f.fees.Balance(owner, usdc).Int64())

	f.exec(t, collector, func(tx *chain.Tx) error {
		return f.fees.IssuePenaltySplit(tx, maker, usdc, big.NewInt(400), frontend)
	})
	assert.Equal(t, int64(500), f.fees.Balance(maker, usdc).Int64())
	assert.Equal(t, int64(100), f.fees.Balance(frontend, usdc).Int64())
	assert.Equal(t, int64(400), f.fees.Balance(owner, usdc).Int64())

	for _, target := range []common.Address{{}, contract, collector} {
		err := f.try(collector, func(tx *chain.Tx) error { return f.fees.IssuePenalty(tx, target, usdc, big.NewInt(1)) })
		assert.ErrorIs(t, err, ErrInvalidTarget)
	}
	err := f.try(collector, func(tx *chain.Tx) error { return f.fees.IssuePenalty(tx, maker, usdc, big.NewInt(501)) })
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	f.exec(t, owner, func(tx *chain.Tx) error { return f.fees.RemoveCollector(tx, collector) })
	assert.ErrorIs(t, f.try(collector, penalty), ErrNotCollector)
}
