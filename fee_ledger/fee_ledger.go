package feeLedger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/tokens"
)

const DefaultSplitBonus = 25

var (
	ErrZeroAmount          = chain.NewError(chain.KindValidation, "amount must be greater than zero")
	ErrInvalidTarget       = chain.NewError(chain.KindValidation, "invalid target address")
	ErrInsufficientBalance = chain.NewError(chain.KindValidation, "insufficient balance")
	ErrInsufficientFee     = chain.NewError(chain.KindValidation, "insufficient maker fee")
	ErrInvalidSplitBonus   = chain.NewError(chain.KindValidation, "split bonus must be between 0 and 100")
	ErrNotOwner            = chain.NewError(chain.KindAuthorization, "caller is not the owner")
	ErrNotCollector        = chain.NewError(chain.KindAuthorization, "caller is not a collector")
)

type balanceKey struct {
	account common.Address
	token   common.Address
}

//Ledger holds fee balances deposited into the settlement contract and distributes
//collected fees between the owner, frontends and takers.
type Ledger struct {
	address common.Address
	abi     *abi.ABI
	tokens  *tokens.Ledger

	owner      common.Address
	splitBonus uint64
	collectors map[common.Address]bool
	balances   map[balanceKey]*big.Int
}

func NewLedger(address common.Address, contractABI *abi.ABI, tokenLedger *tokens.Ledger, owner common.Address) *Ledger {
	return &Ledger{
		address:    address,
		abi:        contractABI,
		tokens:     tokenLedger,
		owner:      owner,
		splitBonus: DefaultSplitBonus,
		collectors: make(map[common.Address]bool),
		balances:   make(map[balanceKey]*big.Int),
	}
}

func (l *Ledger) Balance(account common.Address, token common.Address) *big.Int {
	if b, ok := l.balances[balanceKey{account, token}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) Owner() common.Address {
	return l.owner
}

func (l *Ledger) SplitBonus() uint64 {
	return l.splitBonus
}

func (l *Ledger) IsCollector(account common.Address) bool {
	return l.collectors[account]
}

func (l *Ledger) credit(tx *chain.Tx, account common.Address, token common.Address, amount *big.Int) *big.Int {
	balance := new(big.Int).Add(l.Balance(account, token), amount)
	chain.Set(tx, l.balances, balanceKey{account, token}, balance)
	return balance
}

func (l *Ledger) debit(tx *chain.Tx, account common.Address, token common.Address, amount *big.Int, short error) (*big.Int, error) {
	current := l.Balance(account, token)
	if current.Cmp(amount) < 0 {
		return nil, short
	}
	balance := new(big.Int).Sub(current, amount)
	chain.Set(tx, l.balances, balanceKey{account, token}, balance)
	return balance, nil
}

func (l *Ledger) validTarget(tx *chain.Tx, target common.Address) bool {
	return target != (common.Address{}) && target != l.address && target != tx.Sender
}

//DepositToken pulls amount of token from the caller into the ledger. The caller must have
//approved the contract address beforehand.
func (l *Ledger) DepositToken(tx *chain.Tx, token common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := l.tokens.TransferFrom(tx, token, l.address, tx.Sender, l.address, amount); err != nil {
		return err
	}
	balance := l.credit(tx, tx.Sender, token, amount)
	return tx.EmitEvent(l.address, l.abi, "TokenDeposited", tx.Sender, token, amount, balance)
}

func (l *Ledger) WithdrawToken(tx *chain.Tx, token common.Address, amount *big.Int) error {
	return l.withdraw(tx, token, amount, tx.Sender)
}

func (l *Ledger) WithdrawTokenTo(tx *chain.Tx, token common.Address, amount *big.Int, to common.Address) error {
	if !l.validTarget(tx, to) {
		return ErrInvalidTarget
	}
	return l.withdraw(tx, token, amount, to)
}

func (l *Ledger) withdraw(tx *chain.Tx, token common.Address, amount *big.Int, to common.Address) error {
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	balance, err := l.debit(tx, tx.Sender, token, amount, ErrInsufficientBalance)
	if err != nil {
		return err
	}
	if err := l.tokens.Transfer(tx, token, l.address, to, amount); err != nil {
		return err
	}
	return tx.EmitEvent(l.address, l.abi, "TokenWithdrawn", tx.Sender, token, amount, balance)
}

//TransferTo moves ledger balance from the caller to another account without touching tokens.
func (l *Ledger) TransferTo(tx *chain.Tx, token common.Address, amount *big.Int, to common.Address) error {
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if !l.validTarget(tx, to) {
		return ErrInvalidTarget
	}
	return l.move(tx, tx.Sender, to, token, amount, ErrInsufficientBalance)
}

func (l *Ledger) move(tx *chain.Tx, from common.Address, to common.Address, token common.Address, amount *big.Int, short error) error {
	balanceFrom, err := l.debit(tx, from, token, amount, short)
	if err != nil {
		return err
	}
	balanceTo := l.credit(tx, to, token, amount)
	return tx.EmitEvent(l.address, l.abi, "BalanceTransfered", from, to, amount, balanceFrom, balanceTo)
}

//bonusShare is the secondary recipient's cut of amount, rounded down.
func (l *Ledger) bonusShare(amount *big.Int) *big.Int {
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(l.splitBonus))
	return share.Quo(share, big.NewInt(100))
}

//Collect debits a settlement fee from the maker. Without a frontend the owner receives the
//whole fee; otherwise the taker receives the split bonus share and the frontend the rest.
func (l *Ledger) Collect(tx *chain.Tx, maker common.Address, token common.Address, fee *big.Int, frontend common.Address, taker common.Address) error {
	if fee.Sign() <= 0 {
		return nil
	}
	if frontend == (common.Address{}) {
		return l.move(tx, maker, l.owner, token, fee, ErrInsufficientFee)
	}
	if l.Balance(maker, token).Cmp(fee) < 0 {
		return ErrInsufficientFee
	}
	takerShare := l.bonusShare(fee)
	frontendShare := new(big.Int).Sub(fee, takerShare)
	if takerShare.Sign() > 0 {
		if err := l.move(tx, maker, taker, token, takerShare, ErrInsufficientFee); err != nil {
			return err
		}
	}
	if frontendShare.Sign() > 0 {
		return l.move(tx, maker, frontend, token, frontendShare, ErrInsufficientFee)
	}
	return nil
}

func (l *Ledger) requireOwner(tx *chain.Tx) error {
	if tx.Sender != l.owner {
		return ErrNotOwner
	}
	return nil
}

func (l *Ledger) requireCollector(tx *chain.Tx) error {
	if !l.collectors[tx.Sender] {
		return ErrNotCollector
	}
	return nil
}

func (l *Ledger) AddCollector(tx *chain.Tx, collector common.Address) error {
	if err := l.requireOwner(tx); err != nil {
		return err
	}
	if collector == (common.Address{}) {
		return ErrInvalidTarget
	}
	chain.Set(tx, l.collectors, collector, true)
	return nil
}

func (l *Ledger) RemoveCollector(tx *chain.Tx, collector common.Address) error {
	if err := l.requireOwner(tx); err != nil {
		return err
	}
	chain.Set(tx, l.collectors, collector, false)
	return nil
}

func (l *Ledger) SetSplitBonus(tx *chain.Tx, bonus uint64) error {
	if err := l.requireOwner(tx); err != nil {
		return err
	}
	if bonus > 100 {
		return ErrInvalidSplitBonus
	}
	previous := l.splitBonus
	tx.OnRevert(func() { l.splitBonus = previous })
	l.splitBonus = bonus
	return nil
}

func (l *Ledger) TransferOwnership(tx *chain.Tx, newOwner common.Address) error {
	if err := l.requireOwner(tx); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrInvalidTarget
	}
	previous := l.owner
	tx.OnRevert(func() { l.owner = previous })
	l.owner = newOwner
	return nil
}

//IssuePenalty moves amount of target's balance to the owner.
func (l *Ledger) IssuePenalty(tx *chain.Tx, target common.Address, token common.Address, amount *big.Int) error {
	if err := l.checkPenalty(tx, target, amount); err != nil {
		return err
	}
	if err := l.move(tx, target, l.owner, token, amount, ErrInsufficientBalance); err != nil {
		return err
	}
	return tx.EmitEvent(l.address, l.abi, "PenaltyIssued", target, amount, l.Balance(target, token))
}

//IssuePenaltySplit takes amount from target; splitTo receives the split bonus share and the
//owner the remainder.
func (l *Ledger) IssuePenaltySplit(tx *chain.Tx, target common.Address, token common.Address, amount *big.Int, splitTo common.Address) error {
	if err := l.checkPenalty(tx, target, amount); err != nil {
		return err
	}
	if splitTo == (common.Address{}) || splitTo == l.address || splitTo == target {
		return ErrInvalidTarget
	}
	if l.Balance(target, token).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	splitShare := l.bonusShare(amount)
	ownerShare := new(big.Int).Sub(amount, splitShare)
	if splitShare.Sign() > 0 {
		if err := l.move(tx, target, splitTo, token, splitShare, ErrInsufficientBalance); err != nil {
			return err
		}
	}
	if ownerShare.Sign() > 0 {
		if err := l.move(tx, target, l.owner, token, ownerShare, ErrInsufficientBalance); err != nil {
			return err
		}
	}
	return tx.EmitEvent(l.address, l.abi, "SplitPenaltyIssued", target, splitTo,
		new(big.Int).SetUint64(l.splitBonus), amount, l.Balance(target, token))
}

func (l *Ledger) checkPenalty(tx *chain.Tx, target common.Address, amount *big.Int) error {
	if err := l.requireCollector(tx); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if !l.validTarget(tx, target) {
		return ErrInvalidTarget
	}
	return nil
}
