package invalidator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
)

var ErrAlreadyFilled = chain.NewError(chain.KindState, "already filled")

//Word is one 256 bit invalidator word, least significant limb first.
type Word [4]uint64

func (w Word) IsSet(bit uint8) bool {
	return w[bit/64]&(1<<(bit%64)) != 0
}

func (w Word) With(bit uint8) Word {
	w[bit/64] |= 1 << (bit % 64)
	return w
}

func (w Word) Big() *big.Int {
	out := new(big.Int)
	for i := len(w) - 1; i >= 0; i-- {
		out.Lsh(out, 64)
		out.Or(out, new(big.Int).SetUint64(w[i]))
	}
	return out
}

type slotKey struct {
	account common.Address
	slot    uint64
}

//Position splits an order id into its word slot and bit.
func Position(orderID uint64) (slot uint64, bit uint8) {
	return orderID >> 8, uint8(orderID & 0xff)
}

//Ledger marks consumed or cancelled order ids per account. Bits are never cleared.
type Ledger struct {
	words map[slotKey]Word
}

func NewLedger() *Ledger {
	return &Ledger{words: make(map[slotKey]Word)}
}

//CancelOrderRFQ sets the caller's bit for orderID. Cancelling a consumed id changes nothing.
func (l *Ledger) CancelOrderRFQ(tx *chain.Tx, orderID uint64) {
	slot, bit := Position(orderID)
	key := slotKey{tx.Sender, slot}
	word := l.words[key]
	if word.IsSet(bit) {
		return
	}
	chain.Set(tx, l.words, key, word.With(bit))
}

//Invalidate consumes orderID for account, failing if it was consumed or cancelled before.
func (l *Ledger) Invalidate(tx *chain.Tx, account common.Address, orderID uint64) error {
	slot, bit := Position(orderID)
	key := slotKey{account, slot}
	word := l.words[key]
	if word.IsSet(bit) {
		return ErrAlreadyFilled
	}
	chain.Set(tx, l.words, key, word.With(bit))
	return nil
}

func (l *Ledger) IsInvalidated(account common.Address, orderID uint64) bool {
	slot, bit := Position(orderID)
	return l.words[slotKey{account, slot}].IsSet(bit)
}

func (l *Ledger) InvalidatorForOrderRFQ(account common.Address, slot uint64) *big.Int {
	return l.words[slotKey{account, slot}].Big()
}
