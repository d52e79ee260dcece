package chain

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
)

//Runtime is the ledger every protocol component lives in. State changing calls run one at a
//time under the write lock, reads share the read lock, so operations are totally ordered.
type Runtime struct {
	mu     sync.RWMutex
	clock  Clock
	block  uint64
	nonces map[common.Address]uint64
	logs   []types.Log

	subMu       sync.Mutex
	subscribers map[int]chan<- types.Log
	nextSub     int
}

func NewRuntime(clock Clock) *Runtime {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runtime{
		clock:       clock,
		nonces:      make(map[common.Address]uint64),
		subscribers: make(map[int]chan<- types.Log),
	}
}

//Tx is the context of one executing transaction.
type Tx struct {
	Sender common.Address
	Time   uint64
	Block  uint64
	Hash   common.Hash

	journal []func()
	logs    []types.Log
}

//OnRevert registers an undo step. Steps run in reverse order if the transaction fails.
func (tx *Tx) OnRevert(undo func()) {
	tx.journal = append(tx.journal, undo)
}

//EmitEvent appends a log for the named event of contractABI, emitted by address.
func (tx *Tx) EmitEvent(address common.Address, contractABI *abi.ABI, name string, args ...interface{}) error {
	topics, data, err := contractAbis.PackEvent(contractABI, name, args...)
	if err != nil {
		return err
	}
	tx.logs = append(tx.logs, types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: tx.Block,
		TxHash:      tx.Hash,
	})
	return nil
}

func (tx *Tx) revert() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		tx.journal[i]()
	}
	tx.journal = nil
	tx.logs = nil
}

//Set writes m[k] = v and records how to put the previous value back.
func Set[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	tx.OnRevert(func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
	Logs        []types.Log
	Err         error
}

func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

//Execute runs fn as one atomic transaction sent by sender. When fn returns an error or
//panics every journaled write is undone and no log is kept; the receipt is still returned.
func (r *Runtime) Execute(sender common.Address, fn func(tx *Tx) error) (receipt *Receipt, err error) {
	r.mu.Lock()

	r.block++
	nonce := r.nonces[sender]
	r.nonces[sender] = nonce + 1

	tx := &Tx{
		Sender: sender,
		Time:   r.clock.Now(),
		Block:  r.block,
		Hash:   txHash(sender, nonce),
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.Errorf("transaction panicked: %v", recovered)
		}
		receipt = &Receipt{TxHash: tx.Hash, BlockNumber: tx.Block, Err: err}
		if err != nil {
			tx.revert()
			receipt.Status = types.ReceiptStatusFailed
			r.mu.Unlock()
			return
		}
		receipt.Status = types.ReceiptStatusSuccessful
		for i := range tx.logs {
			tx.logs[i].Index = uint(len(r.logs))
			tx.logs[i].TxIndex = 0
			r.logs = append(r.logs, tx.logs[i])
		}
		receipt.Logs = tx.logs
		r.mu.Unlock()
		r.publish(tx.logs)
	}()

	err = fn(tx)
	return nil, err
}

//View runs fn under the read lock with the current block time.
func (r *Runtime) View(fn func(now uint64)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.clock.Now())
}

func (r *Runtime) Now() uint64 {
	return r.clock.Now()
}

func (r *Runtime) BlockNumber() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.block
}

//Logs returns a copy of every log emitted by successful transactions.
func (r *Runtime) Logs() []types.Log {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Log, len(r.logs))
	copy(out, r.logs)
	return out
}

//Subscribe delivers future logs to ch. A subscriber that is not ready to receive misses the
//log; Logs keeps the full history. The returned func unsubscribes.
func (r *Runtime) Subscribe(ch chan<- types.Log) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Runtime) publish(logs []types.Log) {
	if len(logs) == 0 {
		return
	}
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, log := range logs {
		for _, ch := range r.subscribers {
			select {
			case ch <- log:
			default:
			}
		}
	}
}

func txHash(sender common.Address, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(sender.Bytes(), n[:])
}
