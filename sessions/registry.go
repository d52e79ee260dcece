package sessions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
)

var (
	ErrInvalidSessionKey   = chain.NewError(chain.KindAuthorization, "invalid session key")
	ErrExpirationInPast    = chain.NewError(chain.KindValidation, "expiration time in the past")
	ErrSessionAlreadyEnded = chain.NewError(chain.KindState, "session already ended")
	ErrSessionExpired      = chain.NewError(chain.KindState, "session expired")
)

//Session delegates signing for Creator to SessionKey until ExpirationTime.
type Session struct {
	Creator        common.Address
	SessionKey     common.Address
	ExpirationTime uint64
	TxCount        uint64
}

//IsActive reports whether the session key may sign at time now.
func (s Session) IsActive(now uint64) bool {
	return s.SessionKey != (common.Address{}) && now <= s.ExpirationTime
}

//Registry keeps one session per creator. It lives at the settlement contract's address.
type Registry struct {
	address  common.Address
	abi      *abi.ABI
	sessions map[common.Address]Session
}

func NewRegistry(address common.Address, contractABI *abi.ABI) *Registry {
	return &Registry{address: address, abi: contractABI, sessions: make(map[common.Address]Session)}
}

func (r *Registry) CreateOrUpdateSession(tx *chain.Tx, sessionKey common.Address, expirationTime uint64) error {
	if sessionKey == (common.Address{}) || sessionKey == r.address || sessionKey == tx.Sender {
		return ErrInvalidSessionKey
	}
	if expirationTime <= tx.Time {
		return ErrExpirationInPast
	}

	existing, ok := r.sessions[tx.Sender]
	session := Session{
		Creator:        tx.Sender,
		SessionKey:     sessionKey,
		ExpirationTime: expirationTime,
		TxCount:        existing.TxCount,
	}
	chain.Set(tx, r.sessions, tx.Sender, session)

	expiration := new(big.Int).SetUint64(expirationTime)
	if !ok {
		return tx.EmitEvent(r.address, r.abi, "SessionCreated", tx.Sender, sessionKey, expiration)
	}
	return tx.EmitEvent(r.address, r.abi, "SessionUpdated", tx.Sender, sessionKey, expiration)
}

func (r *Registry) EndSession(tx *chain.Tx) error {
	session, ok := r.sessions[tx.Sender]
	if !ok || session.ExpirationTime == 0 {
		return ErrSessionAlreadyEnded
	}
	if tx.Time > session.ExpirationTime {
		return ErrSessionExpired
	}
	session.ExpirationTime = 0
	chain.Set(tx, r.sessions, tx.Sender, session)
	return tx.EmitEvent(r.address, r.abi, "SessionTerminated", tx.Sender, session.SessionKey)
}

//IncrementTxCount counts a settled fill against owner's session record, if one exists.
func (r *Registry) IncrementTxCount(tx *chain.Tx, owner common.Address) {
	session, ok := r.sessions[owner]
	if !ok {
		return
	}
	session.TxCount++
	chain.Set(tx, r.sessions, owner, session)
}

//Session returns the stored record for owner; the zero Session if none.
func (r *Registry) Session(owner common.Address) Session {
	return r.sessions[owner]
}

func (r *Registry) SessionExpirationTime(owner common.Address) uint64 {
	return r.sessions[owner].ExpirationTime
}
