package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/sessions"
)

//SessionReader is the part of the session registry the authenticator needs.
type SessionReader interface {
	Session(owner common.Address) sessions.Session
}

//Authenticator applies the signing identity rules of a fill to either side of an order.
type Authenticator struct {
	sessions SessionReader
}

func NewAuthenticator(reader SessionReader) *Authenticator {
	return &Authenticator{sessions: reader}
}

//AuthenticateTaker checks that signature over orderHash comes from the taker, either
//from its primary key or from its live session key. A signature produced by the maker or
//the maker's session key is refused.
func (a *Authenticator) AuthenticateTaker(now uint64, orderHash common.Hash, signature []byte, taker common.Address, maker common.Address) error {
	signer, err := orders.RecoverSigner(orderHash, signature)
	if err != nil {
		return ErrBadSignature
	}

	makerSession := a.sessions.Session(maker)
	if signer == maker || (makerSession.IsActive(now) && signer == makerSession.SessionKey) {
		return ErrSignerIsCounterparty
	}

	if signer == taker {
		return nil
	}

	takerSession := a.sessions.Session(taker)
	if !takerSession.IsActive(now) {
		return ErrExpiredTakerSession
	}
	if signer != takerSession.SessionKey {
		return ErrBadSignature
	}
	return nil
}

//AuthenticateMaker checks that sender may fill on behalf of maker: the maker itself or
//its live session key.
func (a *Authenticator) AuthenticateMaker(now uint64, sender common.Address, maker common.Address) error {
	if sender == maker {
		return nil
	}
	makerSession := a.sessions.Session(maker)
	if !makerSession.IsActive(now) {
		return ErrExpiredMakerSession
	}
	if sender != makerSession.SessionKey {
		return ErrPrivateOrder
	}
	return nil
}
