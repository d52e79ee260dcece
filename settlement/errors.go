package settlement

import "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"

var (
	ErrOrderExpired          = chain.NewError(chain.KindValidation, "order expired")
	ErrOneAmountShouldBeZero = chain.NewError(chain.KindValidation, "one amount should be 0")
	ErrTakingAmountExceeded  = chain.NewError(chain.KindValidation, "taking amount exceeded")
	ErrMakingAmountExceeded  = chain.NewError(chain.KindValidation, "making amount exceeded")
	ErrZeroFill              = chain.NewError(chain.KindValidation, "fill amount is zero")

	ErrExpiredTakerSession  = chain.NewError(chain.KindAuthorization, "expired taker session")
	ErrExpiredMakerSession  = chain.NewError(chain.KindAuthorization, "expired maker session")
	ErrBadSignature         = chain.NewError(chain.KindAuthorization, "bad signature")
	ErrSignerIsCounterparty = chain.NewError(chain.KindAuthorization, "SNE")
	ErrPrivateOrder         = chain.NewError(chain.KindAuthorization, "private order")
)
