package hedge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

type mockVenue struct {
	mock.Mock
}

func (m *mockVenue) PlaceMarketOrder(ctx context.Context, order MarketOrder) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

func decision(orderType quotes.OrderType, hedged bool) *quotes.Decision {
	return &quotes.Decision{
		Type: orderType,
		Pair: &quotes.Pair{
			Base:        quotes.Token{Decimals: 18},
			HedgeSymbol: "ETHUSDC",
			Hedge:       hedged,
		},
		BaseAmount: new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)),
	}
}

func TestOrderForSide(t *testing.T) {
	assert.Equal(t, MarketOrder{Symbol: "ETHUSDC", Side: SideBuy, Quantity: "1.5"}, OrderFor(decision(quotes.Ask, true)))
	assert.Equal(t, SideSell, OrderFor(decision(quotes.Bid, true)).Side)
}

func TestHedgeSkippedWhenDisabled(t *testing.T) {
	venue := &mockVenue{}
	result, err := NewCoordinator(venue).Hedge(context.Background(), decision(quotes.Ask, false))
	require.NoError(t, err)
	assert.Nil(t, result)
	venue.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything)
}

func TestHedgePlacesOrder(t *testing.T) {
	venue := &mockVenue{}
	venue.On("PlaceMarketOrder", mock.Anything, MarketOrder{Symbol: "ETHUSDC", Side: SideSell, Quantity: "1.5"}).Return("v-1", nil)

	result, err := NewCoordinator(venue).Hedge(context.Background(), decision(quotes.Bid, true))
	require.NoError(t, err)
	assert.Equal(t, "v-1", result.OrderID)
	venue.AssertExpectations(t)
}

func TestHedgeFailureRejects(t *testing.T) {
	venue := &mockVenue{}
	venue.On("PlaceMarketOrder", mock.Anything, mock.Anything).Return("", errors.New("insufficient margin"))

	_, err := NewCoordinator(venue).Hedge(context.Background(), decision(quotes.Ask, true))
	require.Error(t, err)
	assert.Equal(t, ReasonHedgeFailed, quotes.ReasonOf(err))

	_, err = NewCoordinator(nil).Hedge(context.Background(), decision(quotes.Ask, true))
	assert.Equal(t, ReasonHedgeFailed, quotes.ReasonOf(err))
}

func TestSignerHeaders(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")
	signer.now = func() time.Time { return time.UnixMilli(1700000000000) }

	headers := signer.Headers(http.MethodPost, placeOrderPath, "", `{"a":1}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000000POST" + placeOrderPath + `{"a":1}`))

	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), headers["ACCESS-SIGN"])
	assert.Equal(t, "1700000000000", headers["ACCESS-TIMESTAMP"])
	assert.Equal(t, "key", headers["ACCESS-KEY"])
	assert.Equal(t, "pass", headers["ACCESS-PASSPHRASE"])

	signer.Wipe()
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, signer.secretKey)
}

func TestRestVenuePlaceMarketOrder(t *testing.T) {
	var received placeOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, placeOrderPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("ACCESS-SIGN"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Write([]byte(`{"code":"00000","msg":"success","data":{"orderId":"123","clientOid":"x"}}`))
	}))
	defer server.Close()

	venue := NewRestVenue(server.URL+"/", NewSigner("k", "s", "p"), time.Second)
	orderID, err := venue.PlaceMarketOrder(context.Background(), MarketOrder{Symbol: "ETHUSDC", Side: SideBuy, Quantity: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, "123", orderID)
	assert.Equal(t, "market", received.OrderType)
	assert.Equal(t, "1.5", received.Size)
	assert.Equal(t, "buy", received.Side)
	assert.NotEmpty(t, received.ClientOid)
}

func TestRestVenueRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"43012","msg":"insufficient balance"}`))
	}))
	defer server.Close()

	venue := NewRestVenue(server.URL, NewSigner("k", "s", "p"), time.Second)
	_, err := venue.PlaceMarketOrder(context.Background(), MarketOrder{Symbol: "ETHUSDC", Side: SideSell, Quantity: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}
