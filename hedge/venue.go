package hedge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const placeOrderPath = "/api/v2/spot/trade/place-order"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

//MarketOrder is a venue market order. Quantity is a decimal string in base units.
type MarketOrder struct {
	Symbol   string
	Side     Side
	Quantity string
}

type Venue interface {
	PlaceMarketOrder(ctx context.Context, order MarketOrder) (string, error)
}

//RestVenue places orders through the venue's signed REST API.
type RestVenue struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
}

func NewRestVenue(baseURL string, signer *Signer, timeout time.Duration) *RestVenue {
	return &RestVenue{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type placeOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Force     string `json:"force"`
	Size      string `json:"size"`
	ClientOid string `json:"clientOid"`
}

type venueResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		OrderID   string `json:"orderId"`
		ClientOid string `json:"clientOid"`
	} `json:"data"`
}

//PlaceMarketOrder returns the venue order id.
func (v *RestVenue) PlaceMarketOrder(ctx context.Context, order MarketOrder) (string, error) {
	body, err := json.Marshal(placeOrderRequest{
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		OrderType: "market",
		Force:     "gtc",
		Size:      order.Quantity,
		ClientOid: uuid.NewString(),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+placeOrderPath, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	for k, val := range v.signer.Headers(http.MethodPost, placeOrderPath, "", string(body)) {
		req.Header.Set(k, val)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "venue request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "failed to read venue response")
	}
	var decoded venueResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", errors.Wrapf(err, "venue returned %d with an unreadable body", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || decoded.Code != "00000" {
		return "", errors.Errorf("venue rejected order: %s %s", decoded.Code, decoded.Msg)
	}

	log.Debug().Str("symbol", order.Symbol).Str("side", string(order.Side)).Str("orderId", decoded.Data.OrderID).Msg("venue order placed")
	return decoded.Data.OrderID, nil
}
