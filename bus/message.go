package bus

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
)

const (
	EventStreamDepth         = "stream_depth"
	EventExecuteOrder        = "action/execute_order"
	EventTransactionPosted   = "transaction_posted"
	EventTransactionFilled   = "transaction_filled"
	EventTransactionFailed   = "transaction_failed"
	EventTransactionRejected = "transaction_rejected"
)

//Message is the envelope of everything sent over a pair channel.
type Message struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

func NewMessage(event string, channel string, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, errors.Wrapf(err, "failed to marshal %s payload", event)
	}
	return Message{Event: event, Channel: channel, Data: data}, nil
}

//Matches reports whether m is one of events; an empty set matches everything.
func (m Message) Matches(events []string) bool {
	if len(events) == 0 {
		return true
	}
	for _, event := range events {
		if m.Event == event {
			return true
		}
	}
	return false
}

func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s payload", m.Event)
	}
	return nil
}

//IsTerminal reports whether the message ends a fill request.
func (m Message) IsTerminal() bool {
	switch m.Event {
	case EventTransactionFilled, EventTransactionFailed, EventTransactionRejected:
		return true
	}
	return false
}

//StreamDepth is a price snapshot. Prices are decimal strings in quote token units per one
//whole base token; Timestamp is unix milliseconds.
type StreamDepth struct {
	InboundBid  string `json:"inboundBid"`
	InboundAsk  string `json:"inboundAsk"`
	OutboundBid string `json:"outboundBid"`
	OutboundAsk string `json:"outboundAsk"`
	Timestamp   int64  `json:"timestamp"`
}

//ExecuteOrder asks the maker to fill a signed order. Amounts are integer strings in token
//smallest units, the signature is 0x prefixed hex.
type ExecuteOrder struct {
	RequestID           string          `json:"requestId"`
	Type                string          `json:"type"`
	TakerAmount         string          `json:"takerAmount"`
	MakerAmount         string          `json:"makerAmount"`
	LimitOrderSignature string          `json:"limitOrderSignature"`
	LimitOrder          orders.RFQOrder `json:"limitOrder"`
	SessionKey          common.Address  `json:"sessionKey"`
}

type TransactionStatus struct {
	RequestID string `json:"requestId,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

//Bus is a publish/subscribe transport keyed by channel name.
type Bus interface {
	Publish(ctx context.Context, message Message) error
	//Subscribe delivers messages published on channel until ctx is done. When events is not
	//empty only those events are delivered.
	Subscribe(ctx context.Context, channel string, events ...string) (<-chan Message, error)
	Close() error
}
