package maker

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/blotter"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/hedge"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/metrics"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

const (
	ReasonMalformedRequest = "malformed fill request"
	ReasonUnknownChannel   = "unknown channel"
	ReasonSubmitFailed     = "transaction submission failed"

	inboxSize = 256
)

//Submitter posts a fill to the settlement contract and waits for its outcome.
type Submitter interface {
	SubmitFill(ctx context.Context, order *orders.RFQOrder, signature []byte, takingAmount *big.Int, makingAmount *big.Int) (common.Hash, error)
	WaitFill(ctx context.Context, hash common.Hash) error
}

type Hedger interface {
	Hedge(ctx context.Context, decision *quotes.Decision) (*hedge.Result, error)
}

type Recorder interface {
	Append(ctx context.Context, entry blotter.Entry) (blotter.Entry, error)
}

type Params struct {
	Bus       bus.Bus
	Pairs     []*quotes.Pair
	Validator *quotes.Validator
	Hedger    Hedger
	Submitter Submitter
	Blotter   Recorder
	Metrics   *metrics.Metrics
	Clock     chain.Clock
}

//Maker answers fill requests on every configured pair channel. All messages are handled
//one at a time by Run.
type Maker struct {
	bus       bus.Bus
	pairs     map[string]*quotes.Pair
	validator *quotes.Validator
	hedger    Hedger
	submitter Submitter
	blotter   Recorder
	metrics   *metrics.Metrics
	clock     chain.Clock

	snapshots map[string]*quotes.Snapshot
	ready     chan struct{}
}

func New(params Params) (*Maker, error) {
	if params.Bus == nil || params.Validator == nil || params.Submitter == nil || params.Metrics == nil {
		return nil, errors.New("maker requires a bus, validator, submitter and metrics")
	}
	if len(params.Pairs) == 0 {
		return nil, errors.New("maker requires at least one pair")
	}
	if params.Clock == nil {
		params.Clock = chain.SystemClock{}
	}

	pairs := make(map[string]*quotes.Pair, len(params.Pairs))
	for _, pair := range params.Pairs {
		if _, ok := pairs[pair.Channel]; ok {
			return nil, errors.Errorf("duplicate pair channel %s", pair.Channel)
		}
		pairs[pair.Channel] = pair
	}

	return &Maker{
		bus:       params.Bus,
		pairs:     pairs,
		validator: params.Validator,
		hedger:    params.Hedger,
		submitter: params.Submitter,
		blotter:   params.Blotter,
		metrics:   params.Metrics,
		clock:     params.Clock,
		snapshots: make(map[string]*quotes.Snapshot),
		ready:     make(chan struct{}),
	}, nil
}

//Ready is closed once Run is subscribed to every pair channel.
func (m *Maker) Ready() <-chan struct{} {
	return m.ready
}

func (m *Maker) Run(ctx context.Context) error {
	inbox := make(chan bus.Message, inboxSize)
	for channel := range m.pairs {
		messages, err := m.bus.Subscribe(ctx, channel, bus.EventStreamDepth, bus.EventExecuteOrder)
		if err != nil {
			return errors.Wrapf(err, "failed to subscribe to %s", channel)
		}
		go forward(ctx, messages, inbox)
	}
	close(m.ready)
	log.Info().Int("pairs", len(m.pairs)).Msg("maker running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maker stopped")
			return nil
		case msg := <-inbox:
			m.handle(ctx, msg)
		}
	}
}

//forward moves inbound messages into the inbox. The subscriptions leave out the maker's own
//transaction_* replies, so publishing a reply never waits on the maker's queue.
func forward(ctx context.Context, messages <-chan bus.Message, inbox chan<- bus.Message) {
	for msg := range messages {
		select {
		case inbox <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Maker) handle(ctx context.Context, msg bus.Message) {
	switch msg.Event {
	case bus.EventStreamDepth:
		m.handleDepth(msg)
	case bus.EventExecuteOrder:
		m.handleExecute(ctx, msg)
	}
}

func (m *Maker) handleDepth(msg bus.Message) {
	pair, ok := m.pairs[msg.Channel]
	if !ok {
		return
	}
	var depth bus.StreamDepth
	if err := msg.Decode(&depth); err != nil {
		log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed snapshot")
		return
	}
	snapshot, err := quotes.SnapshotFromDepth(pair, depth)
	if err != nil {
		log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed snapshot")
		return
	}
	m.snapshots[msg.Channel] = snapshot
	m.metrics.Snapshots.WithLabelValues(msg.Channel).Inc()
	log.Debug().Str("channel", msg.Channel).Str("outboundBid", depth.OutboundBid).Str("outboundAsk", depth.OutboundAsk).Msg("snapshot updated")
}

func (m *Maker) handleExecute(ctx context.Context, msg bus.Message) {
	start := time.Now()
	defer m.metrics.ObserveSince(start)
	m.metrics.FillRequests.Inc()

	var wire bus.ExecuteOrder
	if err := msg.Decode(&wire); err != nil {
		m.reject(ctx, msg.Channel, blotter.Entry{}, errors.Wrap(&quotes.Rejection{Reason: ReasonMalformedRequest}, err.Error()))
		return
	}
	entry := blotter.Entry{Channel: msg.Channel, RequestID: wire.RequestID, Type: wire.Type}

	pair, ok := m.pairs[msg.Channel]
	if !ok {
		m.reject(ctx, msg.Channel, entry, &quotes.Rejection{Reason: ReasonUnknownChannel})
		return
	}
	req, err := quotes.FillRequestFromMessage(msg.Channel, wire)
	if err != nil {
		m.reject(ctx, msg.Channel, entry, errors.Wrap(&quotes.Rejection{Reason: ReasonMalformedRequest}, err.Error()))
		return
	}

	decision, err := m.validator.Validate(ctx, pair, req, m.snapshots[msg.Channel], m.clock.Now())
	if err != nil {
		m.reject(ctx, msg.Channel, entry, err)
		return
	}
	entry.TakerAmount, entry.MakerAmount = legAmounts(decision)
	entry.Price = decision.Price.String()
	m.metrics.FillsAccepted.Inc()
	log.Info().Str("channel", msg.Channel).Str("requestId", req.RequestID).Str("type", string(decision.Type)).Str("price", entry.Price).Str("taker", decision.Taker.Hex()).Msg("fill request accepted")

	var hedged *hedge.Result
	if m.hedger != nil {
		hedged, err = m.hedger.Hedge(ctx, decision)
		if err != nil {
			m.metrics.Hedges.WithLabelValues("failed").Inc()
			m.reject(ctx, msg.Channel, entry, err)
			return
		}
		if hedged != nil {
			m.metrics.Hedges.WithLabelValues("placed").Inc()
			entry.HedgeID = hedged.OrderID
		}
	}

	hash, err := m.submitter.SubmitFill(ctx, req.Order, req.Signature, new(big.Int), new(big.Int))
	if err != nil {
		if hedged != nil {
			log.Error().Err(err).Str("requestId", req.RequestID).Str("hedgeOrderId", hedged.OrderID).Msg("fill submission failed after hedging, hedge was not reversed")
		} else {
			log.Error().Err(err).Str("requestId", req.RequestID).Msg("fill submission failed")
		}
		m.metrics.Settlements.WithLabelValues("failed").Inc()
		entry.Status, entry.Reason = blotter.StatusFailed, ReasonSubmitFailed
		m.record(ctx, entry)
		m.publish(ctx, bus.EventTransactionFailed, msg.Channel, bus.TransactionStatus{RequestID: req.RequestID, Reason: ReasonSubmitFailed})
		return
	}

	entry.TxHash = hash.Hex()
	entry.Status = blotter.StatusPosted
	m.record(ctx, entry)
	m.publish(ctx, bus.EventTransactionPosted, msg.Channel, bus.TransactionStatus{RequestID: req.RequestID, Hash: entry.TxHash})
	log.Info().Str("requestId", req.RequestID).Str("hash", entry.TxHash).Msg("fill posted")

	if err := m.submitter.WaitFill(ctx, hash); err != nil {
		reason := quotes.ReasonOf(err)
		m.metrics.Settlements.WithLabelValues("failed").Inc()
		entry.Status, entry.Reason = blotter.StatusFailed, reason
		m.record(ctx, entry)
		m.publish(ctx, bus.EventTransactionFailed, msg.Channel, bus.TransactionStatus{RequestID: req.RequestID, Hash: entry.TxHash, Reason: reason})
		if hedged != nil {
			log.Error().Str("requestId", req.RequestID).Str("hash", entry.TxHash).Str("reason", reason).Str("hedgeOrderId", hedged.OrderID).Msg("fill failed after hedging, hedge was not reversed")
		} else {
			log.Warn().Str("requestId", req.RequestID).Str("hash", entry.TxHash).Str("reason", reason).Msg("fill failed")
		}
		return
	}

	m.metrics.Settlements.WithLabelValues("filled").Inc()
	entry.Status, entry.Reason = blotter.StatusFilled, ""
	m.record(ctx, entry)
	m.publish(ctx, bus.EventTransactionFilled, msg.Channel, bus.TransactionStatus{RequestID: req.RequestID, Hash: entry.TxHash})
	log.Info().Str("requestId", req.RequestID).Str("hash", entry.TxHash).Msg("fill confirmed")
}

func (m *Maker) reject(ctx context.Context, channel string, entry blotter.Entry, err error) {
	reason := quotes.ReasonOf(err)
	m.metrics.FillRejections.WithLabelValues(reason).Inc()
	log.Info().Err(err).Str("channel", channel).Str("requestId", entry.RequestID).Str("reason", reason).Msg("fill request rejected")

	entry.Channel = channel
	entry.Status, entry.Reason = blotter.StatusRejected, reason
	m.record(ctx, entry)
	m.publish(ctx, bus.EventTransactionRejected, channel, bus.TransactionStatus{RequestID: entry.RequestID, Reason: reason})
}

func (m *Maker) record(ctx context.Context, entry blotter.Entry) {
	if m.blotter == nil {
		return
	}
	entry.ID = ""
	if _, err := m.blotter.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("requestId", entry.RequestID).Msg("failed to record blotter entry")
	}
}

func (m *Maker) publish(ctx context.Context, event string, channel string, status bus.TransactionStatus) {
	msg, err := bus.NewMessage(event, channel, status)
	if err == nil {
		err = m.bus.Publish(ctx, msg)
	}
	if err != nil {
		log.Error().Err(err).Str("event", event).Str("channel", channel).Msg("failed to publish")
	}
}

//legAmounts returns the order's taker and maker amounts.
func legAmounts(decision *quotes.Decision) (string, string) {
	if decision.Type == quotes.Bid {
		return decision.BaseAmount.String(), decision.QuoteAmount.String()
	}
	return decision.QuoteAmount.String(), decision.BaseAmount.String()
}
