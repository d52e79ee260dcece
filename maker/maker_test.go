package maker

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/blotter"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/hedge"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/metrics"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/settlement"
)

const (
	now     = uint64(1700000000)
	channel = "WETH-USDC"
)

var (
	contractAddress = common.HexToAddress("0xc0de000000000000000000000000000000000001")
	owner           = common.HexToAddress("0x0e0e000000000000000000000000000000000001")
	weth            = common.HexToAddress("0x4444444444444444444444444444444444444444")
	usdc            = common.HexToAddress("0x3333333333333333333333333333333333333333")
	oneEth          = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type mockVenue struct {
	mock.Mock
}

func (m *mockVenue) PlaceMarketOrder(ctx context.Context, order hedge.MarketOrder) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	bus      *bus.MemoryBus
	contract *settlement.Contract
	blotter  *blotter.Store
	metrics  *metrics.Metrics
	venue    *mockVenue
	taker    *ecdsa.PrivateKey
	maker    common.Address
	replies  <-chan bus.Message
}

func newFixture(t *testing.T, hedged bool) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := chain.NewManualClock(now)
	contract, err := settlement.Deploy(contractAbis.MustLoad(), settlement.Params{
		Address: contractAddress,
		Owner:   owner,
		Name:    "RFQ Router",
		Version: "1",
		ChainID: big.NewInt(137),
		Clock:   clock,
	})
	require.NoError(t, err)

	takerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	makerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(makerKey.PublicKey)
	taker := crypto.PubkeyToAddress(takerKey.PublicKey)

	ok := func(_ *chain.Receipt, err error) { require.NoError(t, err) }
	ok(contract.DeployToken(owner, weth, "WETH", 18))
	ok(contract.DeployToken(owner, usdc, "USDC", 6))
	ok(contract.Mint(owner, weth, taker, oneEth))
	ok(contract.Mint(owner, usdc, maker, big.NewInt(1_000_000_000)))
	ok(contract.Approve(taker, weth, contractAddress, oneEth))

	pair, err := quotes.PairFromConfig(config.Pair{
		Channel:         channel,
		BaseToken:       weth.Hex(),
		BaseDecimals:    18,
		QuoteToken:      usdc.Hex(),
		QuoteDecimals:   6,
		SlippagePercent: "1",
		HedgeSymbol:     "ETHUSDC",
		Hedge:           hedged,
	})
	require.NoError(t, err)

	store, err := blotter.Open(filepath.Join(t.TempDir(), "blotter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	collectors, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	memoryBus := bus.NewMemoryBus()
	venue := &mockVenue{}
	m, err := New(Params{
		Bus:       memoryBus,
		Pairs:     []*quotes.Pair{pair},
		Validator: quotes.NewValidator(maker, maker, contract.Codec(), contract, 60),
		Hedger:    hedge.NewCoordinator(venue),
		Submitter: settlement.NewLocalSubmitter(contract, maker),
		Blotter:   store,
		Metrics:   collectors,
		Clock:     clock,
	})
	require.NoError(t, err)

	replies, err := memoryBus.Subscribe(ctx, channel)
	require.NoError(t, err)

	go m.Run(ctx)
	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("maker did not start")
	}

	return &fixture{
		t:        t,
		ctx:      ctx,
		bus:      memoryBus,
		contract: contract,
		blotter:  store,
		metrics:  collectors,
		venue:    venue,
		taker:    takerKey,
		maker:    maker,
		replies:  replies,
	}
}

func (f *fixture) allowMaker() {
	_, err := f.contract.Approve(f.maker, usdc, contractAddress, big.NewInt(1_000_000_000))
	require.NoError(f.t, err)
}

func (f *fixture) publishDepth(bid string, ask string) {
	msg, err := bus.NewMessage(bus.EventStreamDepth, channel, bus.StreamDepth{
		OutboundBid: bid,
		OutboundAsk: ask,
		Timestamp:   int64(now) * 1000,
	})
	require.NoError(f.t, err)
	require.NoError(f.t, f.bus.Publish(f.ctx, msg))
}

//requestBid has the taker selling one WETH for quote USDC units.
func (f *fixture) requestBid(requestID string, quote int64) {
	taker := crypto.PubkeyToAddress(f.taker.PublicKey)
	codec := f.contract.Codec()
	takerData, err := codec.EncodeAssetData(orders.AssetTransfer{From: taker, To: f.maker, Amount: oneEth})
	require.NoError(f.t, err)
	makerData, err := codec.EncodeAssetData(orders.AssetTransfer{From: f.maker, To: taker, Amount: big.NewInt(quote)})
	require.NoError(f.t, err)
	order := &orders.RFQOrder{
		Info:            orders.PackInfo(1, now+60),
		FeeAmount:       new(big.Int),
		TakerAsset:      weth,
		MakerAsset:      usdc,
		FeeTokenAddress: usdc,
		TakerAssetData:  takerData,
		MakerAssetData:  makerData,
	}
	hash, err := codec.Hash(order)
	require.NoError(f.t, err)
	sig, err := orders.SignHash(hash, f.taker)
	require.NoError(f.t, err)

	req := &quotes.FillRequest{
		RequestID:   requestID,
		Type:        quotes.Bid,
		TakerAmount: oneEth,
		MakerAmount: big.NewInt(quote),
		Signature:   sig,
		Order:       order,
	}
	msg, err := bus.NewMessage(bus.EventExecuteOrder, channel, req.ToMessage())
	require.NoError(f.t, err)
	require.NoError(f.t, f.bus.Publish(f.ctx, msg))
}

//reply returns the next transaction_* message for the fixture channel.
func (f *fixture) reply() (string, bus.TransactionStatus) {
	f.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.replies:
			if msg.Event == bus.EventStreamDepth || msg.Event == bus.EventExecuteOrder {
				continue
			}
			var status bus.TransactionStatus
			require.NoError(f.t, msg.Decode(&status))
			return msg.Event, status
		case <-timeout:
			f.t.Fatal("no reply from maker")
			return "", bus.TransactionStatus{}
		}
	}
}

func (f *fixture) entries() []blotter.Entry {
	entries, err := f.blotter.List(context.Background(), channel, 0)
	require.NoError(f.t, err)
	return entries
}

func TestAcceptedFillSettles(t *testing.T) {
	f := newFixture(t, false)
	f.allowMaker()
	f.publishDepth("100", "101")
	f.requestBid("r-1", 99_200_000)

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionPosted, event)
	assert.Equal(t, "r-1", status.RequestID)
	require.NotEmpty(t, status.Hash)
	posted := status.Hash

	event, status = f.reply()
	assert.Equal(t, bus.EventTransactionFilled, event)
	assert.Equal(t, posted, status.Hash)

	taker := crypto.PubkeyToAddress(f.taker.PublicKey)
	assert.Equal(t, int64(99_200_000), f.contract.TokenBalance(usdc, taker).Int64())
	assert.Equal(t, 0, oneEth.Cmp(f.contract.TokenBalance(weth, f.maker)))

	entries := f.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, blotter.StatusPosted, entries[0].Status)
	assert.Equal(t, blotter.StatusFilled, entries[1].Status)
	assert.Equal(t, "99200000", entries[1].Price)
	assert.Equal(t, posted, entries[1].TxHash)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FillsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Settlements.WithLabelValues("filled")))
}

func TestSlippageRejected(t *testing.T) {
	f := newFixture(t, true)
	f.publishDepth("100", "101")
	f.requestBid("r-1", 98_500_000)

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionRejected, event)
	assert.Equal(t, "r-1", status.RequestID)
	assert.Equal(t, quotes.ReasonSlippage, status.Reason)
	assert.Empty(t, status.Hash)

	f.venue.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything)
	entries := f.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, blotter.StatusRejected, entries[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FillRejections.WithLabelValues(quotes.ReasonSlippage)))
}

func TestRejectedWithoutSnapshot(t *testing.T) {
	f := newFixture(t, false)
	f.requestBid("r-1", 99_200_000)

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionRejected, event)
	assert.Equal(t, quotes.ReasonNoSnapshot, status.Reason)
}

func TestHedgeFailureAbandonsFill(t *testing.T) {
	f := newFixture(t, true)
	f.allowMaker()
	f.venue.On("PlaceMarketOrder", mock.Anything, mock.Anything).Return("", errors.New("venue down"))
	f.publishDepth("100", "101")
	f.requestBid("r-1", 99_200_000)

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionRejected, event)
	assert.Equal(t, hedge.ReasonHedgeFailed, status.Reason)

	taker := crypto.PubkeyToAddress(f.taker.PublicKey)
	assert.Equal(t, int64(0), f.contract.TokenBalance(usdc, taker).Int64())
	assert.Zero(t, f.contract.InvalidatorForOrderRFQ(taker, 0).Sign())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Hedges.WithLabelValues("failed")))
}

func TestRevertedFillReportsFailure(t *testing.T) {
	f := newFixture(t, true)
	f.venue.On("PlaceMarketOrder", mock.Anything, hedge.MarketOrder{Symbol: "ETHUSDC", Side: hedge.SideSell, Quantity: "1"}).Return("v-1", nil)
	f.publishDepth("100", "101")
	f.requestBid("r-1", 99_200_000)

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionPosted, event)
	posted := status.Hash

	event, status = f.reply()
	assert.Equal(t, bus.EventTransactionFailed, event)
	assert.Equal(t, posted, status.Hash)
	assert.Equal(t, "ERC20: insufficient allowance", status.Reason)

	f.venue.AssertExpectations(t)
	entries := f.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, blotter.StatusFailed, entries[1].Status)
	assert.Equal(t, "v-1", entries[1].HedgeID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Settlements.WithLabelValues("failed")))
}

func TestMalformedRequestRejected(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.bus.Publish(f.ctx, bus.Message{Event: bus.EventExecuteOrder, Channel: channel, Data: []byte(`{"requestId":"r-9","type":"sideways"}`)}))

	event, status := f.reply()
	assert.Equal(t, bus.EventTransactionRejected, event)
	assert.Equal(t, "r-9", status.RequestID)
	assert.Equal(t, ReasonMalformedRequest, status.Reason)
}

//gatedRecorder holds every Append until gate is closed.
type gatedRecorder struct {
	gate     chan struct{}
	appended atomic.Int64
}

func (r *gatedRecorder) Append(ctx context.Context, entry blotter.Entry) (blotter.Entry, error) {
	<-r.gate
	r.appended.Add(1)
	return entry, nil
}

func TestRequestBurstDoesNotStallMaker(t *testing.T) {
	f := newFixture(t, false)
	pair, err := quotes.PairFromConfig(config.Pair{
		Channel:       channel,
		BaseToken:     weth.Hex(),
		BaseDecimals:  18,
		QuoteToken:    usdc.Hex(),
		QuoteDecimals: 6,
	})
	require.NoError(t, err)
	collectors, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	burstBus := bus.NewMemoryBus()
	recorder := &gatedRecorder{gate: make(chan struct{})}
	m, err := New(Params{
		Bus:       burstBus,
		Pairs:     []*quotes.Pair{pair},
		Validator: quotes.NewValidator(f.maker, f.maker, f.contract.Codec(), f.contract, 60),
		Submitter: settlement.NewLocalSubmitter(f.contract, f.maker),
		Blotter:   recorder,
		Metrics:   collectors,
	})
	require.NoError(t, err)
	go m.Run(f.ctx)
	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("maker did not start")
	}

	const requests = 400
	go func() {
		for i := 0; i < requests; i++ {
			msg := bus.Message{Event: bus.EventExecuteOrder, Channel: channel, Data: []byte(`{"requestId":"r","type":"sideways"}`)}
			if err := burstBus.Publish(f.ctx, msg); err != nil {
				return
			}
		}
	}()
	time.Sleep(100 * time.Millisecond)
	close(recorder.gate)

	require.Eventually(t, func() bool { return recorder.appended.Load() == requests }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(requests), testutil.ToFloat64(collectors.FillRequests))
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}
