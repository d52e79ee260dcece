package taker

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

var ErrNoPrice = errors.New("snapshot has no outbound price")

//Outcome is the maker's final answer to a fill request.
type Outcome struct {
	Event  string
	Hash   string
	Reason string
}

func (o Outcome) Filled() bool {
	return o.Event == bus.EventTransactionFilled
}

//Client requests fills from a maker on behalf of taker. Orders are signed with signer, either
//the taker's own key or its session key.
type Client struct {
	bus    bus.Bus
	codec  *orders.Codec
	taker  common.Address
	maker  common.Address
	signer *ecdsa.PrivateKey
}

func NewClient(b bus.Bus, codec *orders.Codec, taker common.Address, maker common.Address, signer *ecdsa.PrivateKey) *Client {
	return &Client{bus: b, codec: codec, taker: taker, maker: maker, signer: signer}
}

//BuildOrder prices amount at the snapshot's outbound quote. For a bid the taker sells amount
//of base, for an ask it spends amount of quote.
func (c *Client) BuildOrder(pair *quotes.Pair, snapshot *quotes.Snapshot, orderType quotes.OrderType, amount *big.Int, expiration uint64, orderID uint64) (*quotes.FillRequest, error) {
	price := snapshot.Reference(orderType)
	if price == nil || price.Sign() == 0 {
		return nil, ErrNoPrice
	}

	var takerAsset, makerAsset common.Address
	var makerAmount *big.Int
	switch orderType {
	case quotes.Bid:
		takerAsset, makerAsset = pair.Base.Address, pair.Quote.Address
		makerAmount = quotes.QuoteFor(amount, pair.Base.Decimals, price)
	case quotes.Ask:
		takerAsset, makerAsset = pair.Quote.Address, pair.Base.Address
		makerAmount = quotes.BaseFor(amount, pair.Base.Decimals, price)
	default:
		return nil, errors.Errorf("unknown order type %q", orderType)
	}
	if makerAmount.Sign() == 0 {
		return nil, errors.Errorf("amount %s is too small to fill at %s", amount, price)
	}

	takerData, err := c.codec.EncodeAssetData(orders.AssetTransfer{From: c.taker, To: c.maker, Amount: amount})
	if err != nil {
		return nil, err
	}
	makerData, err := c.codec.EncodeAssetData(orders.AssetTransfer{From: c.maker, To: c.taker, Amount: makerAmount})
	if err != nil {
		return nil, err
	}
	order := &orders.RFQOrder{
		Info:            orders.PackInfo(orderID, expiration),
		FeeAmount:       new(big.Int),
		TakerAsset:      takerAsset,
		MakerAsset:      makerAsset,
		FeeTokenAddress: pair.Quote.Address,
		TakerAssetData:  takerData,
		MakerAssetData:  makerData,
	}

	hash, err := c.codec.Hash(order)
	if err != nil {
		return nil, err
	}
	signature, err := orders.SignHash(hash, c.signer)
	if err != nil {
		return nil, err
	}

	req := &quotes.FillRequest{
		RequestID:   uuid.NewString(),
		Channel:     pair.Channel,
		Type:        orderType,
		TakerAmount: new(big.Int).Set(amount),
		MakerAmount: makerAmount,
		Signature:   signature,
		Order:       order,
	}
	if signerAddress := crypto.PubkeyToAddress(c.signer.PublicKey); signerAddress != c.taker {
		req.SessionKey = signerAddress
	}
	return req, nil
}

//WaitSnapshot returns the next snapshot published on the pair channel.
func (c *Client) WaitSnapshot(ctx context.Context, pair *quotes.Pair) (*quotes.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := c.bus.Subscribe(ctx, pair.Channel, bus.EventStreamDepth)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil, bus.ErrClosed
			}
			var depth bus.StreamDepth
			if err := msg.Decode(&depth); err != nil {
				return nil, err
			}
			return quotes.SnapshotFromDepth(pair, depth)
		}
	}
}

//RequestFill publishes req and waits for the maker's terminal reply to it.
func (c *Client) RequestFill(ctx context.Context, req *quotes.FillRequest) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := c.bus.Subscribe(ctx, req.Channel,
		bus.EventTransactionPosted, bus.EventTransactionFilled, bus.EventTransactionFailed, bus.EventTransactionRejected)
	if err != nil {
		return Outcome{}, err
	}
	msg, err := bus.NewMessage(bus.EventExecuteOrder, req.Channel, req.ToMessage())
	if err != nil {
		return Outcome{}, err
	}
	if err := c.bus.Publish(ctx, msg); err != nil {
		return Outcome{}, errors.Wrap(err, "failed to publish fill request")
	}
	log.Info().Str("channel", req.Channel).Str("requestId", req.RequestID).Str("type", string(req.Type)).Msg("fill requested")

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case reply, ok := <-messages:
			if !ok {
				return Outcome{}, bus.ErrClosed
			}
			var status bus.TransactionStatus
			if err := reply.Decode(&status); err != nil || status.RequestID != req.RequestID {
				continue
			}
			if reply.Event == bus.EventTransactionPosted {
				log.Info().Str("requestId", req.RequestID).Str("hash", status.Hash).Msg("fill posted")
				continue
			}
			outcome := Outcome{Event: reply.Event, Hash: status.Hash, Reason: status.Reason}
			log.Info().Str("requestId", req.RequestID).Str("event", outcome.Event).Str("hash", outcome.Hash).Str("reason", outcome.Reason).Msg("fill request finished")
			return outcome, nil
		}
	}
}
