package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
)

//Event is a decoded contract log.
type Event struct {
	Name   string
	TxHash common.Hash
	Block  uint64
	Values map[string]interface{}
}

func (e Event) Address(name string) common.Address {
	v, _ := e.Values[name].(common.Address)
	return v
}

func (e Event) Amount(name string) *big.Int {
	if v, ok := e.Values[name].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

func (e Event) Hash(name string) common.Hash {
	if v, ok := e.Values[name].([32]byte); ok {
		return common.Hash(v)
	}
	return common.Hash{}
}

type EventListener struct {
	abi     *abi.ABI
	address common.Address
}

func NewEventListener(contractABI *abi.ABI, address common.Address) *EventListener {
	return &EventListener{abi: contractABI, address: address}
}

//Decode turns a log into an Event. ok is false for logs of other contracts, token logs
//among them.
func (l *EventListener) Decode(eventLog types.Log) (Event, bool, error) {
	if eventLog.Address != l.address || len(eventLog.Topics) == 0 {
		return Event{}, false, nil
	}
	event, values, err := contractAbis.UnpackEvent(l.abi, eventLog)
	if err != nil {
		return Event{}, false, err
	}
	return Event{Name: event.Name, TxHash: eventLog.TxHash, Block: eventLog.BlockNumber, Values: values}, true, nil
}

//Listen decodes logs until ctx is done or logs is closed, passing contract events to handle.
func (l *EventListener) Listen(ctx context.Context, logs <-chan types.Log, handle func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case eventLog, ok := <-logs:
			if !ok {
				return
			}
			event, ok, err := l.Decode(eventLog)
			if err != nil {
				log.Warn().Err(err).Str("tx", eventLog.TxHash.Hex()).Msg("failed to decode contract log")
				continue
			}
			if ok {
				handle(event)
			}
		}
	}
}

//LogEvent writes a one line summary of a contract event.
func LogEvent(event Event) {
	entry := log.Info().Str("event", event.Name).Str("tx", event.TxHash.Hex()).Uint64("block", event.Block)
	switch event.Name {
	case "OrderFilledRFQ":
		entry = entry.Str("orderHash", event.Hash("orderHash").Hex()).
			Str("takingAmount", event.Amount("takingAmount").String()).
			Str("makingAmount", event.Amount("makingAmount").String())
	case "SessionCreated":
		entry = entry.Str("creator", event.Address("creator").Hex()).Str("sessionKey", event.Address("sessionKey").Hex())
	case "SessionUpdated", "SessionTerminated":
		entry = entry.Str("sender", event.Address("sender").Hex()).Str("sessionKey", event.Address("sessionKey").Hex())
	case "TokenDeposited", "TokenWithdrawn":
		entry = entry.Str("sender", event.Address("sender").Hex()).Str("amount", event.Amount("amount").String())
	case "BalanceTransfered":
		entry = entry.Str("from", event.Address("from").Hex()).Str("to", event.Address("to").Hex()).Str("amount", event.Amount("amount").String())
	case "PenaltyIssued", "SplitPenaltyIssued":
		entry = entry.Str("receiver", event.Address("receiver").Hex()).Str("amount", event.Amount("amount").String())
	}
	entry.Msg("contract event")
}
