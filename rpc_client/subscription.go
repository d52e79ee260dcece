package rpcClient

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//SubscribeRouterLogs streams the router's event logs from a websocket node into logs until
//ctx is done.
func SubscribeRouterLogs(ctx context.Context, websocketURL string, contract common.Address, logs chan<- types.Log) error {
	wsClient, err := ethclient.DialContext(ctx, websocketURL)
	if err != nil {
		return errors.Wrapf(err, "failed to dial %s", websocketURL)
	}

	eventLogsFilter := ethereum.FilterQuery{Addresses: []common.Address{contract}}
	subscription, err := wsClient.SubscribeFilterLogs(ctx, eventLogsFilter, logs)
	if err != nil {
		wsClient.Close()
		return errors.Wrap(err, "failed to subscribe to router logs")
	}

	go func() {
		defer wsClient.Close()
		defer subscription.Unsubscribe()
		select {
		case <-ctx.Done():
		case err := <-subscription.Err():
			if err != nil {
				log.Error().Err(err).Msg("router log subscription ended")
			}
		}
	}()
	return nil
}
