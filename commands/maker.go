package commands

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/blotter"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/hedge"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/maker"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/metrics"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quoter"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
	rpcClient "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/rpc_client"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/settlement"
)

//devFunding is minted to the maker for every pair token in dev mode, in whole tokens.
const devFunding = 1_000_000

type ledger interface {
	quotes.LedgerView
	maker.Submitter
}

//localLedger reads from and submits to an in-process contract.
type localLedger struct {
	*settlement.Contract
	*settlement.LocalSubmitter
}

func makerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maker",
		Short: "Run the market maker",
	}

	var withQuotes bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Answer fill requests on every configured pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runMaker(ctx, withQuotes)
		},
	}
	run.Flags().BoolVar(&withQuotes, "quotes", false, "also publish venue snapshots for the configured pairs")
	cmd.AddCommand(run)
	return cmd
}

func openBus(ctx context.Context) (bus.Bus, error) {
	if conf.Bus.RedisURL == "" {
		log.Warn().Msg("no bus.redis_url configured, using an in-process bus")
		return bus.NewMemoryBus(), nil
	}
	return bus.DialRedis(ctx, conf.Bus.RedisURL)
}

func runMaker(ctx context.Context, withQuotes bool) error {
	pairs, err := quotes.PairsFromConfig(conf)
	if err != nil {
		return err
	}
	sender, err := senderWallet()
	if err != nil {
		return err
	}
	makerAddress := common.HexToAddress(conf.Wallet.Address)

	messageBus, err := openBus(ctx)
	if err != nil {
		return err
	}
	defer messageBus.Close()

	var codec *orders.Codec
	var settlementLedger ledger
	if conf.Chain.NodeHttpEndpoint == "" {
		contract, err := deployDevContract(ctx, pairs, makerAddress)
		if err != nil {
			return err
		}
		codec = contract.Codec()
		settlementLedger = localLedger{contract, settlement.NewLocalSubmitter(contract, sender.Address)}
	} else {
		client, err := rpcClient.Dial(ctx, conf.Chain, contractAbis.MustLoad(), sender)
		if err != nil {
			return err
		}
		if codec, err = signingCodec(); err != nil {
			return err
		}
		settlementLedger = client
		if conf.Chain.NodeWebsocketsEndpoint != "" {
			routerLogs := make(chan types.Log, 64)
			if err := rpcClient.SubscribeRouterLogs(ctx, conf.Chain.NodeWebsocketsEndpoint, client.Contract(), routerLogs); err != nil {
				log.Warn().Err(err).Msg("router events will not be logged")
			} else {
				listener := settlement.NewEventListener(contractAbis.MustLoad().RFQRouter, client.Contract())
				go listener.Listen(ctx, routerLogs, settlement.LogEvent)
			}
		}
	}

	store, err := blotter.Open(conf.Maker.BlotterPath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	collectors, err := metrics.New(registry)
	if err != nil {
		return err
	}
	if conf.Maker.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, conf.Maker.MetricsAddr, registry); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var venue hedge.Venue
	if conf.Venue.RestURL != "" {
		signer := hedge.NewSigner(conf.Venue.APIKey, conf.Venue.APISecret, conf.Venue.Passphrase)
		defer signer.Wipe()
		venue = hedge.NewRestVenue(conf.Venue.RestURL, signer, time.Duration(conf.Venue.TimeoutSeconds)*time.Second)
	}

	m, err := maker.New(maker.Params{
		Bus:       messageBus,
		Pairs:     pairs,
		Validator: quotes.NewValidator(makerAddress, sender.Address, codec, settlementLedger, uint64(conf.Maker.SnapshotMaxAgeSeconds)),
		Hedger:    hedge.NewCoordinator(venue),
		Submitter: settlementLedger,
		Blotter:   store,
		Metrics:   collectors,
	})
	if err != nil {
		return err
	}

	if withQuotes {
		if err := startQuoter(ctx, messageBus, pairs); err != nil {
			return err
		}
	}

	info("maker %s answering %d pair(s), fills sent by %s", makerAddress.Hex(), len(pairs), sender.Address.Hex())
	return m.Run(ctx)
}

//deployDevContract starts an in-process settlement contract with the pair tokens deployed
//and the maker funded and approved.
func deployDevContract(ctx context.Context, pairs []*quotes.Pair, makerAddress common.Address) (*settlement.Contract, error) {
	contractAddress := common.HexToAddress(conf.Chain.ContractAddress)
	contract, err := settlement.Deploy(contractAbis.MustLoad(), settlement.Params{
		Address: contractAddress,
		Owner:   makerAddress,
		Name:    conf.Chain.DomainName,
		Version: conf.Chain.DomainVersion,
		ChainID: chainID(),
		Clock:   chain.SystemClock{},
	})
	if err != nil {
		return nil, err
	}

	for _, pair := range pairs {
		for _, token := range []quotes.Token{pair.Base, pair.Quote} {
			if symbol, decimals, ok := contract.TokenMetadata(token.Address); ok {
				if decimals != token.Decimals {
					return nil, errors.Errorf("pair %s: token %s (%s) already deployed with %d decimals, not %d",
						pair.Channel, token.Address.Hex(), symbol, decimals, token.Decimals)
				}
				continue
			}
			amount := new(big.Int).Mul(big.NewInt(devFunding), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil))
			steps := []func() (*chain.Receipt, error){
				func() (*chain.Receipt, error) { return contract.DeployToken(makerAddress, token.Address, token.Symbol, token.Decimals) },
				func() (*chain.Receipt, error) { return contract.Mint(makerAddress, token.Address, makerAddress, amount) },
				func() (*chain.Receipt, error) {
					return contract.Approve(makerAddress, token.Address, contractAddress, amount)
				},
			}
			for _, step := range steps {
				if _, err := step(); err != nil {
					return nil, errors.Wrapf(err, "dev token %s", token.Address.Hex())
				}
			}
		}
	}

	routerLogs := make(chan types.Log, 64)
	unsubscribe := contract.Runtime().Subscribe(routerLogs)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	listener := settlement.NewEventListener(contractAbis.MustLoad().RFQRouter, contractAddress)
	go listener.Listen(ctx, routerLogs, settlement.LogEvent)

	log.Warn().Str("contract", contractAddress.Hex()).Msg("no chain.node_http_endpoint configured, settling against an in-process contract")
	return contract, nil
}

func startQuoter(ctx context.Context, messageBus bus.Bus, pairs []*quotes.Pair) error {
	if conf.Venue.WebsocketURL == "" {
		return errors.New("venue.websocket_url is required to publish quotes")
	}
	publisher := quoter.NewPublisher(messageBus, pairs)
	tickers := make(chan quoter.Ticker, 64)
	feed := quoter.NewFeed(conf.Venue.WebsocketURL, publisher.Symbols(), tickers)
	go feed.Run(ctx)
	go publisher.Run(ctx, tickers)
	return nil
}
