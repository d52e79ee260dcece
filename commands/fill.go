package commands

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/taker"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/wallet"
)

func fillCmd() *cobra.Command {
	var (
		makerAddress string
		ttl          time.Duration
		orderID      uint64
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "fill <channel> <bid|ask> <amount>",
		Short: "Request a fill from a maker at its current quote",
		Long: "Request a fill from a maker at its current quote. For a bid, amount is the base " +
			"amount sold; for an ask, the quote amount spent. Amounts are in whole tokens.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if conf.Bus.RedisURL == "" {
				return errors.New("bus.redis_url is required to request fills")
			}
			pair, err := findPair(args[0])
			if err != nil {
				return err
			}
			orderType, err := quotes.ParseOrderType(args[1])
			if err != nil {
				return err
			}
			decimals, makerDecimals := pair.Base.Decimals, pair.Quote.Decimals
			if orderType == quotes.Ask {
				decimals, makerDecimals = pair.Quote.Decimals, pair.Base.Decimals
			}
			amount, err := parseAmount(args[2], decimals)
			if err != nil {
				return err
			}
			makerAccount, err := parseAddress(makerAddress)
			if err != nil {
				return errors.Wrap(err, "--maker")
			}
			if orderID == 0 {
				orderID = uint64(time.Now().UnixNano())
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
			defer cancelTimeout()

			signer, err := wallet.LoadSessionKey(conf.Wallet)
			if err != nil {
				return err
			}
			if signer == nil {
				eoa, err := wallet.Load(conf.Wallet, chainID())
				if err != nil {
					return err
				}
				signer = eoa.PrivateKey
			}
			codec, err := signingCodec()
			if err != nil {
				return err
			}
			messageBus, err := bus.DialRedis(ctx, conf.Bus.RedisURL)
			if err != nil {
				return err
			}
			defer messageBus.Close()

			client := taker.NewClient(messageBus, codec, common.HexToAddress(conf.Wallet.Address), makerAccount, signer)
			snapshot, err := client.WaitSnapshot(ctx, pair)
			if err != nil {
				return errors.Wrap(err, "no snapshot from maker")
			}
			req, err := client.BuildOrder(pair, snapshot, orderType, amount, uint64(time.Now().Add(ttl).Unix()), orderID)
			if err != nil {
				return err
			}
			field("request", req.RequestID)
			field("taker amount", quotes.FromUnits(req.TakerAmount, decimals))
			field("maker amount", quotes.FromUnits(req.MakerAmount, makerDecimals))

			outcome, err := client.RequestFill(ctx, req)
			if err != nil {
				return err
			}
			if !outcome.Filled() {
				return errors.Errorf("%s: %s", outcome.Event, outcome.Reason)
			}
			success("filled in %s", outcome.Hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&makerAddress, "maker", "", "maker address")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Minute, "order lifetime")
	cmd.Flags().Uint64Var(&orderID, "order-id", 0, "order id (default derived from the clock)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the maker")
	_ = cmd.MarkFlagRequired("maker")
	return cmd
}

func findPair(channel string) (*quotes.Pair, error) {
	pairConf, ok := conf.Pair(channel)
	if !ok {
		return nil, errors.Errorf("no pair configured for channel %s", channel)
	}
	return quotes.PairFromConfig(pairConf)
}
