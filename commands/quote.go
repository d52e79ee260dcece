package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price snapshot tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "publish",
		Short: "Publish venue prices with the pair spread as stream_depth snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if conf.Bus.RedisURL == "" {
				return errors.New("bus.redis_url is required to publish quotes")
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			pairs, err := quotes.PairsFromConfig(conf)
			if err != nil {
				return err
			}
			messageBus, err := bus.DialRedis(ctx, conf.Bus.RedisURL)
			if err != nil {
				return err
			}
			defer messageBus.Close()

			if err := startQuoter(ctx, messageBus, pairs); err != nil {
				return err
			}
			info("publishing snapshots for %d pair(s)", len(pairs))
			<-ctx.Done()
			return nil
		},
	})
	return cmd
}
