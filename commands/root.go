package commands

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
)

var (
	configPath string
	conf       *config.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:           "coinquoter",
		Short:         "RFQ maker, taker and settlement tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			conf = loaded
			setupLogging(conf.Logging)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the toml config")

	root.AddCommand(makerCmd(), quoteCmd(), fillCmd(), sessionCmd(), cancelCmd(), feesCmd())
	err := root.Execute()
	if err != nil {
		failure("%v", err)
	}
	return err
}

func setupLogging(logging config.LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(logging.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if logging.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

//signalContext is cancelled on interrupt or terminate.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func chainID() *big.Int {
	return big.NewInt(conf.Chain.ChainID)
}
