package commands

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the wallet's delegated session key",
	}

	var duration time.Duration
	create := &cobra.Command{
		Use:   "create <session key address>",
		Short: "Create or extend a session for a delegate key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionKey, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			if duration <= 0 {
				return errors.New("--duration must be positive")
			}
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			expiration := uint64(time.Now().Add(duration).Unix())
			hash, err := client.CreateOrUpdateSession(ctx, sessionKey, expiration)
			if err != nil {
				return err
			}
			if err := waitTx(ctx, client, "session", hash); err != nil {
				return err
			}
			field("session key", sessionKey.Hex())
			field("expires", time.Unix(int64(expiration), 0).Format(time.RFC3339))
			return nil
		},
	}
	create.Flags().DurationVar(&duration, "duration", 24*time.Hour, "session lifetime")

	end := &cobra.Command{
		Use:   "end",
		Short: "Terminate the wallet's session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			hash, err := client.EndSession(ctx)
			if err != nil {
				return err
			}
			return waitTx(ctx, client, "end session", hash)
		},
	}

	show := &cobra.Command{
		Use:   "show [owner]",
		Short: "Show a session, the wallet's by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := common.HexToAddress(conf.Wallet.Address)
			if len(args) == 1 {
				var err error
				if owner, err = parseAddress(args[0]); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			client, err := dialReader(ctx)
			if err != nil {
				return err
			}
			s, err := client.SessionOf(ctx, owner)
			if err != nil {
				return err
			}
			field("owner", owner.Hex())
			field("session key", s.SessionKey.Hex())
			field("expires", time.Unix(int64(s.ExpirationTime), 0).Format(time.RFC3339))
			field("tx count", s.TxCount)
			if s.IsActive(uint64(time.Now().Unix())) {
				success("session active")
			} else {
				failure("session inactive")
			}
			return nil
		},
	}

	cmd.AddCommand(create, end, show)
	return cmd
}
