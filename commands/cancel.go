package commands

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <orderId>",
		Short: "Cancel one of the wallet's RFQ orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid order id %q", args[0])
			}
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			hash, err := client.CancelOrderRFQ(ctx, orderID)
			if err != nil {
				return err
			}
			return waitTx(ctx, client, "cancel", hash)
		},
	}
}
