package commands

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

func feesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Manage the wallet's fee balance held by the router",
	}

	var decimals uint8
	cmd.PersistentFlags().Uint8Var(&decimals, "decimals", 18, "token decimals used to read amounts")

	deposit := &cobra.Command{
		Use:   "deposit <token> <amount>",
		Short: "Approve and deposit tokens into the fee balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1], decimals)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			hash, err := client.Approve(ctx, token, client.Contract(), amount)
			if err != nil {
				return err
			}
			if err := waitTx(ctx, client, "approve", hash); err != nil {
				return err
			}
			if hash, err = client.DepositToken(ctx, token, amount); err != nil {
				return err
			}
			return waitTx(ctx, client, "deposit", hash)
		},
	}

	var to string
	withdraw := &cobra.Command{
		Use:   "withdraw <token> <amount>",
		Short: "Withdraw tokens from the fee balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1], decimals)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			if to == "" {
				hash, err := client.WithdrawToken(ctx, token, amount)
				if err != nil {
					return err
				}
				return waitTx(ctx, client, "withdraw", hash)
			}
			recipient, err := parseAddress(to)
			if err != nil {
				return err
			}
			hash, err := client.WithdrawTokenTo(ctx, token, amount, recipient)
			if err != nil {
				return err
			}
			return waitTx(ctx, client, "withdraw", hash)
		},
	}
	withdraw.Flags().StringVar(&to, "to", "", "send the withdrawal to this address instead of the wallet")

	transfer := &cobra.Command{
		Use:   "transfer <token> <amount> <to>",
		Short: "Move part of the fee balance to another account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1], decimals)
			if err != nil {
				return err
			}
			recipient, err := parseAddress(args[2])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, _, err := dialChain(ctx)
			if err != nil {
				return err
			}
			hash, err := client.TransferTo(ctx, token, amount, recipient)
			if err != nil {
				return err
			}
			return waitTx(ctx, client, "transfer", hash)
		},
	}

	balance := &cobra.Command{
		Use:   "balance <token> [account]",
		Short: "Show a fee balance, the wallet's by default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			account := common.HexToAddress(conf.Wallet.Address)
			if len(args) == 2 {
				if account, err = parseAddress(args[1]); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			client, err := dialReader(ctx)
			if err != nil {
				return err
			}
			amount, err := client.Balance(ctx, account, token)
			if err != nil {
				return err
			}
			field("account", account.Hex())
			field("token", token.Hex())
			field("balance", quotes.FromUnits(amount, decimals))
			return nil
		},
	}

	cmd.AddCommand(deposit, withdraw, transfer, balance)
	return cmd
}
