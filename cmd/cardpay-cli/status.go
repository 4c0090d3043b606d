package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ykjam/cardpay/pkg/gateway"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [payment-id]",
		Short: "Show the gateway's view of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gatewayUrl, _ := cmd.Flags().GetString("gateway")
			apiKey, _ := cmd.Flags().GetString("api-key")
			if apiKey == "" {
				return errors.New("api key is required, use --api-key or CARDPAY_API_KEY")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := gateway.NewService(gatewayUrl, 30*time.Second).FetchPayment(ctx, apiKey, args[0])
			if err != nil {
				return errors.Wrap(err, "error fetching payment")
			}
			printResult(cmd, res)
			return nil
		},
	}
}
