package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("error loading .env, ignoring")
	}

	var verbose bool
	rootCmd := &cobra.Command{
		Use:     "cardpay-cli",
		Short:   "Pay with a card from the terminal, 3ds challenges open in Chrome",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().String("gateway", envOr("CARDPAY_GATEWAY_URL", "https://api.moyasar.com"), "Gateway base url")
	rootCmd.PersistentFlags().String("api-key", os.Getenv("CARDPAY_API_KEY"), "Gateway api key")

	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
