package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ykjam/cardpay/pkg"
	"ykjam/cardpay/pkg/browser"
	"ykjam/cardpay/pkg/gateway"
)

type payOptions struct {
	amount      string
	currency    string
	description string
	returnUrl   string
	locale      string
	headless    bool
	saveCard    bool
	manual      bool
	timeout     time.Duration
}

func payCmd() *cobra.Command {
	opts := payOptions{}
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Enter card details and pay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPay(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.amount, "amount", "a", "", "Amount in major units, e.g. 10.50")
	cmd.Flags().StringVarP(&opts.currency, "currency", "c", "SAR", "ISO 4217 currency")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "cardpay-cli payment", "Payment description")
	cmd.Flags().StringVar(&opts.returnUrl, "return-url", "https://cardpay.invalid/return", "Url the gateway redirects to after 3ds")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", string(pkg.LocaleEnglish), "Input locale (en, ar)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run the challenge browser headless")
	cmd.Flags().BoolVar(&opts.saveCard, "save-card", false, "Ask the gateway to tokenize the card")
	cmd.Flags().BoolVar(&opts.manual, "manual", false, "Authorize only, capture later")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up on the payment after this long")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runPay(cmd *cobra.Command, opts payOptions) error {
	gatewayUrl, _ := cmd.Flags().GetString("gateway")
	apiKey, _ := cmd.Flags().GetString("api-key")

	amount, err := decimal.NewFromString(opts.amount)
	if err != nil {
		return errors.Wrap(err, "invalid amount")
	}
	config := pkg.PaymentConfig{
		Amount:      amount,
		Currency:    strings.ToUpper(opts.currency),
		Description: opts.description,
		CallbackURL: opts.returnUrl,
		Metadata:    map[string]string{"client": "cardpay-cli", "user": os.Getenv("USER")},
		SaveCard:    opts.saveCard,
		Manual:      opts.manual,
	}
	surface, err := browser.NewSurface(opts.returnUrl, opts.headless)
	if err != nil {
		return err
	}
	service := gateway.NewService(gatewayUrl, 60*time.Second)

	results := make(chan pkg.PaymentResult, 1)
	controller, err := pkg.NewController(apiKey, config, pkg.Locale(opts.locale), service, surface, func(res pkg.PaymentResult) {
		results <- res
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		if err = promptFields(cmd.OutOrStdout(), reader, controller); err != nil {
			return err
		}
		err = controller.Submit(ctx)
		if err == nil {
			break
		}
		if err != pkg.ErrSubmitDisabled && err != pkg.ErrInvalidFields {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "card details need fixing")
	}

	if controller.State() == pkg.StateAwaitingChallenge {
		fmt.Fprintln(cmd.OutOrStdout(), "complete the 3ds challenge in the browser window")
	}
	select {
	case res := <-results:
		printResult(cmd, res)
		if res.Status == pkg.PaymentStatusFailed {
			return errors.Errorf("payment failed (%s)", res.Failure)
		}
		return nil
	case sig := <-signalChan:
		log.WithField("signal", sig).Warn("interrupted, abandoning payment")
		controller.Detach()
		return errors.New("payment abandoned")
	}
}

// promptFields asks for every field that is not yet valid.
func promptFields(out io.Writer, reader *bufio.Reader, controller *pkg.Controller) error {
	prompts := []struct {
		field pkg.Field
		label string
		env   string
	}{
		{pkg.FieldName, "Name on Card", "NAME_ON_CARD"},
		{pkg.FieldCardNumber, "Card Number", "CARD_NUMBER"},
		{pkg.FieldExpiry, "Card Expiry (MM/YY)", "CARD_EXPIRY"},
		{pkg.FieldCVC, "CVC", ""},
	}
	for _, p := range prompts {
		state := controller.Field(p.field)
		if state.IsFilled && !state.HasError() {
			continue
		}
		for {
			fallback := ""
			if p.env != "" {
				fallback = os.Getenv(p.env)
			}
			if fallback != "" {
				fmt.Fprintf(out, "%s [%s] > ", p.label, fallback)
			} else {
				fmt.Fprintf(out, "%s > ", p.label)
			}
			input, err := reader.ReadString('\n')
			if err != nil {
				eMsg := fmt.Sprintf("error reading %s, leaving", strings.ToLower(p.label))
				log.WithError(err).Error(eMsg)
				return errors.Wrap(err, eMsg)
			}
			input = strings.TrimSpace(input)
			if input == "" {
				input = fallback
			}
			state = controller.SetField(p.field, input)
			if !state.HasError() && state.IsFilled {
				break
			}
			fmt.Fprintf(out, "  %s: %s\n", p.label, describeError(state.ErrorKind))
		}
	}
	return nil
}

func describeError(kind pkg.ErrorKind) string {
	switch kind {
	case pkg.ErrorEmptyOrWhitespace, pkg.ErrorNone:
		return "required"
	case pkg.ErrorTooShort:
		return "too short"
	case pkg.ErrorInvalidFormat:
		return "invalid format"
	case pkg.ErrorInvalidDate:
		return "card expired or invalid date"
	case pkg.ErrorInvalidChecksum:
		return "card number is not valid"
	default:
		return string(kind)
	}
}

func printResult(cmd *cobra.Command, res pkg.PaymentResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "payment:  %s\n", res.ID)
	fmt.Fprintf(out, "status:   %s\n", res.Status)
	if res.Amount != 0 {
		exp := pkg.CurrencyExponent(res.Currency)
		fmt.Fprintf(out, "amount:   %s %s\n", decimal.New(res.Amount, -exp).StringFixed(exp), res.Currency)
	}
	if res.Source.Number != "" {
		fmt.Fprintf(out, "card:     %s %s\n", res.Source.Company, res.Source.Number)
	}
	if res.Failure != pkg.FailureNone {
		fmt.Fprintf(out, "failure:  %s\n", res.Failure)
	}
	if res.Message != "" {
		fmt.Fprintf(out, "message:  %s\n", res.Message)
	}
}
