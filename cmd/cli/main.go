package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/wagerledger/pkg/client"
	"github.com/iho/wagerledger/pkg/predictor"
)

type options struct {
	baseURL  string
	userID   string
	token    string
	currency string
	timeout  time.Duration
}

func (o *options) client() *client.Client {
	return client.New(o.baseURL,
		client.WithHTTPClient(&http.Client{Timeout: o.timeout}),
		client.WithUserID(o.userID),
		client.WithToken(o.token),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "wagerledger-cli",
		Short:        "Wager ledger CLI tool",
		Long:         `A command line player for the wager ledger API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the wager ledger API")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("WAGER_USER"), "Player id sent as X-User-ID")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("WAGER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVar(&opts.currency, "currency", "BDT", "Currency of amounts")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", predictor.DefaultTimeout, "Request timeout")

	rootCmd.AddCommand(
		balanceCmd(opts),
		depositCmd(opts),
		withdrawCmd(opts),
		betCmd(opts),
		playCmd(opts),
		watchCmd(opts),
	)

	return rootCmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			balance, err := opts.client().Balance(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

func depositCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Credit the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			balance, err := opts.client().Deposit(cmd.Context(), amount, opts.currency)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

func withdrawCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Debit the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			balance, err := opts.client().Withdraw(cmd.Context(), amount, opts.currency)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

// betCmd debits a bet, showing the predicted balance before the server answers.
func betCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bet <game> <amount>",
		Short: "Place a bet with an optimistic balance preview",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			c := opts.client()
			return predicted(cmd, c, opts, amount, func(ctx context.Context) (decimal.Decimal, error) {
				balance, err := c.Bet(ctx, args[0], amount, opts.currency)
				if err != nil {
					return decimal.Zero, err
				}
				return balance.Balance, nil
			})
		},
	}
}

// playCmd lets the server decide the round. The preview assumes a loss and the
// reconciliation shows any win.
func playCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "play <game> <amount>",
		Short: "Play a server-decided round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			c := opts.client()
			var round *client.Round
			err = predicted(cmd, c, opts, amount, func(ctx context.Context) (decimal.Decimal, error) {
				result, err := c.Play(ctx, args[0], amount, opts.currency)
				if err != nil {
					return decimal.Zero, err
				}
				round = result.Round
				return result.Balance.Balance, nil
			})
			if err != nil {
				return err
			}

			if round != nil {
				if round.IsWin {
					fmt.Fprintf(cmd.OutOrStdout(), "round %s: won %s (x%s)\n", round.ID, round.WinAmount, round.Multiplier)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "round %s: lost\n", round.ID)
				}
			}
			return nil
		},
	}
}

func predicted(cmd *cobra.Command, c *client.Client, opts *options, amount decimal.Decimal, call predictor.Call) error {
	out := cmd.OutOrStdout()

	current, err := c.Balance(cmd.Context())
	if err != nil {
		return err
	}

	p := predictor.New(
		predictor.WithTimeout(opts.timeout),
		predictor.WithObserver(func(t predictor.Transition) {
			if t.To == predictor.Predicting {
				fmt.Fprintf(out, "balance %s -> %s (pending)\n", current.Balance.StringFixed(2), t.Display.StringFixed(2))
			}
		}),
	)

	outcome, err := p.Run(cmd.Context(), current.Balance, amount, false, call)
	if err != nil {
		if client.IsInsufficientFunds(err) {
			fmt.Fprintf(out, "rejected: insufficient funds, balance %s\n", outcome.Final.StringFixed(2))
		}
		return err
	}

	if outcome.Corrected {
		fmt.Fprintf(out, "balance %s (corrected by server)\n", outcome.Final.StringFixed(2))
	} else {
		fmt.Fprintf(out, "balance %s (confirmed)\n", outcome.Final.StringFixed(2))
	}
	return nil
}

func watchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream balance updates until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			err := opts.client().Watch(cmd.Context(), func(b client.Balance) {
				fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), b.Balance.StringFixed(2), b.Currency)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", s)
	}
	return amount, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
