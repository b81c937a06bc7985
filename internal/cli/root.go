package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "hubctl",
		Short: "CLI tool for the gaming hub economy API",
		Long: `hubctl is a CLI tool for interacting with the gaming hub economy API.

It covers the player's account and round history, the spin game, timed
impostor and quiz rounds, the leaderboard, chat checks and the chat bot's
question, referral bonuses, the legacy award endpoint and the live account
event stream.

Requests are authenticated with an access token from the identity provider,
passed with --token, HUBCTL_TOKEN, or saved once with "hubctl login".`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("unknown output format %q", cfg.Output)
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Token)
			client.SetRetry(cfg.Retries+1, client.newBackOff)
			if cfg.Verbose {
				stderr := cmd.ErrOrStderr()
				client.OnRetry(func(err error, wait time.Duration) {
					_, _ = fmt.Fprintf(stderr, "retrying in %s: %s\n", wait.Round(time.Millisecond), err)
				})
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: HUBCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Access token (env: HUBCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: HUBCTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().UintVar(&cfg.Retries, "retries", cfg.Retries, "Retries when the server is unavailable")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newReferralCmd())
	rootCmd.AddCommand(newSpinCmd())
	rootCmd.AddCommand(newRoundCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAwardCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// output returns a formatter writing to the command's stdout
func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
