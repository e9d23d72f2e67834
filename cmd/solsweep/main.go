package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/solsweep/solsweep/service/config"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "solsweep",
		Usage: "Reclaim rent from empty SPL token accounts",
		Description: `Scans a wallet's SPL token accounts, finds the empty ones, and closes
them in batches to recover the rent-exempt deposit locked in each account.

Use "scan" for a read-only report and "clean" to actually close accounts.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			scanCommand(),
			cleanCommand(),
			historyCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("solsweep %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built:  %s\n", date)
			return nil
		},
	}
}

// newLogger builds the CLI logger: JSON to stderr so stdout stays parseable.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
}

// applyFlagOverrides layers explicitly-set command-line flags over the
// environment-derived configuration from config.Load. Only flags the user
// actually passed override; everything else keeps the loaded value, so each
// default is defined exactly once, in the config package. Flags a command
// does not define are never set and are skipped.
func applyFlagOverrides(cfg *config.Config, c *cli.Context) {
	if c.IsSet("rpc-url") {
		cfg.SolanaRPCURL = c.String("rpc-url")
	}
	if c.IsSet("commitment") {
		cfg.Commitment = c.String("commitment")
	}
	if c.IsSet("rent-lamports") {
		cfg.RentExemptDepositLamports = c.Uint64("rent-lamports")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("confirm-timeout") {
		cfg.ConfirmTimeout = c.Duration("confirm-timeout")
	}
	if c.IsSet("confirm-poll-interval") {
		cfg.ConfirmPollInterval = c.Duration("confirm-poll-interval")
	}
	if c.IsSet("database-url") {
		cfg.DatabaseURL = c.String("database-url")
	}
	if c.IsSet("nats-url") {
		cfg.NATSURL = c.String("nats-url")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
}

// endpointLabel reduces an RPC URL to its hostname for metric labels and
// logs, keeping any API key in the URL out of both.
func endpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
