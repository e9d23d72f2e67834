package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/solsweep/solsweep/service/config"
	"github.com/solsweep/solsweep/service/events"
	"github.com/solsweep/solsweep/service/history"
	"github.com/solsweep/solsweep/service/keys"
	"github.com/solsweep/solsweep/service/metrics"
	"github.com/solsweep/solsweep/service/reclaim"
	solsvc "github.com/solsweep/solsweep/service/solana"
)

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Close a wallet's empty token accounts and recover the rent deposits",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"u"},
				Value:   config.DefaultRPCURL,
				Usage:   "Solana RPC endpoint URL (env: SOLANA_RPC_URL)",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Value: config.DefaultCommitment,
				Usage: "Commitment level for confirmation (finalized or confirmed)",
			},
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Path to the wallet keypair file (JSON byte array or base58)",
				EnvVars: []string{"SOLSWEEP_KEYPAIR"},
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would be closed without submitting anything",
			},
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Only close accounts holding this mint",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Value: config.DefaultBatchSize,
				Usage: fmt.Sprintf("Close instructions per transaction (1-%d)", config.MaxBatchSize),
			},
			&cli.Uint64Flag{
				Name:  "rent-lamports",
				Value: config.TokenAccountRentExemptLamports,
				Usage: "Rent-exempt deposit per token account, used for the recovery estimate",
			},
			&cli.DurationFlag{
				Name:  "confirm-timeout",
				Value: config.DefaultConfirmTimeout,
				Usage: "How long to wait for each batch to confirm",
			},
			&cli.DurationFlag{
				Name:  "confirm-poll-interval",
				Value: config.DefaultConfirmPollInterval,
				Usage: "How often to poll signature status while waiting",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090) for the duration of the run",
			},
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "Postgres URL for recording run history (env: DATABASE_URL)",
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "NATS URL for publishing reclamation events (env: NATS_URL)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the run report as JSON",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: config.DefaultLogLevel,
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Action: runClean,
	}
}

func runClean(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("wallet address is required")
	}

	wallet, err := solana.PublicKeyFromBase58(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", c.Args().Get(0), err)
	}

	var mint *solana.PublicKey
	if m := c.String("mint"); m != "" {
		pk, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return fmt.Errorf("invalid mint address %q: %w", m, err)
		}
		mint = &pk
	}

	dryRun := c.Bool("dry-run")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	// Key material is loaded and checked before anything touches the network.
	var signer solana.PrivateKey
	if keypairPath := c.String("keypair"); keypairPath != "" {
		signer, err = keys.Load(keypairPath)
		if err != nil {
			return fmt.Errorf("failed to load keypair: %w", err)
		}
	} else if !dryRun {
		return fmt.Errorf("--keypair is required unless --dry-run is set")
	}

	var m *metrics.Metrics
	if addr := c.String("metrics-addr"); addr != "" {
		registry := prometheus.NewRegistry()
		m = metrics.NewMetrics(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	chain := solsvc.NewClient(
		solsvc.NewRPCClient(cfg.SolanaRPCURL),
		endpointLabel(cfg.SolanaRPCURL),
		rpc.CommitmentType(cfg.Commitment),
		m,
		logger,
	)

	// The configured deposit figure is only an estimate; warn if the network
	// disagrees so the operator knows the projection is off.
	if minimum, err := chain.MinimumRentExemptBalance(ctx); err != nil {
		logger.WarnContext(ctx, "could not fetch rent-exemption minimum", "error", err)
	} else if minimum != cfg.RentExemptDepositLamports {
		logger.WarnContext(ctx, "configured rent deposit differs from network minimum",
			"configured", cfg.RentExemptDepositLamports,
			"network", minimum,
		)
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	confirmParams := solsvc.ConfirmationParams{
		Timeout:      cfg.ConfirmTimeout,
		PollInterval: cfg.ConfirmPollInterval,
	}

	orchestrator := reclaim.NewOrchestrator(reclaim.OrchestratorOptions{
		Chain:              chain,
		RentExemptLamports: cfg.RentExemptDepositLamports,
		BatchSize:          cfg.BatchSize,
		NewSubmitter: func(signer solana.PrivateKey) *reclaim.Submitter {
			return reclaim.NewSubmitter(chain, signer, cfg.RentExemptDepositLamports, confirmParams, m, logger)
		},
		Publisher: publisher,
		Logger:    logger,
	})

	params := reclaim.RunParams{
		Wallet: wallet,
		Signer: signer,
		Mint:   mint,
		DryRun: dryRun,
	}
	if !c.Bool("yes") {
		params.Confirm = promptForConfirmation
	}

	report, err := orchestrator.Run(ctx, params)
	if err != nil {
		return err
	}

	recordHistory(ctx, cfg.DatabaseURL, report, logger)

	if c.Bool("json") {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal run report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printRunReport(report)
	return nil
}

// promptForConfirmation is the operator gate: it shows the projected outcome
// and reads a yes/no answer from stdin. Anything but an explicit yes aborts.
func promptForConfirmation(cls reclaim.Classification) bool {
	fmt.Fprintf(os.Stderr, "About to close %d empty token account(s), recovering ~%.9f SOL.\n",
		len(cls.Closeable), cls.EstimatedDepositSOL())
	fmt.Fprintf(os.Stderr, "This cannot be undone. Continue? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// recordHistory persists the run report when a database is configured.
// History is an audit trail, not part of the run; failures only warn.
func recordHistory(ctx context.Context, databaseURL string, report *reclaim.RunReport, logger *slog.Logger) {
	if databaseURL == "" {
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := history.Connect(dbCtx, databaseURL)
	if err != nil {
		logger.WarnContext(ctx, "failed to connect to history database", "error", err)
		return
	}
	defer pool.Close()

	store := history.NewStore(pool)
	if err := store.EnsureSchema(dbCtx); err != nil {
		logger.WarnContext(ctx, "failed to ensure history schema", "error", err)
		return
	}

	id, err := store.RecordRun(dbCtx, report)
	if err != nil {
		logger.WarnContext(ctx, "failed to record run history", "error", err)
		return
	}
	logger.InfoContext(ctx, "recorded run history", "run_id", id)
}

func printRunReport(report *reclaim.RunReport) {
	fmt.Printf("Wallet: %s\n", report.Wallet)
	fmt.Printf("Scanned:   %d token account(s)\n", report.TotalScanned)
	fmt.Printf("Closeable: %d\n", report.TotalCloseable)

	switch {
	case report.DryRun:
		fmt.Printf("\nDry run: closing %d account(s) would recover ~%.9f SOL (%d lamports).\n",
			report.TotalCloseable,
			float64(report.EstimatedDepositLamports)/float64(solana.LAMPORTS_PER_SOL),
			report.EstimatedDepositLamports)
		return
	case report.Aborted:
		fmt.Println("\nRun aborted at the confirmation prompt. Nothing was closed.")
		return
	case report.TotalCloseable == 0:
		fmt.Println("\nNothing to close.")
		return
	}

	fmt.Printf("Closed:    %d\n", report.TotalClosed)
	fmt.Printf("Recovered: %.9f SOL (%d lamports)\n", report.RecoveredSOL(), report.RecoveredLamports)

	fmt.Println()
	for _, outcome := range report.Outcomes {
		if outcome.Succeeded() {
			fmt.Printf("Batch %d: closed %d account(s), signature %s\n",
				outcome.Index+1, outcome.AccountsClosed, outcome.Signature)
		} else {
			fmt.Printf("Batch %d: FAILED (%s)\n", outcome.Index+1, outcome.Error)
			for _, addr := range outcome.Addresses {
				fmt.Printf("  not closed: %s\n", addr)
			}
		}
	}

	if failed := report.FailedBatches(); failed > 0 {
		fmt.Printf("\n%d batch(es) failed; the accounts listed above are untouched.\n", failed)
		fmt.Println("Re-running is safe: already-closed accounts will not reappear.")
	}
}
