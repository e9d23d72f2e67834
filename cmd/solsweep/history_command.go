package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/solsweep/solsweep/service/history"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past reclamation runs recorded in the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Postgres URL holding the run history",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Only show runs for this wallet",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of runs to list",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output runs as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			pool, err := history.Connect(ctx, c.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to history database: %w", err)
			}
			defer pool.Close()

			store := history.NewStore(pool)
			runs, err := store.ListRuns(ctx, c.String("wallet"), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal runs: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			fmt.Printf("Found %d run(s):\n\n", len(runs))
			for _, run := range runs {
				fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				fmt.Printf("Run:       #%d\n", run.ID)
				fmt.Printf("Wallet:    %s\n", run.Wallet)
				fmt.Printf("Started:   %s\n", run.StartedAt.Format(time.RFC3339))
				fmt.Printf("Scanned:   %d (%d closeable)\n", run.TotalScanned, run.TotalCloseable)
				fmt.Printf("Closed:    %d\n", run.TotalClosed)
				fmt.Printf("Recovered: %d lamports\n", run.RecoveredLamports)
				switch {
				case run.DryRun:
					fmt.Printf("Mode:      dry run\n")
				case run.Aborted:
					fmt.Printf("Mode:      aborted at confirmation\n")
				}
			}
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			return nil
		},
	}
}
