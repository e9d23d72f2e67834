package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/solsweep/solsweep/service/config"
	"github.com/solsweep/solsweep/service/reclaim"
	solsvc "github.com/solsweep/solsweep/service/solana"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "List a wallet's token accounts and report which are closeable (read-only)",
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
				Usage: "Commitment level for queries (finalized or confirmed)",
			},
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Only scan accounts holding this mint",
			},
			&cli.Uint64Flag{
				Name:  "rent-lamports",
				Value: config.TokenAccountRentExemptLamports,
				Usage: "Rent-exempt deposit per token account, used for the recovery estimate",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression applied to each account record; only accounts for which every filter is truthy are listed (can be specified multiple times)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output scan results as JSON",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "error",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Action: func(c *cli.Context) error {
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

			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlagOverrides(cfg, c)
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Scans stay quiet by default; the flag value is used directly
			// so the config's info default does not apply here.
			logger := newLogger(c.String("log-level"))

			client := solsvc.NewClient(
				solsvc.NewRPCClient(cfg.SolanaRPCURL),
				endpointLabel(cfg.SolanaRPCURL),
				rpc.CommitmentType(cfg.Commitment),
				nil, // no metrics for a one-shot read
				logger,
			)

			records, err := client.ScanTokenAccounts(context.Background(), wallet, mint)
			if err != nil {
				return fmt.Errorf("failed to scan token accounts: %w", err)
			}

			records, err = applyJQFilters(records, filters)
			if err != nil {
				return err
			}

			classification := reclaim.Classify(records, cfg.RentExemptDepositLamports)

			if c.Bool("json") {
				out := scanOutput{
					Wallet:                   wallet.String(),
					TotalScanned:             classification.TotalScanned(),
					TotalCloseable:           len(classification.Closeable),
					EstimatedDepositLamports: classification.EstimatedDepositLamports,
					EstimatedDepositSOL:      classification.EstimatedDepositSOL(),
					Accounts:                 records,
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal scan output: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			printScanReport(wallet, classification, records)
			return nil
		},
	}
}

type scanOutput struct {
	Wallet                   string                      `json:"wallet"`
	TotalScanned             int                         `json:"total_scanned"`
	TotalCloseable           int                         `json:"total_closeable"`
	EstimatedDepositLamports uint64                      `json:"estimated_deposit_lamports"`
	EstimatedDepositSOL      float64                     `json:"estimated_deposit_sol"`
	Accounts                 []solsvc.TokenAccountRecord `json:"accounts"`
}

func printScanReport(wallet solana.PublicKey, cls reclaim.Classification, records []solsvc.TokenAccountRecord) {
	fmt.Printf("Wallet: %s\n", wallet)
	fmt.Printf("Token accounts: %d (%d closeable, %d holding a balance)\n\n",
		cls.TotalScanned(), len(cls.Closeable), len(cls.Funded))

	if len(records) == 0 {
		fmt.Println("No token accounts found.")
		return
	}

	for _, rec := range records {
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Account:   %s\n", rec.Address)
		fmt.Printf("Mint:      %s\n", rec.Mint)
		fmt.Printf("Balance:   %d\n", rec.Balance)
		fmt.Printf("Deposit:   %d lamports\n", rec.Lamports)
		if rec.Closeable {
			fmt.Printf("Closeable: yes\n")
		} else {
			fmt.Printf("Closeable: no\n")
		}
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if len(cls.Closeable) > 0 {
		fmt.Printf("\nClosing the %d empty account(s) would recover ~%.9f SOL.\n",
			len(cls.Closeable), cls.EstimatedDepositSOL())
		fmt.Println("Run \"solsweep clean\" to close them.")
	}
}

// compileJQFilters parses and compiles each --must-jq expression up front so
// a bad filter fails before any RPC traffic.
func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// applyJQFilters keeps the records for which every compiled filter is truthy.
// Records are round-tripped through JSON so filters see the same field names
// the --json output uses.
func applyJQFilters(records []solsvc.TokenAccountRecord, filters []*gojq.Code) ([]solsvc.TokenAccountRecord, error) {
	if len(filters) == 0 {
		return records, nil
	}

	kept := make([]solsvc.TokenAccountRecord, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal account record: %w", err)
		}
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account record: %w", err)
		}

		if recordMatches(doc, filters) {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

// recordMatches reports whether every filter evaluates to a truthy value.
func recordMatches(doc interface{}, filters []*gojq.Code) bool {
	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
