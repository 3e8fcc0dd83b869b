package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solanapredict",
		Usage: "SolanaPredict prediction market CLI",
		Description: `A command-line tool for the solanapredict program.

Use this CLI to inspect markets and bets, derive program addresses, and submit
create/resolve/bet/claim transactions signed with a local keypair.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "program",
				Usage: "Program client commands",
				Subcommands: []*cli.Command{
					programInfoCommand(),
					programStatusCommand(),
				},
			},
			{
				Name:  "market",
				Usage: "Prediction market commands",
				Subcommands: []*cli.Command{
					getMarketCommand(),
					listMarketsCommand(),
					marketPDACommand(),
					createMarketCommand(),
					resolveMarketCommand(),
				},
			},
			{
				Name:  "bet",
				Usage: "Bet commands",
				Subcommands: []*cli.Command{
					betPDACommand(),
					placeBetCommand(),
					claimWinningsCommand(),
				},
			},
			{
				Name:  "sessions",
				Usage: "Wallet session event commands (NATS JetStream)",
				Subcommands: []*cli.Command{
					watchSessionsCommand(),
				},
			},
			// Server utility commands (HTTP API)
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
					serverMarketsCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "Solana RPC endpoint (defaults to the public endpoint of --network)",
			EnvVars: []string{"SOLANA_RPC_URL"},
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Network label (mainnet, devnet, localnet)",
			EnvVars: []string{"SOLANA_NETWORK"},
			Value:   "devnet",
		},
		&cli.StringFlag{
			Name:    "commitment",
			Usage:   "Commitment level (processed, confirmed, finalized)",
			EnvVars: []string{"SOLANA_COMMITMENT"},
			Value:   string(rpc.CommitmentConfirmed),
		},
		&cli.StringFlag{
			Name:    "keypair",
			Usage:   "Solana CLI keypair file used to sign transactions",
			EnvVars: []string{"SOLANA_KEYPAIR"},
		},
		&cli.StringFlag{
			Name:    "wallet",
			Usage:   "Public key for read-only commands when no keypair is given",
			EnvVars: []string{"WALLET_PUBLIC_KEY"},
		},
		&cli.StringFlag{
			Name:    "idl",
			Usage:   "Program IDL file (defaults to the embedded IDL)",
			EnvVars: []string{"IDL_PATH"},
		},
		&cli.DurationFlag{
			Name:    "confirm-timeout",
			Usage:   "How long to wait for a transaction to be confirmed",
			EnvVars: []string{"CONFIRM_TIMEOUT"},
			Value:   defaultConfirmTimeout,
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Server URL for HTTP API commands",
			EnvVars: []string{"SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "Filter JSON output with a jq expression (implies --json)",
		},
	}
}
