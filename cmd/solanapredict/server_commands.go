package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/brojonat/solanapredict/client"
	"github.com/urfave/cli/v2"
)

func newServerClient(c *cli.Context, timeout time.Duration) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: timeout, Jar: jar}
	return client.NewClient(serverURL, httpClient, newLogger()), nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("✓ Server is healthy\n")
			fmt.Printf("  URL: %s\n", c.String("server-url"))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("solanapredict CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)
			return nil
		},
	}
}

// serverMarketsCommand lists markets through the server API, connecting the
// --wallet public key to a fresh session first.
func serverMarketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "markets",
		Usage: "List markets through the server API",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			publicKey := c.String("wallet")
			if publicKey == "" {
				return fmt.Errorf("--wallet is required to open a server session")
			}

			cl, err := newServerClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			ctx := context.Background()
			status, err := cl.Connect(ctx, publicKey)
			if err != nil {
				return fmt.Errorf("failed to connect wallet: %w", err)
			}
			defer cl.Disconnect(ctx)

			markets, err := cl.ListMarkets(ctx)
			if err != nil {
				return fmt.Errorf("failed to list markets: %w", err)
			}

			return output(c, markets, func() {
				fmt.Printf("Program %s on %s\n", status.ProgramID, status.Network)
				separator()
				if len(markets) == 0 {
					fmt.Println("No markets found")
					return
				}
				for _, m := range markets {
					state := "open"
					switch {
					case m.IsResolved:
						state = "resolved: " + m.WinningOption
					case m.Ended:
						state = "ended"
					}
					fmt.Printf("  %s  %-8s  %s  [%s]\n", m.Address, formatSOL(m.TotalPool), m.Question, state)
				}
			})
		},
	}
}
