package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

// marketView is a decoded market plus derived fields for display.
type marketView struct {
	Address string `json:"address"`
	*program.Market
	TotalPool uint64   `json:"total_pool"`
	Ended     bool     `json:"ended"`
	MyBet     *betView `json:"my_bet,omitempty"`
}

func newMarketView(addr solanago.PublicKey, m *program.Market, now time.Time) marketView {
	return marketView{
		Address:   addr.String(),
		Market:    m,
		TotalPool: m.TotalPool(),
		Ended:     m.Ended(now),
	}
}

func printMarket(v marketView) {
	fmt.Printf("Market: %s\n", v.Address)
	separator()
	fmt.Printf("  Question:    %s\n", v.Question)
	if v.Description != "" {
		fmt.Printf("  Description: %s\n", v.Description)
	}
	fmt.Printf("  Creator:     %s\n", v.Creator)
	fmt.Printf("  Ends:        %s\n", time.Unix(v.EndTime, 0).UTC().Format(time.RFC3339))
	fmt.Printf("  Yes pool:    %s\n", formatSOL(v.YesPool))
	fmt.Printf("  No pool:     %s\n", formatSOL(v.NoPool))
	fmt.Printf("  Bets:        %d\n", v.TotalBets)
	switch {
	case v.IsResolved && v.WinningOption != nil:
		fmt.Printf("  Status:      resolved (%s)\n", v.WinningOption)
	case v.Ended:
		fmt.Println("  Status:      ended, awaiting resolution")
	default:
		fmt.Println("  Status:      open")
	}
	if v.MyBet != nil {
		fmt.Printf("  My bet:      %s on %s (claimed: %t)\n", formatSOL(v.MyBet.Amount), v.MyBet.Option, v.MyBet.Claimed)
	}
}

func getMarketCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a market and the wallet's bet on it",
		ArgsUsage: "<market-address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("market address is required")
			}
			market, err := parseAddress("market", c.Args().First())
			if err != nil {
				return err
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			prog, err := e.program()
			if err != nil {
				return err
			}

			ctx := context.Background()
			m, err := prog.FetchMarket(ctx, market)
			if err != nil {
				return fmt.Errorf("failed to fetch market: %w", err)
			}
			view := newMarketView(market, m, time.Now())

			betAddr, bet, err := prog.FetchMyBet(ctx, market)
			switch {
			case err == nil:
				bv := newBetView(betAddr, bet)
				view.MyBet = &bv
			case !errors.Is(err, solana.ErrAccountNotFound):
				return fmt.Errorf("failed to fetch bet: %w", err)
			}

			return output(c, view, func() { printMarket(view) })
		},
	}
}

func listMarketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List every market of the program",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Only show markets still accepting bets",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			prog, err := e.program()
			if err != nil {
				return err
			}

			accounts, err := prog.ListMarkets(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list markets: %w", err)
			}

			now := time.Now()
			views := make([]marketView, 0, len(accounts))
			for _, acct := range accounts {
				v := newMarketView(acct.Address, acct.Market, now)
				if c.Bool("open") && (v.Ended || v.IsResolved) {
					continue
				}
				views = append(views, v)
			}

			return output(c, views, func() {
				if len(views) == 0 {
					fmt.Println("No markets found")
					return
				}
				fmt.Printf("Found %d market(s):\n\n", len(views))
				for _, v := range views {
					printMarket(v)
					fmt.Println()
				}
			})
		},
	}
}

type pdaView struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func marketPDACommand() *cli.Command {
	return &cli.Command{
		Name:  "pda",
		Usage: "Derive a market address from its creator and question",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "creator",
				Usage:    "Market creator public key",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "question",
				Usage:    "Market question",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			creator, err := parseAddress("creator", c.String("creator"))
			if err != nil {
				return err
			}
			doc, err := loadIDL(c)
			if err != nil {
				return fmt.Errorf("failed to load IDL: %w", err)
			}

			addr, bump, err := program.MarketAddress(doc.ProgramID(), creator, c.String("question"))
			if err != nil {
				return err
			}

			view := pdaView{Address: addr.String(), Bump: bump}
			return output(c, view, func() {
				fmt.Printf("%s (bump %d)\n", view.Address, view.Bump)
			})
		},
	}
}

// txView reports a submitted transaction.
type txView struct {
	Instruction string `json:"instruction"`
	Signature   string `json:"signature"`
	Signer      string `json:"signer"`
	Address     string `json:"address,omitempty"`
}

func printTx(v txView) {
	fmt.Printf("✓ %s confirmed\n", v.Instruction)
	fmt.Printf("  Signature: %s\n", v.Signature)
	fmt.Printf("  Signer:    %s\n", v.Signer)
	if v.Address != "" {
		fmt.Printf("  Address:   %s\n", v.Address)
	}
}

// send signs and submits ix with the configured keypair, waiting at most
// --confirm-timeout for confirmation.
func send(c *cli.Context, prog *program.Program, name string, ix solanago.Instruction, addr solanago.PublicKey) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("confirm-timeout"))
	defer cancel()

	sig, err := prog.Send(ctx, ix)
	if err != nil {
		var perr *program.ProgramError
		if errors.As(err, &perr) {
			return fmt.Errorf("%s rejected by program: %w", name, err)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}

	view := txView{
		Instruction: name,
		Signature:   sig.String(),
		Signer:      prog.Provider().PublicKey().String(),
	}
	if !addr.IsZero() {
		view.Address = addr.String()
	}
	return output(c, view, func() { printTx(view) })
}

func createMarketCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a market signed by the keypair wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "question",
				Usage:    "Market question (seeds the market address)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Market description",
			},
			&cli.StringFlag{
				Name:     "end",
				Usage:    "When betting closes: RFC 3339 time or duration from now (e.g. 72h)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			end, err := parseEndTime(c.String("end"), time.Now())
			if err != nil {
				return err
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			prog, err := e.signer()
			if err != nil {
				return err
			}

			ix, market, err := prog.CreateMarket(program.CreateMarketArgs{
				Question:    c.String("question"),
				Description: c.String("description"),
				EndTime:     end,
			})
			if err != nil {
				return err
			}
			return send(c, prog, "create_market", ix, market)
		},
	}
}

func resolveMarketCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a market you created",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "market",
				Usage:    "Market address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "winner",
				Usage:    "Winning option (yes or no)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			market, err := parseAddress("market", c.String("market"))
			if err != nil {
				return err
			}
			winner, err := program.ParseBetOption(c.String("winner"))
			if err != nil {
				return err
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			prog, err := e.signer()
			if err != nil {
				return err
			}

			ix, err := prog.ResolveMarket(market, winner)
			if err != nil {
				return err
			}
			return send(c, prog, "resolve_market", ix, solanago.PublicKey{})
		},
	}
}
