package main

import (
	"fmt"

	"github.com/brojonat/solanapredict/service/program"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

type betView struct {
	Address string `json:"address"`
	*program.Bet
}

func newBetView(addr solanago.PublicKey, b *program.Bet) betView {
	return betView{Address: addr.String(), Bet: b}
}

func betPDACommand() *cli.Command {
	return &cli.Command{
		Name:  "pda",
		Usage: "Derive a bet address from its market and user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "market",
				Usage:    "Market address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "Bettor public key",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			market, err := parseAddress("market", c.String("market"))
			if err != nil {
				return err
			}
			user, err := parseAddress("user", c.String("user"))
			if err != nil {
				return err
			}
			doc, err := loadIDL(c)
			if err != nil {
				return fmt.Errorf("failed to load IDL: %w", err)
			}

			addr, bump, err := program.BetAddress(doc.ProgramID(), market, user)
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

func placeBetCommand() *cli.Command {
	return &cli.Command{
		Name:  "place",
		Usage: "Stake SOL on a market outcome",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "market",
				Usage:    "Market address",
				Required: true,
			},
			&cli.Float64Flag{
				Name:     "amount",
				Usage:    "Stake in SOL",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "option",
				Usage:    "Outcome to bet on (yes or no)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			market, err := parseAddress("market", c.String("market"))
			if err != nil {
				return err
			}
			option, err := program.ParseBetOption(c.String("option"))
			if err != nil {
				return err
			}
			amount, err := lamports(c.Float64("amount"))
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

			ix, bet, err := prog.PlaceBet(market, amount, option)
			if err != nil {
				return err
			}
			return send(c, prog, "place_bet", ix, bet)
		},
	}
}

func claimWinningsCommand() *cli.Command {
	return &cli.Command{
		Name:  "claim",
		Usage: "Claim winnings from a resolved market",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "market",
				Usage:    "Market address",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			market, err := parseAddress("market", c.String("market"))
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

			ix, err := prog.ClaimWinnings(market)
			if err != nil {
				return err
			}
			return send(c, prog, "claim_winnings", ix, solanago.PublicKey{})
		},
	}
}
