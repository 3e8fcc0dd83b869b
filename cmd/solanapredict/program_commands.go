package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

type programInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ProgramID    string   `json:"program_id"`
	Instructions []string `json:"instructions"`
	Accounts     []string `json:"accounts"`
	Errors       int      `json:"errors"`
}

func programInfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the program's interface description",
		Action: func(c *cli.Context) error {
			doc, err := loadIDL(c)
			if err != nil {
				return fmt.Errorf("failed to load IDL: %w", err)
			}

			info := programInfo{
				Name:         doc.Name,
				Version:      doc.Version,
				ProgramID:    doc.ProgramID().String(),
				Instructions: doc.InstructionNames(),
				Errors:       len(doc.Errors),
			}
			for _, acct := range doc.Accounts {
				info.Accounts = append(info.Accounts, acct.Name)
			}

			return output(c, info, func() {
				fmt.Printf("Program: %s v%s\n", info.Name, info.Version)
				separator()
				fmt.Printf("  Program ID:   %s\n", info.ProgramID)
				fmt.Printf("  Instructions: %v\n", info.Instructions)
				fmt.Printf("  Accounts:     %v\n", info.Accounts)
				fmt.Printf("  Errors:       %d\n", info.Errors)
			})
		},
	}
}

func programStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a program client can be bound for the configured wallet",
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}

			status := e.binder.Status(e.conn, e.wallet)
			return output(c, status, func() {
				if !status.Ready {
					fmt.Println("✗ Not ready: no wallet connected")
					fmt.Println("  Set --keypair or --wallet to bind the program client.")
					return
				}
				fmt.Println("✓ Program client ready")
				fmt.Printf("  Program ID: %s\n", status.ProgramID)
				fmt.Printf("  Signer:     %s\n", status.Signer)
				fmt.Printf("  Commitment: %s\n", status.Commitment)
				fmt.Printf("  Network:    %s\n", status.Network)
				fmt.Printf("  RPC:        %s\n", e.conn.URL())
			})
		},
	}
}
