package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solanapredict/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// sessionSubject returns the subject filter for eventType, or every session
// subject when eventType is empty.
func sessionSubject(eventType string) (string, error) {
	switch natspkg.SessionEventType(eventType) {
	case "":
		return natspkg.StreamSubjects, nil
	case natspkg.SessionConnected, natspkg.SessionDisconnected, natspkg.SessionExpired:
		return natspkg.SubjectPrefix + eventType, nil
	default:
		return "", fmt.Errorf("unknown session event type %q (want connected, disconnected or expired)", eventType)
	}
}

func formatSessionEvent(e *natspkg.SessionEvent) string {
	line := fmt.Sprintf("%s  %-12s  %s  session=%s",
		e.OccurredAt.Format(time.RFC3339), e.Type, e.PublicKey, e.SessionID)
	if e.ProgramID != "" {
		line += fmt.Sprintf("  program=%s (%s)", e.ProgramID, e.Network)
	}
	return line
}

func watchSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream wallet session events published by the server",
		ArgsUsage: "[connected|disconnected|expired]",
		Description: `Subscribe to wallet session events in NATS JetStream.

Events are published by the server to the subject sessions.{type}.

Example:
  solanapredict sessions watch connected --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (used with --durable)",
				Value: "solanapredict-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject, err := sessionSubject(c.Args().First())
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			if !jsonOutput {
				fmt.Printf("📡 Subscribing to: %s\n", subject)
				fmt.Printf("\nWaiting for session events... (Ctrl-C to exit)\n\n")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to start consumer: %w", err)
			}
			defer consumeCtx.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.SessionEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
						msg.Ack()
						continue
					}
					count++

					if jsonOutput {
						data, _ := json.Marshal(event)
						fmt.Println(string(data))
					} else {
						fmt.Println(formatSessionEvent(&event))
					}
					msg.Ack()
				case <-sigChan:
					if !jsonOutput {
						fmt.Printf("\nReceived %d event(s)\n", count)
					}
					return nil
				}
			}
		},
	}
}
