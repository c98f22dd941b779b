package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	var sessionID string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run a query through the full council pipeline",
		Long: `Ask redacts the question, runs it through the Pathos/Logos/Ethos
deliberation loop, and re-inflates the agreed response before printing
it. Vetoed and escalated outcomes are reported without a response.

Example:
  tripartite ask --session demo "how does our deployment process work?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(sessionID, strings.Join(args, " "), jsonOut)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID scoping the token vault and manifest (default: a generated one-off ID)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runAsk(sessionID, query string, jsonOut bool) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.council.Ask(context.Background(), sessionID, query, nil)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("outcome: %s (rounds=%d)\n", resp.Outcome, resp.Rounds)
	switch {
	case resp.Answer != "":
		fmt.Println()
		fmt.Println(resp.Answer)
	case resp.Reason != "":
		fmt.Println("reason:", resp.Reason)
	}
	return nil
}
