package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

var (
	askSessionID string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested documents",
	Long: `Retrieves the passages most relevant to the question, synthesises an
answer with the configured generation provider, and prints it with a
reference list of the cited sources.

Without --session a new conversation is started; pass the printed
session ID to follow-up questions to keep the conversation going.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSessionID, "session", "s", "", "conversation session ID")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}
	if askService == nil {
		return errors.New("no generation provider configured; run 'parley config set generation.provider ollama' (or openai, anthropic)")
	}

	sessionID := askSessionID
	newSession := false
	if sessionID == "" {
		var err error
		sessionID, err = sessionSvc.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		newSession = true
	}

	answer, err := askService.Ask(ctx, sessionID, args[0])
	if err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("%s failed: %w", stageErr.Stage, stageErr.Err)
		}
		return err
	}

	if askJSON {
		return outputAnswerJSON(cmd, sessionID, answer)
	}
	return outputAnswerText(cmd, sessionID, newSession, answer)
}

func outputAnswerJSON(cmd *cobra.Command, sessionID string, answer *domain.Answer) error {
	payload := struct {
		SessionID           string            `json:"session_id"`
		Answer              string            `json:"answer"`
		Citations           []domain.Citation `json:"citations"`
		CitationsIncomplete bool              `json:"citations_incomplete"`
	}{sessionID, answer.Text, answer.Citations, answer.CitationsIncomplete}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, sessionID string, newSession bool, answer *domain.Answer) error {
	cmd.Println(answer.Text)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("References:")
		for _, c := range answer.Citations {
			source := c.SourceURI
			if source == "" {
				source = c.DocumentID
			}
			cmd.Printf("  [%d] %s\n", c.Marker, source)
		}
	}
	if answer.CitationsIncomplete {
		cmd.Println()
		cmd.Println("Note: some citations could not be resolved to sources.")
	}

	if newSession {
		cmd.Println()
		cmd.Printf("Session: %s (pass --session %s to continue this conversation)\n", sessionID, sessionID)
	}
	return nil
}
