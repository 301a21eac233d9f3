package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation session",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Discard a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionReset,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

func init() {
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}
	if sessionSvc == nil {
		return errors.New("no generation provider configured")
	}

	sessionID, err := sessionSvc.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	cmd.Println(sessionID)
	return nil
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}
	if sessionSvc == nil {
		return errors.New("no generation provider configured")
	}

	if err := sessionSvc.ResetSession(ctx, args[0]); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	cmd.Printf("Session %s reset.\n", args[0])
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}

	turns, err := turnStore.ListTurns(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}
	if len(turns) == 0 {
		cmd.Println("No turns in this session.")
		return nil
	}

	for _, turn := range turns {
		switch turn.Role {
		case domain.RoleSummary:
			cmd.Printf("[summary] %s\n", turn.Content)
		default:
			cmd.Printf("[%s] %s\n", turn.Role, turn.Content)
		}
		for _, c := range turn.Citations {
			marker := c.ChunkID
			if c.Stale {
				marker += " (stale)"
			}
			cmd.Printf("    cites %s\n", marker)
		}
	}
	return nil
}
