package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change configuration: provider selection, chunking,
retrieval, and memory settings. Values live in a TOML file under the
parley config directory.

Common keys:
  embedding.provider    ollama | openai
  embedding.model       embedding model name
  embedding.api_key     API key (openai)
  generation.provider   ollama | openai | anthropic
  generation.model      generation model name
  generation.api_key    API key (openai, anthropic)
  retriever.top_k       chunks retrieved per question
  memory.max_turns      turns kept before summarisation`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}

	settings := loadSettings(configStore)

	cmd.Println("[embedding]")
	cmd.Printf("  provider = %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  model    = %s\n", settings.Embedding.Model)
	cmd.Printf("  status   = %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[generation]")
	cmd.Printf("  provider = %s\n", settings.Generation.Provider.Description())
	cmd.Printf("  model    = %s\n", settings.Generation.Model)
	cmd.Printf("  status   = %s\n", configuredStatus(settings.Generation.IsConfigured()))
	cmd.Println()

	cmd.Println("[chunker]")
	cmd.Printf("  max_tokens     = %d\n", settings.Chunker.MaxTokens)
	cmd.Printf("  overlap_tokens = %d\n", settings.Chunker.OverlapTokens)
	cmd.Printf("  splitter       = %s\n", settings.Chunker.Splitter)
	cmd.Println()

	cmd.Println("[retriever]")
	cmd.Printf("  top_k     = %d\n", settings.Retriever.TopK)
	cmd.Printf("  min_score = %g\n", settings.Retriever.MinScore)
	cmd.Printf("  diversify = %t\n", settings.Retriever.Diversify)
	cmd.Println()

	cmd.Println("[memory]")
	cmd.Printf("  max_turns  = %d\n", settings.Memory.MaxTurns)
	cmd.Printf("  max_tokens = %d\n", settings.Memory.MaxTokens)
	cmd.Printf("  window     = %d\n", settings.Memory.Window)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}

	key, raw := args[0], args[1]

	// Store numerics and booleans typed so reads round-trip.
	var value any = raw
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		value = i
	} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = f
	} else if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	}

	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	if strings.HasSuffix(key, "api_key") {
		cmd.Printf("Set %s.\n", key)
	} else {
		cmd.Printf("Set %s = %v\n", key, value)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}

	value, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %s is not set", args[0])
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}
	cmd.Println(configStore.Path())
	return nil
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
