package commands

import (
	"fmt"
	"os"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/config"
	"quizagent/internal/llm"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe-prompts",
	Short: "Checks that the system prompt hides a planted code word and the user prompt extracts it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ApiKey == "" {
			return config.ErrMissingApiKey
		}
		client, err := newLlmClient(cmd.Context(), cfg, telemetry.SlogAPI{})
		if err != nil {
			return err
		}

		result, err := llm.ProbePrompts(cmd.Context(), client, cfg.Llm.SystemPrompt, cfg.Llm.UserPrompt)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Prompt", "Revealed", "Expected", "Reply"})
		t.AppendRows([]table.Row{
			{"system", result.SystemRevealed, false, result.SystemText},
			{"system + user", result.UserRevealed, true, result.UserText},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
		fmt.Printf("code word: %s\n", result.CodeWord)
		return nil
	},
}
