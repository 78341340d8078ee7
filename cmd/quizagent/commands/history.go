package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit *int
	historyRun   *string
)

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "The number of runs to list.")
	historyRun = historyCmd.Flags().String("run", "", "List the steps of this run instead.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--run <id>]",
	Short: "Lists previously solved chains.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeHistory, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer closeHistory()
		if store == nil {
			return fmt.Errorf("history is disabled, set history.file or history.url")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)

		if *historyRun != "" {
			steps, err := store.Steps(cmd.Context(), *historyRun)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Step", "Url", "Answer", "Kind", "Status", "Reason", "Took"})
			for _, step := range steps {
				t.AppendRow(table.Row{
					step.Step,
					step.Url,
					step.Answer,
					step.AnswerKind,
					step.Status,
					step.Reason,
					formatDuration(step.Duration),
				})
			}
			t.Render()
			return nil
		}

		runs, err := store.Recent(cmd.Context(), *historyLimit)
		if err != nil {
			return err
		}
		t.AppendHeader(table.Row{"Run", "Started", "Url", "Steps", "State", "Error"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.Id,
				run.Started.Format(time.DateTime),
				run.Url,
				run.Steps,
				run.State,
				run.Error,
			})
		}
		t.Render()
		return nil
	},
}
