package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"quizagent/internal/chain"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const report_cli_history = "cli.history-record"

var (
	solveEmail  *string
	solveSecret *string
	stepEmail   *string
	stepSecret  *string
)

func init() {
	solveEmail = solveCmd.Flags().String("email", "", "The email submitted with every answer.")
	solveSecret = solveCmd.Flags().String("secret", "", "The secret submitted with every answer, defaults to shared_secret.")
	solveCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(solveCmd)

	stepEmail = stepCmd.Flags().String("email", "", "The email submitted with the answer.")
	stepSecret = stepCmd.Flags().String("secret", "", "The secret submitted with the answer, defaults to shared_secret.")
	stepCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(stepCmd)
}

func taskFrom(email, secret, url string) quiz.Task {
	if secret == "" {
		secret = cfg.SharedSecret
	}
	return quiz.Task{Email: email, Secret: secret, Url: url}
}

func printSteps(steps []chain.StepResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Step", "Url", "Answer", "Kind", "Status", "Next", "Took"})
	for _, step := range steps {
		t.AppendRow(table.Row{
			step.Step,
			step.Url,
			step.Answer.String(),
			step.Answer.Kind.String(),
			step.Result.Status,
			step.Result.NextUrl,
			formatDuration(step.Duration),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var solveCmd = &cobra.Command{
	Use:   "solve <url> --email <email> [--secret <secret>]",
	Short: "Solves a quiz chain from its first url until it ends.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := cfg.Validate()
		if err != nil {
			return err
		}
		tel := telemetry.SlogAPI{}
		orchestrator, renderer, err := newOrchestrator(cmd.Context(), cfg, tel)
		if err != nil {
			return err
		}
		defer renderer.Close()

		store, closeHistory, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer closeHistory()

		report := orchestrator.SolveFullQuiz(cmd.Context(), taskFrom(*solveEmail, *solveSecret, args[0]))
		if store != nil {
			err := store.Record(context.WithoutCancel(cmd.Context()), report)
			if err != nil {
				tel.ReportWarning(report_cli_history, err)
			}
		}
		printSteps(report.Steps)
		fmt.Printf("run %s finished %s\n", report.RunId, report.State)
		if report.Errors != nil {
			fmt.Printf("recovered problems:\n%v\n", report.Errors)
		}
		return report.Err
	},
}

var stepCmd = &cobra.Command{
	Use:   "step <url> --email <email> [--secret <secret>]",
	Short: "Solves and submits a single quiz step without following its continuation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := cfg.Validate()
		if err != nil {
			return err
		}
		tel := telemetry.SlogAPI{}
		orchestrator, renderer, err := newOrchestrator(cmd.Context(), cfg, tel)
		if err != nil {
			return err
		}
		defer renderer.Close()

		result, err := orchestrator.SolveStep(cmd.Context(), taskFrom(*stepEmail, *stepSecret, args[0]))
		if err != nil {
			var stepErr *chain.StepError
			if errors.As(err, &stepErr) {
				return fmt.Errorf("aborted while %s: %w", stepErr.State, err)
			}
			return err
		}
		printSteps([]chain.StepResult{result})
		return nil
	},
}
