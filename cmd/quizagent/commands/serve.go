package commands

import (
	"net/http"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/service"
	"quizagent/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the quiz step and chain endpoints over http.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := cfg.Validate()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		tel := telemetry.SlogAPI{}

		orchestrator, renderer, err := newOrchestrator(ctx, cfg, tel)
		if err != nil {
			return err
		}
		defer renderer.Close()

		telemetry.InstrumentPerfStats(ctx)

		store, closeHistory, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer closeHistory()
		var recorder service.ReportRecorder
		if store != nil {
			recorder = store
		}

		svc := service.NewService(ctx, orchestrator, cfg.SharedSecret, recorder, tel)
		mux := http.NewServeMux()
		svc.Mount(mux)

		err = serviceutil.StartHttpServer(ctx, cfg.Server.Port, mux)
		svc.Wait()
		return err
	},
}
