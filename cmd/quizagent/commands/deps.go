package commands

import (
	"context"
	"fmt"
	"time"

	"quizagent/internal/chain"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/config"
	"quizagent/internal/history"
	"quizagent/internal/llm"
	"quizagent/internal/render"
	"quizagent/internal/resolver"
	"quizagent/internal/submit"
	"quizagent/internal/tables"
)

func newLlmClient(ctx context.Context, cfg config.Config, tel telemetry.API) (llm.Client, error) {
	switch cfg.Llm.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, llm.GeminiOptions{
			ApiKey:    cfg.ApiKey,
			Model:     cfg.Model,
			MaxTokens: cfg.Llm.MaxTokens,
			BaseUrl:   cfg.Llm.Endpoint,
		}, tel)
	case config.ProviderAipipe:
		return llm.NewAipipeClient(llm.AipipeOptions{
			Endpoint:  cfg.Llm.Endpoint,
			ApiKey:    cfg.ApiKey,
			Model:     cfg.Model,
			MaxTokens: cfg.Llm.MaxTokens,
			Timeout:   cfg.SubmitTimeout(),
		}, tel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Llm.Provider)
	}
}

func newRenderer(ctx context.Context, cfg config.Config, tel telemetry.API) (render.Renderer, error) {
	if cfg.Render.Mode == config.RenderStatic {
		return render.NewStatic(cfg.RenderTimeout(), tel), nil
	}
	return render.NewBrowser(ctx, render.BrowserOptions{
		DebuggerUrl: cfg.Render.DebuggerUrl,
		Bin:         cfg.Render.Bin,
		Headless:    cfg.Headless(),
		IdleTime:    cfg.IdleTime(),
		Timeout:     cfg.RenderTimeout(),
	}, tel)
}

func newTableLocator(cfg config.Config, tel telemetry.API) *tables.Locator {
	return tables.NewLocator(tables.Options{
		Timeout:       cfg.DownloadTimeout(),
		RatePerSecond: cfg.DownloadRate(),
	}, tel)
}

// newOrchestrator wires every collaborator from the configuration. The returned
// renderer must be closed by the caller.
func newOrchestrator(ctx context.Context, cfg config.Config, tel telemetry.API) (*chain.Orchestrator, render.Renderer, error) {
	client, err := newLlmClient(ctx, cfg, tel)
	if err != nil {
		return nil, nil, err
	}
	renderer, err := newRenderer(ctx, cfg, tel)
	if err != nil {
		return nil, nil, err
	}

	orchestrator := chain.New(chain.Dependencies{
		Renderer: renderer,
		Tables:   newTableLocator(cfg, tel),
		Resolver: resolver.Default(client, resolver.Prompts{
			System: cfg.Llm.SystemPrompt,
			User:   cfg.Llm.UserPrompt,
		}, cfg.PayloadLimit(), tel),
		Submitter: submit.NewClient(cfg.SubmitTimeout(), tel),
	}, chain.Options{MaxSteps: cfg.StepLimit()}, tel)

	return orchestrator, renderer, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// openHistory returns a nil store when history is disabled.
func openHistory(cfg config.Config) (*history.Store, func(), error) {
	if !cfg.History.Enabled() {
		return nil, func() {}, nil
	}
	database, err := cfg.History.OpenDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	store := history.NewStore(database)
	return &store, func() { database.Close() }, nil
}
