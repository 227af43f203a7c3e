package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/agents"
	"github.com/lexcodex/planform/execution"
	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm"
	"github.com/lexcodex/planform/persistence"
	"github.com/lexcodex/planform/planning"
	"github.com/lexcodex/planform/server"
	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/tools"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = globalCfg.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err := runServer(ctx, globalCfg, globalLog, addr)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func runServer(ctx context.Context, cfg *Config, log *zap.Logger, addr string) error {
	s, err := store.New(cfg.ProjectsDir, log)
	if err != nil {
		return err
	}
	wm, err := workspace.NewManager(cfg.WorkspaceDir, log)
	if err != nil {
		return err
	}
	messages, err := persistence.NewSQLiteMessageStore(cfg.MessageDB)
	if err != nil {
		return err
	}
	defer messages.Close()

	model := llm.NewInstrumentedModel(
		llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout()), log)
	facade := agents.NewPlanningFacade(llm.NewStructuredCaller(model), log)
	pipeline := planning.NewPipeline(s, facade, log, cfg.Router.DontKnowMarkers...)
	engine := execution.NewEngine(s, wm, log)

	// Chat tool calls operate inside a shared scratch project so the
	// specialists always have a sandbox even before a task exists.
	ws, err := wm.Get("chat")
	if err != nil {
		return err
	}
	registry, err := framework.NewToolRegistry(tools.FilesystemTools(ws)...)
	if err != nil {
		return err
	}
	dispatcher := tools.NewDispatcher(registry, nil, log)
	specialists, fallback := agents.BuildSpecialists(model, dispatcher, log)
	router := agents.NewRouter(specialists, fallback, log)

	srv := server.NewServer(s, pipeline, engine, router, tracker.NewRegistry(), messages, wm, log)
	return srv.Serve(ctx, addr)
}
