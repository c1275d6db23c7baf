package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/backend"
	"github.com/queryward/queryward/pkg/handlers"
	"github.com/queryward/queryward/pkg/mcp"
	"github.com/queryward/queryward/pkg/mcp/tools"
	"github.com/queryward/queryward/pkg/middleware"
	"github.com/queryward/queryward/pkg/registry"
)

// ServeFlags holds flag values for the serve command.
type ServeFlags struct {
	HTTP bool
}

// NewServeCommand creates the 'serve' command.
func NewServeCommand(deps *Deps) *cobra.Command {
	flags := &ServeFlags{}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool interface",
		Long: `Serve exposes the query pipeline as MCP tools. By default it speaks
the stdio transport for a locally spawned agent process. With --http it
listens on the configured address instead, mounting the streamable HTTP
transport at /mcp alongside health endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := buildPipelineFn(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer cleanup()

			translator, err := buildTranslatorFn(deps)
			if err != nil {
				return err
			}

			cfg := deps.Cfg
			factory := registries(deps)
			s := mcp.NewServer("queryward", cfg.Version, deps.Logger)

			tools.RegisterQueryTools(s.MCP(), &tools.QueryToolDeps{
				Runner:            runner,
				Registries:        factory,
				DefaultSession:    cfg.Registry.DefaultSession,
				AllowUnrestricted: cfg.Safety.AllowUnrestricted,
				Logger:            deps.Logger,
			})

			qdeps := tools.QuestionToolDeps{
				Runner:         runner,
				DefaultSession: cfg.Registry.DefaultSession,
				Logger:         deps.Logger,
			}
			// Assign only when non-nil so the tool sees a nil interface
			// rather than a typed nil when no model is configured.
			if translator != nil {
				qdeps.Translator = translator
			}
			tools.RegisterQuestionTool(s.MCP(), &qdeps)

			if !flags.HTTP {
				deps.Logger.Info("serving mcp over stdio")
				return s.ServeStdio()
			}
			return serveHTTP(cmd.Context(), deps, s, factory)
		},
	}

	serveCmd.Flags().BoolVar(&flags.HTTP, "http", false, "serve over HTTP instead of stdio")

	return serveCmd
}

func serveHTTP(ctx context.Context, deps *Deps, s *mcp.Server, factory *registry.Factory) error {
	cfg := deps.Cfg
	prober := backend.NewProbe(backend.NewRunner(deps.Logger), cfg.Backend.Command, cfg.Backend.MinVersion, deps.Logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, prober, factory, deps.Logger).RegisterRoutes(mux)
	handlers.NewMCPHandler(s, deps.Logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           middleware.RequestLogger(deps.Logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("serving mcp over http", zap.String("addr", cfg.Server.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
