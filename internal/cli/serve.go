package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarvislabs/jarvis/internal/agent"
	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/gateway"
	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/orchestrator"
	"github.com/jarvislabs/jarvis/internal/plugin"
	"github.com/jarvislabs/jarvis/internal/retrieval"
	"github.com/jarvislabs/jarvis/internal/store"
	"github.com/jarvislabs/jarvis/internal/toolreg"
	"github.com/jarvislabs/jarvis/internal/voice"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Jarvis gateway and agent platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Persistence
			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "jarvis.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", dbPath).Msg("store ready")

			// Cost ledger
			ledger := costledger.NewLedger(costledger.Options{
				MaxRecords:   cfg.Budget.MaxRecords,
				DefaultLimit: domain.MoneyFromFloat(cfg.Budget.DefaultLimit),
				Thresholds:   cfg.Budget.Thresholds,
				Persister:    store.NewUsageStore(db),
			}, log)

			// Provider registry and agent pool
			registry := llm.NewRegistryFromConfig(cfg.Providers, cfg.Agents.List, log)

			// Tool workbench
			toolDir := cfg.Tools.Dir
			if toolDir == "" {
				toolDir = paths.Tools
			}
			var catalog toolreg.Catalog
			if cfg.Tools.CatalogURL != "" {
				catalog = toolreg.NewHTTPCatalog(cfg.Tools.CatalogURL, log)
			}
			tools := toolreg.NewRegistry(toolreg.Options{
				Dir:      toolDir,
				Catalog:  catalog,
				Scanner:  toolreg.NewScanner(cfg.Tools.SafetyThreshold),
				Executor: toolreg.NewSubprocessExecutor(time.Duration(cfg.Tools.SandboxTimeoutSeconds) * time.Second),
				Store:    store.NewToolStore(db),
				Log:      log,
			})

			// Live attachment: tools the orchestrator auto-installs
			// later are visible to agents without re-registration.
			agentTools := agent.NewToolRegistry()
			agentTools.AttachWorkbench(tools)
			pool := agent.NewPool(cfg.Agents.List, registry, agentTools, log)

			// Retrieval
			var retrievalSvc *retrieval.Service
			if cfg.Retrieval.Enabled {
				var searcher retrieval.Searcher
				if cfg.Retrieval.ServiceURL != "" {
					searcher = retrieval.NewHTTPSearcher(cfg.Retrieval.ServiceURL)
				} else {
					searcher = retrieval.NewLocalSearcher(store.NewDocumentStore(db))
				}
				retrievalSvc = retrieval.NewService(searcher, cfg.Retrieval.Limit, cfg.Retrieval.ScoreThreshold, log)
			}

			// Voice
			var voiceClient voice.Client
			if cfg.Voice.Enabled && cfg.Voice.ServiceURL != "" {
				voiceClient = voice.NewHTTPClient(cfg.Voice.ServiceURL, cfg.Voice.DefaultVoice, cfg.Voice.Speed)
			}

			hookMgr := hooks.NewManager(log)
			plugins := plugin.NewRegistry(hookMgr, log)

			orch := orchestrator.New(orchestrator.Options{
				Config:    &cfg,
				Pool:      pool,
				Ledger:    ledger,
				Tools:     tools,
				Retrieval: retrievalSvc,
				Voice:     voiceClient,
				Hooks:     hookMgr,
				Plugins:   plugins,
				Log:       log,
			})
			if err := orch.Initialize(ctx); err != nil {
				return fmt.Errorf("initializing orchestrator: %w", err)
			}
			defer orch.Shutdown(context.Background())

			srv := gateway.New(cfg.Gateway, orch, log, gateway.WithHooks(hookMgr))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
