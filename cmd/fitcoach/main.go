package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fitcoach/internal/config"
	"fitcoach/internal/llm"
	"fitcoach/internal/logging"
	"fitcoach/internal/orchestrator"
	"fitcoach/internal/responder"
	"fitcoach/internal/router"
	"fitcoach/internal/session"
	"fitcoach/internal/store"
)

var (
	// Global flags
	configPath string
	subjectID  string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fitcoach",
	Short: "fitcoach - conversational fitness and nutrition coach",
	Long: `fitcoach is a conversational coaching assistant.

A supervisor routes each message to a domain coach (fitness or nutrition)
using LLM classification with a deterministic keyword fallback. Conversation
memory is bounded per tier and persisted per subject, one active session at
a time.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// app bundles the wired conversation stack for the chat and ask commands.
type app struct {
	st      *store.SQLiteStore
	orch    *orchestrator.Orchestrator
	watcher *router.LexiconWatcher
}

// buildApp wires store, router, responders, and orchestrator. withLLM
// false skips client construction for commands that never talk to a model.
func buildApp(ctx context.Context, withLLM bool) (*app, error) {
	st, err := store.NewSQLiteStore(cfg.Store.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var client llm.Client
	if withLLM {
		client, err = llm.NewClientFromConfig(cfg.LLM, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	lex := router.DefaultLexicon()
	if cfg.Router.LexiconPath != "" {
		lex, err = router.LoadLexicon(cfg.Router.LexiconPath)
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	sup := router.NewSupervisor(client, lex, cfg.Router, logger)

	var watcher *router.LexiconWatcher
	if cfg.Router.WatchLexicon && cfg.Router.LexiconPath != "" {
		watcher, err = router.NewLexiconWatcher(cfg.Router.LexiconPath, sup.SetLexicon, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		if err := watcher.Start(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}

	registry, err := responder.NewRegistry(
		responder.NewFitnessCoach(client, logger),
		responder.NewNutritionCoach(client, logger),
		responder.NewWelcome(),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	sessions := session.NewManager(st, cfg.SessionIdleTimeout(), logger)
	orch := orchestrator.New(cfg, st, sessions, sup, registry, logger)
	return &app{st: st, orch: orch, watcher: watcher}, nil
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.orch.Close(); err != nil {
		logger.Warn("closing orchestrator", zap.Error(err))
	}
	if err := a.st.Close(); err != nil {
		logger.Warn("closing store", zap.Error(err))
	}
}

// askCmd answers a single message and exits.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer a single message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.orch.HandleTurn(cmd.Context(), subjectID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fitcoach.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&subjectID, "subject", "s", "", "Subject identity (empty runs ephemeral)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(memoryCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
