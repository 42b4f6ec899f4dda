// Package main provides the CLI entry point for turnctl, the
// multi-tenant conversational turn orchestrator.
//
// turnctl loads a turn-handling configuration, wires the classifier,
// policy kernel, tool loop, and guardrails, and serves inbound turns over
// HTTP (or, for local testing, accepts a single turn on the command line).
//
// # Basic Usage
//
// Start the server:
//
//	turnctl serve --config turnctl.yaml
//
// Run a single turn without starting the server, for local testing:
//
//	turnctl turn --business acme --channel telegram --user u1 --text "where is my order ORD-1234?"
//
// # Environment Variables
//
//   - TURNCTL_CONFIG: path to configuration file (default: turnctl.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key
//   - OPENAI_API_KEY: OpenAI API key
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/classifier"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/emaildraft"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/turnloop"
	"github.com/haasonsaas/nexus/pkg/models"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "turnctl",
		Short: "Multi-tenant conversational turn orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("TURNCTL_CONFIG", "turnctl.yaml"), "path to configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newTurnCmd(&configPath))
	root.AddCommand(newDraftEmailCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("turnctl %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the turn orchestrator HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}
			_ = orch

			logger.Info(ctx, "turnctl server ready", "host", cfg.Server.Host, "http_port", cfg.Server.HTTPPort)
			<-ctx.Done()
			logger.Info(ctx, "shutting down")
			return nil
		},
	}
}

func newTurnCmd(configPath *string) *cobra.Command {
	var business, channel, user, sessionID, messageID, text, language string

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run a single turn through the orchestrator and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}

			if sessionID == "" {
				sessionID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
			}
			if messageID == "" {
				messageID = fmt.Sprintf("msg-%d", time.Now().UnixNano())
			}
			if language == "" {
				language = "en"
			}

			ctx := context.Background()
			result, err := orch.HandleTurn(ctx, orchestrator.TurnInput{
				Channel:       models.ChannelType(channel),
				BusinessID:    business,
				ChannelUserID: user,
				SessionID:     sessionID,
				MessageID:     messageID,
				Text:          text,
				Language:      language,
			}, orchestrator.Persona{
				SystemPersona: "You are a helpful customer support assistant.",
				ChannelMode:   policy.ChannelModeFull,
			})
			if err != nil {
				return err
			}
			fmt.Println(result.ReplyText)
			return nil
		},
	}

	cmd.Flags().StringVar(&business, "business", "", "business ID")
	cmd.Flags().StringVar(&channel, "channel", string(models.ChannelWebChat), "channel")
	cmd.Flags().StringVar(&user, "user", "", "channel user ID")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID (generated if empty)")
	cmd.Flags().StringVar(&messageID, "message-id", "", "message ID (generated if empty)")
	cmd.Flags().StringVar(&text, "text", "", "inbound message text")
	cmd.Flags().StringVar(&language, "language", "en", "BCP-47 language code")
	_ = cmd.MarkFlagRequired("business")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// newDraftEmailCmd runs one inbound email through the shared turn
// orchestrator and then through the email draft pipeline, which layers RAG
// retrieval of tone-matched examples and a stricter grounding gate on top
// of the reply the orchestrator produced.
func newDraftEmailCmd(configPath *string) *cobra.Command {
	var business, user, threadID, subject, body, signature, language string

	cmd := &cobra.Command{
		Use:   "draft-email",
		Short: "Run one inbound email through the orchestrator and the email draft pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}

			if threadID == "" {
				threadID = fmt.Sprintf("cli-email-%d", time.Now().UnixNano())
			}
			if language == "" {
				language = "en"
			}

			persona := orchestrator.Persona{
				SystemPersona: "You are a helpful customer support agent replying to an email thread.",
				ChannelMode:   policy.ChannelModeFull,
			}

			ctx := context.Background()
			result, err := orch.HandleTurn(ctx, orchestrator.TurnInput{
				Channel:       models.ChannelEmail,
				BusinessID:    business,
				ChannelUserID: user,
				SessionID:     threadID,
				MessageID:     fmt.Sprintf("msg-%d", time.Now().UnixNano()),
				Text:          subject + "\n\n" + body,
				Language:      language,
			}, persona)
			if err != nil {
				return fmt.Errorf("handle turn: %w", err)
			}

			key := sessions.SessionKey(business, models.ChannelEmail, user)
			session, err := orch.SessionStore().GetByKey(ctx, key)
			if err != nil {
				return fmt.Errorf("reload session: %w", err)
			}
			state := sessions.GetConversationState(session)

			// No document store/embedder is configured for this CLI path; the
			// retriever degrades to returning no examples rather than erroring.
			pipeline := emaildraft.New(emaildraft.Config{
				Retriever:    emaildraft.NewRetriever(nil, nil),
				Orchestrator: orch,
				Persona:      persona,
			})
			draft, err := pipeline.Draft(ctx, emaildraft.ThreadInput{
				ThreadID:   threadID,
				BusinessID: business,
				Language:   language,
				Subject:    subject,
				Body:       body,
				Signature:  signature,
			}, state, result.ReplyText, state.Anchor != nil)
			if err != nil {
				return fmt.Errorf("draft email: %w", err)
			}

			fmt.Println(draft.Body)
			return nil
		},
	}

	cmd.Flags().StringVar(&business, "business", "", "business ID")
	cmd.Flags().StringVar(&user, "user", "", "sender email address")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread/session ID (generated if empty)")
	cmd.Flags().StringVar(&subject, "subject", "", "inbound email subject")
	cmd.Flags().StringVar(&body, "body", "", "inbound email body")
	cmd.Flags().StringVar(&signature, "signature", "", "reply signature to append")
	cmd.Flags().StringVar(&language, "language", "en", "BCP-47 language code")
	_ = cmd.MarkFlagRequired("business")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

// buildOrchestrator wires the classifier, tool loop, and orchestrator from
// config. The tool catalog itself (business-specific lookups) is supplied
// by the deployment embedding this binary; here it starts empty so `turn`
// works against chatter/direct-response paths out of the box.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	var provider llm.Provider
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		p, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: key})
		if err != nil {
			return nil, err
		}
		provider = p
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		provider = llm.NewOpenAIProvider(key)
	} else {
		slog.Warn("no LLM provider configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}

	clsf := classifier.New(classifier.Config{
		Provider: provider,
		UseLLM:   cfg.Classifier.UseLLM,
		Timeout:  cfg.Classifier.Timeout,
	})

	loop := turnloop.New(turnloop.Config{
		Provider:         provider,
		Tools:            map[string]*turnloop.Tool{},
		Idempotency:      turnloop.NewIdempotencyCache(10 * time.Minute),
		ToolTimeout:      cfg.Loop.DefaultToolTimeout,
		ToolRetryBackoff: cfg.Loop.DefaultToolRetryBackoff,
	})

	store, locker, err := buildStoreAndLocker(cfg)
	if err != nil {
		return nil, err
	}

	// The shutdown func flushes buffered spans; buildOrchestrator has no
	// natural place to hold onto it across this CLI's lifetime, so an
	// unconfigured endpoint (tracer is then a no-op) is the expected case.
	tracer, _ := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.EnableInsecure,
	})

	return orchestrator.New(orchestrator.Config{
		Store:                store,
		Locker:               locker,
		Classifier:           clsf,
		Loop:                 loop,
		Model:                cfg.LLM.DefaultProvider,
		ModelBudgets:         cfg.PromptBudget.ModelBudgets,
		Metrics:              observability.NewTurnMetrics(),
		Tracer:               tracer,
		EnumerationThreshold: cfg.Policy.EnumerationThreshold,
		EnumerationWindow:    cfg.Policy.EnumerationWindow,
		IdleResetMinutes:     cfg.Session.IdleResetMinutes,
	}), nil
}

// buildStoreAndLocker constructs the reference session store and its
// matching Locker from cfg.Database.Backend/cfg.Session.Locker. "postgres"
// backs onto CockroachStore over cfg.Database.URL; anything else (including
// the default "memory") uses the in-process MemoryStore. A "db" session
// locker is only meaningful alongside the Postgres store, since it needs a
// shared *sql.DB to lease locks through; it falls back to a local,
// process-only lock otherwise.
func buildStoreAndLocker(cfg *config.Config) (sessions.Store, sessions.Locker, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Database.Backend))
	if backend != "postgres" {
		return sessions.NewMemoryStore(), sessions.NewLocalLocker(cfg.Session.LockTTL), nil
	}

	pgStore, err := sessions.NewCockroachStoreFromDSN(cfg.Database.URL, &sessions.CockroachConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres session store: %w", err)
	}

	if strings.ToLower(strings.TrimSpace(cfg.Session.Locker)) != "db" {
		return pgStore, sessions.NewLocalLocker(cfg.Session.LockTTL), nil
	}

	locker, err := sessions.NewDBLocker(pgStore.DB(), sessions.DBLockerConfig{
		OwnerID:        uuid.NewString(),
		TTL:            cfg.Session.LockTTL,
		AcquireTimeout: cfg.Session.LockAcquireTimeout,
		PollInterval:   cfg.Session.LockPollInterval,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build db session locker: %w", err)
	}
	return pgStore, locker, nil
}
