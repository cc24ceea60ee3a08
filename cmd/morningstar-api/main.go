package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/http"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/files"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	boltstore "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/bolt"
	firestorestore "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/firestore"
	memstore "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/memory"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/sqlstore"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/catalog"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/interview"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/speech"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/config"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

type stores struct {
	conversations domain.ConversationStore
	interviews    domain.InterviewStore
	closer        io.Closer
}

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc, err := llm.NewHTTPClient(cfg.ProxyURL)
	if err != nil {
		log.Error("error building provider http client", "error", err)
		os.Exit(1)
	}
	providers, synth, err := llm.Build(ctx, cfg, hc)
	if err != nil {
		log.Error("error initializing providers", "error", err)
		os.Exit(1)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	if st.closer != nil {
		defer st.closer.Close()
	}

	questions := catalog.New()
	if cfg.QuestionBankPath != "" {
		banks, err := catalog.LoadFile(cfg.QuestionBankPath)
		if err != nil {
			log.Error("error loading question bank", "path", cfg.QuestionBankPath, "error", err)
			os.Exit(1)
		}
		questions.Replace(banks)
		go func() {
			if err := questions.Watch(ctx, cfg.QuestionBankPath); err != nil {
				log.Warn("question bank watcher stopped", "error", err)
			}
		}()
	}

	judgeProvider, err := providers.Preferred(domain.ProviderOpenAI, domain.ProviderClaude, domain.ProviderGemini, domain.ProviderMock)
	if err != nil {
		log.Error("no provider available for scoring", "error", err)
		os.Exit(1)
	}
	log.Info("scoring provider selected", "provider", judgeProvider.Kind())

	policy := retry.Policy{
		MaxAttempts:    cfg.RetryAttempts,
		InitialBackoff: cfg.RetryInitial,
		MaxBackoff:     cfg.RetryMax,
	}

	conversations := conversation.NewService(st.conversations, conversation.Options{
		HistoryLimit: cfg.HistoryLimit,
		TokenBudget:  cfg.HistoryTokenBudget,
	})
	gateway := relay.NewGateway(conversations, files.NewExtractor(), relay.Options{
		IdleTimeout: cfg.StreamIdleTimeout,
		Retry:       policy,
	})
	tts := speech.NewService(synth, cfg.TTSVoice, policy)
	interviews := interview.NewService(st.interviews, questions, interview.NewJudge(judgeProvider, ""), tts, interview.Options{
		PlanLength: cfg.PlanLength,
		Retry:      policy,
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpadapter.NewServer(httpadapter.Deps{
			Conversations:  conversations,
			Relay:          gateway,
			Providers:      providers,
			Interviews:     interviews,
			Speech:         tts,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		// streams stay open for as long as the provider keeps talking
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", "error", err)
		}
	}()

	log.Info("Morningstar API listening", "addr", srv.Addr, "mode", cfg.Mode, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case config.StorageBolt:
		log.Info("using bolt storage", "path", cfg.BoltPath)
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &stores{conversations: s, interviews: s, closer: s}, nil

	case config.StorageFirestore:
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		s, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		return &stores{conversations: s, interviews: s, closer: s}, nil

	case config.StorageSQL:
		log.Info("using sql storage")
		s, err := sqlstore.OpenPostgres(cfg.SQLDSN)
		if err != nil {
			return nil, err
		}
		return &stores{conversations: s, interviews: s, closer: s}, nil

	default:
		log.Info("using in-memory storage")
		return &stores{
			conversations: memstore.NewConversationStore(),
			interviews:    memstore.NewInterviewStore(),
		}, nil
	}
}
