// Command fragend asks the answer backend a question and streams the
// response to stdout.
//
// Usage:
//
//	fragend [flags] "question ..."
//
// Configuration is read from a YAML file (see -config) with FRAGEND_*
// environment overrides; the backend URL is the only required setting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/assemble"
	"github.com/fragend/fragend/pkg/cache"
	"github.com/fragend/fragend/pkg/config"
	"github.com/fragend/fragend/pkg/debug"
	"github.com/fragend/fragend/pkg/middleware"
	"github.com/fragend/fragend/pkg/ratelimit"
	"github.com/fragend/fragend/pkg/session"
	"github.com/fragend/fragend/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fragend failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	profile := flag.String("profile", "", "answer profile id (overrides config)")
	searchMode := flag.String("search-mode", "", "retrieval search mode (overrides config)")
	feedback := flag.String("feedback", "", "rate the answer afterwards: up or down")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() == 0 {
		return fmt.Errorf("usage: fragend [flags] \"question\"")
	}
	question := strings.Join(flag.Args(), " ")

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	debug.Init("", level)
	logger := slog.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *profile != "" {
		cfg.Ask.ProfileID = *profile
	}
	if *searchMode != "" {
		cfg.Ask.SearchMode = *searchMode
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)

	// Callbacks run on the event dispatch goroutine, one at a time, so
	// the sentence buffer and the printed offset need no locking.
	var sentences assemble.SentenceBuffer
	var printed int

	ctrl := session.NewController(session.Config{
		Transport: transport.NewSSE(cfg.Backend.URL,
			transport.WithOpenTimeout(cfg.Backend.OpenTimeout)),
		AskOptions: askOptions(cfg),
		Logger:     logger,
		Pipeline: middleware.PipelineConfig{
			Limiter:     ratelimit.New(limiterConfigs(cfg)),
			Store:       store,
			CacheTTL:    cfg.Cache.TTL,
			Logger:      logger,
			Validation:  api.ValidationConfig{MaxQuestionLength: cfg.Validation.MaxQuestionLength},
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
		},
		Callbacks: session.Callbacks{
			OnProgress: func(resp *api.AssembledResponse) {
				// Print whole sentences as they form; the remainder is
				// flushed on completion.
				if len(resp.Text) <= printed {
					return
				}
				delta := strings.TrimSpace(resp.Text[printed:])
				printed = len(resp.Text)
				for _, s := range sentences.Feed(delta) {
					fmt.Println(s)
				}
			},
			OnComplete: func(resp *api.AssembledResponse) {
				if rest := sentences.Flush(); rest != "" {
					fmt.Println(rest)
				}
				printSources(resp)
				done <- nil
			},
			OnError: func(pe *api.ProtocolError) {
				done <- pe
			},
		},
	})
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID, err := ctrl.Ask(ctx, question)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("interrupted, stopping exchange", "session_id", sessionID)
		if err := ctrl.Stop(context.Background()); err != nil {
			return err
		}
		if resp, err := ctrl.Response(sessionID); err == nil && resp.Text != "" {
			fmt.Println(resp.Text)
		}
		return nil
	}

	if fb, ok := parseFeedback(*feedback); ok {
		if err := ctrl.SubmitFeedback(context.Background(), sessionID, fb); err != nil {
			return fmt.Errorf("submitting feedback: %w", err)
		}
		fmt.Fprintln(os.Stderr, "feedback recorded")
	}
	return nil
}

func buildStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return cache.NewRedis(client, cfg.Cache.Redis.Prefix), nil
	case "memory":
		return cache.NewMemory(cfg.Cache.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}

func limiterConfigs(cfg *config.Config) map[ratelimit.Class]ratelimit.Config {
	return map[ratelimit.Class]ratelimit.Config{
		ratelimit.ClassAsk:      {Rate: cfg.RateLimit.Ask.Rate, Burst: cfg.RateLimit.Ask.Burst},
		ratelimit.ClassFeedback: {Rate: cfg.RateLimit.Feedback.Rate, Burst: cfg.RateLimit.Feedback.Burst},
		ratelimit.ClassDefault:  {Rate: cfg.RateLimit.Default.Rate, Burst: cfg.RateLimit.Default.Burst},
	}
}

func askOptions(cfg *config.Config) transport.AskOptions {
	opts := transport.AskOptions{
		ProfileID:      cfg.Ask.ProfileID,
		SearchMode:     cfg.Ask.SearchMode,
		SearchDistance: cfg.Ask.SearchDistance,
	}
	for _, f := range cfg.Ask.Filters {
		opts.Filters = append(opts.Filters, transport.Filter{
			Key:       f.Key,
			Values:    f.Values,
			IsNegated: f.Negated,
		})
	}
	return opts
}

func parseFeedback(s string) (api.Feedback, bool) {
	switch strings.ToLower(s) {
	case "up":
		return api.FeedbackUp, true
	case "down":
		return api.FeedbackDown, true
	}
	return "", false
}

func printSources(resp *api.AssembledResponse) {
	relevant := assemble.SortPassages(resp.Passages, assemble.SortByScore)
	if len(relevant) > 0 {
		fmt.Println("\nSources:")
		for _, p := range relevant {
			marker := " "
			if assemble.HighRelevance(p) {
				marker = "*"
			}
			fmt.Printf("  %s [%d%%] %s\n", marker, assemble.RelevancePercent(p), p.Title())
		}
	}
	if len(resp.RelatedQuestions) > 0 {
		fmt.Println("\nRelated questions:")
		for _, q := range resp.RelatedQuestions {
			fmt.Printf("  - %s\n", q)
		}
	}
}
