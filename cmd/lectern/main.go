package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/config"
	dbRedis "github.com/tessellate-io/lectern/internal/db/redis"
	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/etl"
	logpkg "github.com/tessellate-io/lectern/internal/logger"
	"github.com/tessellate-io/lectern/internal/metrics"
	answerlogrepo "github.com/tessellate-io/lectern/internal/repository/answerlog"
	chunkrepo "github.com/tessellate-io/lectern/internal/repository/chunk"
	"github.com/tessellate-io/lectern/internal/repository/embcache"
	indexrepo "github.com/tessellate-io/lectern/internal/repository/index"
	chiTransport "github.com/tessellate-io/lectern/internal/transport/chi"
	openaiTransport "github.com/tessellate-io/lectern/internal/transport/openai"
	answeruc "github.com/tessellate-io/lectern/internal/usecase/answer"
	ingestuc "github.com/tessellate-io/lectern/internal/usecase/ingest"
	reindexuc "github.com/tessellate-io/lectern/internal/usecase/reindex"
	retrieveuc "github.com/tessellate-io/lectern/internal/usecase/retrieve"
)

func main() {
	root := &cobra.Command{
		Use:           "lectern",
		Short:         "Question answering over a lecture corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), ingestCmd(), reindexCmd(), dropCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds everything the commands share: config, logger, and a connected
// database store.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *dbRedis.Store
}

// bootstrap loads configuration, builds the logger, registers metrics, and
// connects to the database.
func bootstrap(ctx context.Context) (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.Register()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// embedder builds the embedding chain: OpenAI transport wrapped in the
// Redis-backed cache.
func (a *app) embedder() *embcache.CachedEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     a.cfg.Embedding.APIKey,
		BaseURL:    a.cfg.Embedding.BaseURL,
		Model:      a.cfg.Embedding.Model,
		Dimensions: a.cfg.Embedding.Dimensions,
		Logger:     a.logger,
	})
	return embcache.New(base, a.store, a.cfg.Index.KeyPrefix, metrics.EmbeddingCacheTotal, a.logger)
}

func (a *app) chunkRepo() *chunkrepo.Repository {
	return chunkrepo.New(a.store, a.cfg.Index.KeyPrefix, a.cfg.Ingest.BatchSize)
}

func (a *app) indexRepo() *indexrepo.Repository {
	return indexrepo.New(a.store, indexrepo.Options{
		KeyPrefix:   a.cfg.Index.KeyPrefix,
		Dim:         a.cfg.Embedding.Dimensions,
		HNSWM:       a.cfg.Index.HNSWM,
		EFConstruct: a.cfg.Index.HNSWEFConstruct,
		BatchSize:   a.cfg.Ingest.BatchSize,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the question-answering HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			embedder := a.embedder()
			indexRepo := a.indexRepo()

			switch size, err := indexRepo.Size(ctx); {
			case errors.Is(err, domain.ErrIndexUnavailable):
				a.logger.Warn("Vector index not published yet, run reindex before querying")
			case err != nil:
				a.logger.Warn("Failed to read vector index size", zap.Error(err))
			default:
				a.logger.Info("Vector index ready", zap.Int("entries", size))
			}

			retriever := retrieveuc.New(embedder, indexRepo, retrieveuc.Config{
				QueryK:      a.cfg.Retrieval.QueryK,
				SourceLimit: a.cfg.Retrieval.SourceLimit,
				MinScore:    a.cfg.Retrieval.MinScore,
			}, a.logger)

			completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
				APIKey:      a.cfg.LLM.APIKey,
				BaseURL:     a.cfg.LLM.BaseURL,
				Model:       a.cfg.LLM.Model,
				MaxTokens:   a.cfg.LLM.MaxTokens,
				Temperature: a.cfg.LLM.Temperature,
				Logger:      a.logger,
			})

			var sink answeruc.RecordSink
			if a.cfg.AnswerLog.Enabled {
				sink = answerlogrepo.New(a.store, a.cfg.AnswerLog.Stream, a.cfg.AnswerLog.MaxLen)
			}

			answers := answeruc.New(retriever, completer, sink, a.logger)
			server := chiTransport.NewServer(answers, a.store, embedder, a.logger)

			addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      server.Routes(a.cfg.Auth.APIKeys),
				ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Starting HTTP server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-quit:
				a.logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}

			a.logger.Info("Server stopped gracefully")
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var (
		manifestPath string
		kind         string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the corpus manifest into the document store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			switch kind {
			case "all", string(etl.KindMarkdown), string(etl.KindPDF), string(etl.KindVideo):
			default:
				return fmt.Errorf("unknown kind %q, want markdown, pdf, video or all", kind)
			}

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			manifest, err := etl.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			if kind != "all" {
				manifest = manifest.FilterKind(etl.Kind(kind))
			}

			fetcher := etl.NewHTTPFetcher(30 * time.Second)
			videos := etl.NewVideoNormalizer(
				etl.NewYouTubeTranscriptClient(30*time.Second, a.cfg.Ingest.FetchRetries),
				etl.NewLemnosChapterClient(a.cfg.Ingest.ChapterAPIBase, 30*time.Second, a.cfg.Ingest.FetchRetries),
				a.cfg.Ingest.WatchURLBase,
			)

			svc := ingestuc.New(
				a.chunkRepo(),
				etl.NewMarkdownNormalizer(fetcher),
				etl.NewPDFNormalizer(fetcher),
				videos,
				ingestuc.Config{Workers: a.cfg.Ingest.Workers},
				a.logger,
			)

			stats, err := svc.Run(ctx, manifest)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			cmd.Printf("Ingested %d documents into %d chunks (%d failed)\n",
				stats.Documents, stats.Chunks, len(stats.Failures))
			for _, f := range stats.Failures {
				cmd.Printf("  failed %s %s: %v\n", f.Kind, f.Ref, f.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "corpus.json", "path to the corpus manifest")
	cmd.Flags().StringVar(&kind, "kind", "all", "ingest only one source kind: markdown, pdf or video")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from the stored corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			svc := reindexuc.New(
				a.chunkRepo(),
				a.embedder(),
				a.indexRepo(),
				indexrepo.NewGeneration,
				reindexuc.Config{
					WindowSize:    a.cfg.Index.WindowSize,
					WindowOverlap: a.cfg.Index.WindowOverlap,
					Workers:       a.cfg.Ingest.Workers,
				},
				a.logger,
			)

			stats, err := svc.Rebuild(ctx)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			cmd.Printf("Published generation %s: %d chunks, %d index entries\n",
				stats.Generation, stats.Chunks, stats.Entries)
			return nil
		},
	}
}

func dropCmd() *cobra.Command {
	var keepChunks bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the vector index, and unless told otherwise the corpus too",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.indexRepo().DropAll(ctx); err != nil {
				return fmt.Errorf("drop index: %w", err)
			}
			cmd.Println("Dropped vector index")

			if !keepChunks {
				if err := a.chunkRepo().Drop(ctx); err != nil {
					return fmt.Errorf("drop corpus: %w", err)
				}
				cmd.Println("Dropped document corpus")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepChunks, "keep-corpus", false, "drop only the index, keep stored chunks")
	return cmd
}
