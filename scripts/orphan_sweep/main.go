package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rd-studio-media-api/internal/repository"
	"github.com/noah-isme/rd-studio-media-api/pkg/config"
	"github.com/noah-isme/rd-studio-media-api/pkg/database"
	"github.com/noah-isme/rd-studio-media-api/pkg/logger"
	"github.com/noah-isme/rd-studio-media-api/pkg/storage"
)

type objectLister interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	URL(key string) string
	Delete(ctx context.Context, rawURL string) (bool, error)
}

type referenceChecker interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
}

type options struct {
	Prefix    string
	Grace     time.Duration
	Apply     bool
	BatchSize int
	Now       time.Time
}

type report struct {
	Scanned    int
	Recent     int
	Referenced int
	Orphaned   []string
	Deleted    int
	Failed     int
}

func main() {
	var (
		prefix string
		grace  time.Duration
		apply  bool
		batch  int
	)
	flag.StringVar(&prefix, "prefix", "", "Key prefix to scan (defaults to MEDIA_KEY_PREFIX)")
	flag.DurationVar(&grace, "grace", 24*time.Hour, "Ignore objects modified within this window")
	flag.BoolVar(&apply, "apply", false, "Delete orphaned objects instead of reporting them")
	flag.IntVar(&batch, "batch", 500, "URLs checked per database query")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	store, err := storage.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}

	if prefix == "" {
		prefix = cfg.Media.KeyPrefix
	}
	res, err := sweep(ctx, store, repository.NewMediaRepository(db), options{
		Prefix:    prefix,
		Grace:     grace,
		Apply:     apply,
		BatchSize: batch,
		Now:       time.Now(),
	}, logr)
	if err != nil {
		logr.Fatal("orphan sweep failed", zap.Error(err))
	}

	printReport(res, apply)
	if res.Failed > 0 {
		os.Exit(1)
	}
}

// sweep lists every object under the prefix, skips objects younger than the
// grace period and reports or deletes those no item references.
func sweep(ctx context.Context, store objectLister, refs referenceChecker, opts options, logr *zap.Logger) (report, error) {
	var res report
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	prefix := opts.Prefix
	if prefix != "" {
		prefix = path.Clean(prefix) + "/"
	}
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return res, fmt.Errorf("list objects under %q: %w", prefix, err)
	}
	res.Scanned = len(objects)

	cutoff := opts.Now.Add(-opts.Grace)
	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			res.Recent++
			continue
		}
		candidates = append(candidates, store.URL(obj.Key))
	}

	for start := 0; start < len(candidates); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]
		existing, err := refs.ExistingURLs(ctx, chunk)
		if err != nil {
			return res, err
		}
		for _, url := range chunk {
			if existing[url] {
				res.Referenced++
				continue
			}
			res.Orphaned = append(res.Orphaned, url)
		}
	}

	if !opts.Apply {
		return res, nil
	}
	for _, url := range res.Orphaned {
		deleted, err := store.Delete(ctx, url)
		if err != nil {
			res.Failed++
			logr.Warn("delete orphaned object", zap.String("url", url), zap.Error(err))
			continue
		}
		if deleted {
			res.Deleted++
		}
	}
	return res, nil
}

func printReport(res report, applied bool) {
	fmt.Println("Orphan Sweep Report")
	fmt.Println("===================")
	fmt.Printf("Scanned: %d | Within grace: %d | Referenced: %d | Orphaned: %d\n", res.Scanned, res.Recent, res.Referenced, len(res.Orphaned))
	for _, url := range res.Orphaned {
		fmt.Printf("  %s\n", url)
	}
	if applied {
		fmt.Printf("Deleted: %d, Failed: %d\n", res.Deleted, res.Failed)
		return
	}
	fmt.Println("Dry run: rerun with -apply to delete")
}
