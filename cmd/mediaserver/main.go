// Command mediaserver wires together the index store, derivative caches,
// scheduler, encoder/metadata tools, discovery driver and HTTP server into
// a running process, following the teacher's cmd/shrinkray wiring order:
// config, logger, store, pools, router, then graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/config"
	"github.com/ashgrove/mediavault/internal/discovery"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/metadata"
	"github.com/ashgrove/mediavault/internal/scheduler"
	"github.com/ashgrove/mediavault/internal/server"
	"github.com/ashgrove/mediavault/internal/status"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/mediavault.yaml)")
	port := flag.Int("port", 0, "Override port from config")
	mediaRoot := flag.String("media", "", "Override media root from config")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/mediavault.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *mediaRoot != "" {
		cfg.MediaRoot = *mediaRoot
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger.Init(cfg.LogLevel)

	if _, err := os.Stat(cfg.MediaRoot); err != nil {
		log.Fatalf("media root %q: %v", cfg.MediaRoot, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	derivativeCache, hlsCache, err := cache.Init(initCtx, cfg.CacheDir)
	initCancel()
	if err != nil {
		log.Fatalf("init cache: %v", err)
	}

	idx, err := index.Open(cfg.IndexDBPath, cfg.MediaRoot)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	sched := scheduler.New(cfg.Workers)
	sched.Start()
	defer sched.Stop()

	video := encoder.NewVideoTool(cfg.FFprobePath, cfg.FFmpegPath)
	stills := encoder.NewStillResizer(cfg.StillResizeScript)
	extractor := metadata.NewExtractor(video)

	driver := discovery.New(cfg.MediaRoot, idx, extractor, video, derivativeCache, hlsCache, sched)

	if !cfg.NoAutoStart {
		driver.Start(ctx)
		if cfg.WatchMode {
			go func() {
				if err := driver.Watch(ctx); err != nil && ctx.Err() == nil {
					logger.Error("watch stopped", "error", err)
				}
			}()
		}
	}

	thumbs := status.NewThumbnailTracker()
	reporter := status.NewReporter(idx, driver, thumbs)

	srv := server.New(cfg.MediaRoot, idx, derivativeCache, hlsCache, sched, video, stills, extractor, driver, reporter, thumbs, cfg, cfgPath)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	fmt.Println("mediavault")
	fmt.Printf("  media root:  %s\n", cfg.MediaRoot)
	fmt.Printf("  cache dir:   %s\n", cfg.CacheDir)
	fmt.Printf("  index db:    %s\n", cfg.IndexDBPath)
	fmt.Printf("  workers:     %d\n", cfg.Workers)
	fmt.Printf("  watch mode:  %v\n", cfg.WatchMode)
	fmt.Printf("  listening:   :%d\n", cfg.Port)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
