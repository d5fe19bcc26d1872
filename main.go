package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaos-io/playabooth/background"
	"github.com/chaos-io/playabooth/composite"
	"github.com/chaos-io/playabooth/config"
	"github.com/chaos-io/playabooth/gallery"
	"github.com/chaos-io/playabooth/segment"
	"github.com/chaos-io/playabooth/server"
	"github.com/chaos-io/playabooth/util"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg := config.New(*configPath)

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting playabooth", zap.String("version", Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 背景集合
	var opts []background.Option
	if cfg.Background.CacheBytes > 0 {
		cache, err := background.NewScaledCache(cfg.Background.CacheBytes)
		if err != nil {
			util.Logger.Fatal("failed to create background cache", zap.Error(err))
		}
		opts = append(opts, background.WithCache(cache))
	}
	opts = append(opts, background.WithDefaultSize(cfg.Background.DefaultWidth, cfg.Background.DefaultHeight))
	backgrounds := background.NewCollection(loadBackgrounds(ctx, &cfg.Background), opts...)

	// 分割模型，初始化失败时退化为 None，合成总是回退到原图
	segmenter, err := segment.New(cfg.Segmenter)
	if err != nil {
		util.Logger.Error("failed to create segmenter, compositing disabled",
			zap.String("kind", cfg.Segmenter.Kind), zap.Error(err))
		segmenter = segment.None{}
	}
	if closer, ok := segmenter.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	pipeline, err := newPipeline(&cfg.Composite, segmenter, backgrounds)
	if err != nil {
		util.Logger.Fatal("invalid composite config", zap.Error(err))
	}

	// 结果缓存
	var cache server.ResultCache = server.NopCache{}
	if cfg.Redis.Enabled {
		redisCache := server.NewRedisCache(&cfg.Redis)
		if err := redisCache.Ping(ctx); err != nil {
			util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			util.Logger.Info("redis connected successfully")
			cache = redisCache
		}
		defer func() {
			_ = redisCache.Close()
		}()
	}

	// 定时任务
	jobs := cron.New()
	if cfg.Gallery.PruneSpec != "" && cfg.Gallery.Retention > 0 {
		if _, err := jobs.AddFunc(cfg.Gallery.PruneSpec, func() {
			if _, err := gallery.Prune(cfg.Gallery.Dir, cfg.Gallery.Retention, time.Now()); err != nil {
				util.Logger.Warn("failed to prune gallery", zap.Error(err))
			}
		}); err != nil {
			util.Logger.Fatal("invalid gallery prune spec", zap.String("spec", cfg.Gallery.PruneSpec), zap.Error(err))
		}
	}
	if cfg.Background.RefreshSpec != "" {
		if _, err := jobs.AddFunc(cfg.Background.RefreshSpec, func() {
			backgrounds.Reload(loadBackgrounds(ctx, &cfg.Background))
		}); err != nil {
			util.Logger.Fatal("invalid background refresh spec", zap.String("spec", cfg.Background.RefreshSpec), zap.Error(err))
		}
	}
	jobs.Start()
	defer jobs.Stop()

	gin.SetMode(cfg.Server.Mode)
	handler := server.NewHandler(cfg, pipeline, backgrounds, cache)
	srv := server.NewHTTPServer(cfg.Server.Port, handler, Version)

	go func() {
		util.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	util.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.Logger.Error("server shutdown failed", zap.Error(err))
	}
}

func newPipeline(cfg *config.CompositeConfig, segmenter composite.Segmenter, backgrounds composite.BackgroundSource) (*composite.Pipeline, error) {
	sampling, err := composite.ParseSampling(cfg.Sampling)
	if err != nil {
		return nil, err
	}
	polarity, err := composite.ParsePolarity(cfg.Polarity)
	if err != nil {
		return nil, err
	}

	compositor := composite.NewCompositor(cfg.Threshold, polarity)
	compositor.Workers = cfg.Workers

	return composite.NewPipeline(segmenter, backgrounds, composite.NewSampler(sampling), compositor), nil
}

// loadBackgrounds 先加载本地素材再加载远程素材，全部失败时集合只含默认渐变
func loadBackgrounds(ctx context.Context, cfg *config.BackgroundConfig) []background.LoadResult {
	results, err := background.LoadDir(ctx, cfg.AssetDir, cfg.Pattern, cfg.MaxEdge)
	if err != nil {
		util.Logger.Warn("failed to load background dir", zap.String("dir", cfg.AssetDir), zap.Error(err))
	}
	if len(cfg.URLs) > 0 {
		results = append(results, background.LoadURLs(ctx, cfg.URLs, cfg.MaxEdge)...)
	}
	return results
}
