package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"questFilter/internal/cache"
	"questFilter/internal/matcher"
	"questFilter/internal/metrics"
)

// cacheSettings selects the result cache: redis when a URL is set, otherwise an
// in-process cache of Size entries. Size 0 with no URL disables caching.
type cacheSettings struct {
	RedisURL string
	TTL      time.Duration
	Size     int
}

// matcherOptions wires the optional result cache and metrics endpoint into opts.
// The returned cleanup must be called once matching is done.
func matcherOptions(ctx context.Context, opts matcher.Options, cs cacheSettings, metricsAddr string, logger *zap.Logger) (matcher.Options, *metrics.Recorder, func(), error) {
	cleanup := func() {}
	opts.Logger = logger

	switch {
	case cs.RedisURL != "":
		rc, err := cache.NewRedisCache(ctx, cs.RedisURL, cs.TTL)
		if err != nil {
			return opts, nil, cleanup, err
		}
		opts.Cache = rc
		cleanup = func() {
			if err := rc.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		}
		logger.Info("redis result cache enabled", zap.Duration("ttl", cs.TTL))
	case cs.Size > 0:
		opts.Cache = cache.NewMemoryCache(cs.Size)
		logger.Info("memory result cache enabled", zap.Int("size", cs.Size))
	}

	var recorder *metrics.Recorder
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewRecorder(reg)
		if err := metrics.Serve(ctx, metricsAddr, reg, logger); err != nil {
			cleanup()
			return opts, nil, func() {}, err
		}
		opts.Observer = recorder
	}
	return opts, recorder, cleanup, nil
}
