package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/viirs-active-fires/internal/cache"
	"github.com/mohammed-shakir/viirs-active-fires/internal/cache/memory"
	"github.com/mohammed-shakir/viirs-active-fires/internal/cache/redisstore"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/config"
)

// openCache builds the configured driver. An unreachable Redis falls back to
// the in-process cache.
func openCache(ctx context.Context, c config.CacheCfg, log *slog.Logger) cache.Interface {
	switch c.Driver {
	case "none", "off":
		return cache.None{}
	case "redis":
		dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		rc, err := redisstore.New(dctx, c.RedisAddr,
			redisstore.WithReadTimeout(c.OpTimeout),
			redisstore.WithWriteTimeout(c.OpTimeout),
		)
		if err == nil {
			return rc
		}
		log.Warn("redis cache unavailable, using memory cache", "addr", c.RedisAddr, "err", err)
	}
	return memory.New(c.Size, c.TTL)
}
