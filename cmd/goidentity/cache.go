package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the read-model cache",
	}

	var prefix string
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Delete cached keys under a prefix",
		Long: `Delete every cached key starting with --prefix, for example
"profile:" or "search:<viewer-id>:". Keys are relative to the configured namespace.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCache(cmd.Context(), func(ctx context.Context, layer *cache.Layer) error {
				n, err := layer.DeletePrefix(ctx, prefix)
				if err != nil {
					return oops.Code("CACHE_FLUSH_FAILED").With("prefix", prefix).Wrap(err)
				}
				a.logger.Info("cache flushed", zap.String("prefix", prefix), zap.Int("removed", n))
				cmd.Printf("removed %d keys\n", n)
				return nil
			})
		},
	}
	flush.Flags().StringVar(&prefix, "prefix", "", "key prefix to delete")
	_ = flush.MarkFlagRequired("prefix")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count cached keys per family",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCache(cmd.Context(), func(ctx context.Context, layer *cache.Layer) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "FAMILY\tPREFIX\tKEYS")
				for _, f := range cache.Families() {
					keys, err := layer.Keys(ctx, f.Prefix)
					if err != nil {
						return oops.Code("CACHE_SCAN_FAILED").With("prefix", f.Prefix).Wrap(err)
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", f.Name, f.Prefix, len(keys))
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(flush, stats)
	return cmd
}

// withCache connects to redis, confirms it answers, and hands fn a cache layer.
func (a *app) withCache(ctx context.Context, fn func(context.Context, *cache.Layer) error) error {
	client := a.redisClient()
	defer func() { _ = client.Close() }()

	cfg := a.settings.Identity.Cache
	store := cache.NewRedisStore(client, cache.RedisConfig{
		Namespace: cfg.Namespace,
		Timeout:   cfg.Timeout,
		ScanCount: cfg.ScanCount,
	}, a.logger)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return oops.Code("CACHE_UNAVAILABLE").With("addr", a.settings.Redis.Addr).Wrap(err)
	}
	return fn(ctx, cache.NewLayer(store, a.logger, cache.Hooks{}))
}
