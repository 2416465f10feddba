package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// redisKeys lists token-family and rate-limit keys with their TTL and
// optionally deletes them. Deleting tokfam:* revokes every session.
func redisKeys(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("redis-keys", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		addr    = fs.String("addr", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address host:port")
		pass    = fs.String("pass", os.Getenv("REDIS_PASSWORD"), "redis password")
		db      = fs.Int("db", 0, "redis db")
		pattern = fs.String("pattern", "tokfam:*", "scan pattern, e.g. rl:auth.login:*")
		doDel   = fs.Bool("del", false, "delete matched keys")
		count   = fs.Int64("count", 200, "SCAN COUNT hint")
		timeout = fs.Duration("timeout", 2*time.Second, "per-command timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: *addr, Password: *pass, DB: *db})
	defer rdb.Close()

	pctx, cancel := context.WithTimeout(ctx, *timeout)
	err := rdb.Ping(pctx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	var (
		cursor uint64
		total  int
	)
	for {
		sctx, cancel := context.WithTimeout(ctx, *timeout)
		keys, next, err := rdb.Scan(sctx, cursor, *pattern, *count).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		for _, k := range keys {
			total++
			cctx, cancel := context.WithTimeout(ctx, *timeout)
			kind, _ := rdb.Type(cctx, k).Result()
			ttl, _ := rdb.TTL(cctx, k).Result()
			cancel()
			fmt.Fprintf(w, "%s type=%s ttl=%s\n", k, kind, ttl)

			if *doDel {
				dctx, cancel := context.WithTimeout(ctx, *timeout)
				err := rdb.Del(dctx, k).Err()
				cancel()
				if err != nil {
					return fmt.Errorf("del %s: %w", k, err)
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if *doDel {
		fmt.Fprintf(w, "%d keys deleted\n", total)
	} else {
		fmt.Fprintf(w, "%d keys matched\n", total)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
