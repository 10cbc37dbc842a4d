package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadtestSecret = "loadtest-secret-loadtest-secret!"

type account struct {
	id    string
	email string
	token string
}

type options struct {
	accounts    int
	concurrency int
	ops         int
	argonMemory uint
}

func main() {
	var (
		accounts    = flag.Int("accounts", 500, "number of verified accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		argonMemory = flag.Uint("argon-memory", 8192, "argon2id memory in KiB")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	opts := options{accounts: *accounts, concurrency: *concurrency, ops: *ops, argonMemory: *argonMemory}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	ctx := context.Background()
	for _, mode := range []struct {
		name  string
		redis redis.UniversalClient
	}{
		{name: "uncached", redis: nil},
		{name: "cached", redis: client},
	} {
		if err := client.FlushAll(ctx).Err(); err != nil {
			fmt.Fprintf(os.Stderr, "flush failed: %v\n", err)
			os.Exit(1)
		}
		if err := runMode(ctx, mode.name, mode.redis, opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", mode.name, err)
			os.Exit(1)
		}
	}
}

func runMode(ctx context.Context, name string, client redis.UniversalClient, opts options) error {
	codes := &codeBook{codes: make(map[string]string)}

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.Secret = loadtestSecret
	cfg.Password.Memory = uint32(opts.argonMemory)
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	store := memory.New()
	b := goIdentity.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithContentStore(store).
		WithDeliverer(goIdentity.OTPDelivererFunc(codes.deliver))
	if client != nil {
		b = b.WithRedis(client)
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close(ctx) }()

	fmt.Printf("[%s] seeding %d accounts...\n", name, opts.accounts)
	startSeed := time.Now()
	accounts, err := seed(ctx, engine, codes, opts.accounts)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] seeded in %s\n", name, time.Since(startSeed).Round(time.Millisecond))

	phases := []struct {
		name string
		op   func(ctx context.Context, a account) error
	}{
		{name: "login", op: func(ctx context.Context, a account) error {
			_, err := engine.Login(ctx, a.email, passwordFor(a.email))
			return err
		}},
		{name: "verify-token", op: func(ctx context.Context, a account) error {
			_, err := engine.VerifyToken(ctx, a.token)
			return err
		}},
		{name: "profile", op: func(ctx context.Context, a account) error {
			_, err := engine.GetProfile(ctx, a.id)
			return err
		}},
		{name: "user-posts", op: func(ctx context.Context, a account) error {
			_, err := engine.ListUserPosts(ctx, a.id, 1, 10)
			return err
		}},
		{name: "feed", op: func(ctx context.Context, _ account) error {
			_, err := engine.ListFeed(ctx, 1, 20)
			return err
		}},
	}

	results := make([]phaseStats, len(phases))
	for i, p := range phases {
		results[i] = runPhase(ctx, accounts, opts, p.op)
	}

	fmt.Printf("---- %s results ----\n", name)
	for i, p := range phases {
		printStats(p.name, results[i])
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("cache: hits=%d misses=%d errors=%d\n",
		snap.Counters[goIdentity.MetricCacheHit],
		snap.Counters[goIdentity.MetricCacheMiss],
		snap.Counters[goIdentity.MetricCacheError],
	)
	return nil
}

type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeBook) deliver(_ context.Context, msg goIdentity.OTPMessage) error {
	c.mu.Lock()
	c.codes[msg.Email] = msg.Code
	c.mu.Unlock()
	return nil
}

// wait polls until a code for email arrives; delivery runs on the background executor.
func (c *codeBook) wait(email string) (string, error) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		code, ok := c.codes[email]
		c.mu.Unlock()
		if ok {
			return code, nil
		}
		time.Sleep(time.Millisecond)
	}
	return "", fmt.Errorf("no code delivered to %s", email)
}

func seed(ctx context.Context, engine *goIdentity.Engine, codes *codeBook, n int) ([]account, error) {
	out := make([]account, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("user%d@loadtest.local", i)
		res, err := engine.SignUp(ctx, goIdentity.SignUpRequest{
			Name:     fmt.Sprintf("Load User %d", i),
			Email:    email,
			Password: passwordFor(email),
		})
		if err != nil {
			return nil, fmt.Errorf("signup %s: %w", email, err)
		}
		code, err := codes.wait(email)
		if err != nil {
			return nil, err
		}
		verified, err := engine.VerifyOTP(ctx, email, code)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", email, err)
		}
		if _, err := engine.CreatePost(ctx, res.AccountID, fmt.Sprintf("post from %d", i)); err != nil {
			return nil, fmt.Errorf("post %s: %w", email, err)
		}
		out = append(out, account{id: res.AccountID, email: email, token: verified.SessionToken})
	}
	return out, nil
}

func passwordFor(email string) string {
	return "pw-" + email
}

func runPhase(ctx context.Context, accounts []account, opts options, op func(context.Context, account) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				a := accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				err := op(ctx, a)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
