package commands

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type LoadtestCmd struct {
	Users       int    `help:"Number of users to register before measuring." default:"200"`
	Concurrency int    `help:"Number of concurrent workers." default:"64"`
	Ops         int    `help:"Operations per phase." default:"20000"`
	RedisAddr   string `help:"Redis address; embedded miniredis when empty." env:"AUTHCORE_REDIS_ADDR"`
}

type userState struct {
	mu      sync.Mutex
	session string
	refresh string
}

func (c *LoadtestCmd) Run(ctx context.Context, globals *Globals) error {
	if c.Users <= 0 || c.Concurrency <= 0 || c.Ops <= 0 {
		return fmt.Errorf("users, concurrency and ops must be > 0")
	}
	log := logger.Setup(globals.Dev)
	out := os.Stdout

	addr := c.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningKey = []byte("loadtest-signing-key-0123456789abcdef")
	cfg.RateLimit.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(memory.NewUsers()).
		WithLogger(log.Level(zerolog.WarnLevel)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	states := make([]userState, c.Users)
	fmt.Fprintf(out, "registering %d users...\n", c.Users)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.Register(ctx, authcore.RegisterRequest{
			Email:    fmt.Sprintf("user-%d@loadtest.local", i),
			Password: "loadtest-password",
		})
		if err != nil {
			return fmt.Errorf("register user %d: %w", i, err)
		}
		states[i].session = pair.SessionToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Fprintf(out, "registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(c.Ops, c.Concurrency, 7919, func(r *rand.Rand) (time.Duration, bool) {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.session
		st.mu.Unlock()

		t0 := time.Now()
		_, err := engine.Authenticate(ctx, token)
		return time.Since(t0), err == nil
	})

	refreshStats := runPhase(c.Ops, c.Concurrency, 6151, func(r *rand.Rand) (time.Duration, bool) {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()

		t0 := time.Now()
		pair, err := engine.Refresh(ctx, st.refresh)
		d := time.Since(t0)
		if err != nil {
			return d, false
		}
		st.session = pair.SessionToken
		st.refresh = pair.RefreshToken
		return d, true
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authStats)
	printStats(out, "refresh", refreshStats)
	return nil
}

// runPhase spreads ops across concurrency workers, each with its own rand
// source, and collects per-operation latencies.
func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) (time.Duration, bool)) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				d, ok := op(r)
				if !ok {
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
