// Package loop runs the autonomous debate scheduler: pick a topic, debate
// it, cascade theories, cool down, repeat.
package loop

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paddockai/apex/config"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/cascade"
	"github.com/paddockai/apex/internal/debate"
	"github.com/paddockai/apex/internal/store"
)

// cycleLockKey guards one scheduler cycle across replicas.
const (
	cycleLockKey = "apex:loop:cycle"
	cycleLockTTL = 5 * time.Minute
)

// Status is the scheduler state reported over the API and the feed.
type Status struct {
	Running    bool   `json:"running"`
	Phase      string `json:"phase"`
	Cycles     int    `json:"cycles"`
	DebatesRun int    `json:"debates_run"`
	LastTopic  string `json:"last_topic,omitempty"`
}

// Loop is the autonomous scheduler. All state is explicit so multiple loops
// can coexist in tests. Start and Stop are idempotent.
type Loop struct {
	cfg       config.LoopConfig
	store     *store.Store
	engine    *debate.Engine
	cascade   *cascade.Cascade
	broadcast *broadcast.Registry
	redis     *redis.Client
	logger    *log.Logger
	rng       *rand.Rand

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	phase      string
	cycles     int
	debatesRun int
	lastTopic  string
}

// New builds a stopped loop. redisClient may be nil; the cycle lock is then
// skipped.
func New(cfg config.LoopConfig, st *store.Store, engine *debate.Engine, casc *cascade.Cascade, bc *broadcast.Registry, redisClient *redis.Client, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.ScanEvery <= 0 {
		cfg.ScanEvery = 4
	}
	if cfg.ValidateBatch <= 0 {
		cfg.ValidateBatch = 3
	}
	if cfg.NewsProbability <= 0 {
		cfg.NewsProbability = 0.35
	}
	return &Loop{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		cascade:   casc,
		broadcast: bc,
		redis:     redisClient,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:     "stopped",
	}
}

// Start launches the background cycle goroutine. Calling Start on a running
// loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})
	l.phase = "starting"
	l.logger.Printf("[LOOP] started (cooldown %s)", l.cfg.Cooldown)
	go l.run(ctx, l.done)
}

// Stop cancels the loop and waits for the background goroutine to exit.
// Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done

	l.mu.Lock()
	l.running = false
	l.phase = "stopped"
	l.mu.Unlock()
	l.logger.Printf("[LOOP] stopped after %d cycles", l.Snapshot().Cycles)
}

// Snapshot returns the current scheduler status.
func (l *Loop) Snapshot() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Running:    l.running,
		Phase:      l.phase,
		Cycles:     l.cycles,
		DebatesRun: l.debatesRun,
		LastTopic:  l.lastTopic,
	}
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		l.cycle(ctx)
		if err := l.sleep(ctx, l.cfg.Cooldown); err != nil {
			return
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	release, ok := l.acquireCycleLock(ctx)
	if !ok {
		l.logger.Printf("[LOOP] cycle lock held elsewhere, skipping")
		return
	}
	defer release()

	l.mu.Lock()
	l.cycles++
	cycle := l.cycles
	l.mu.Unlock()

	topic, category, newsEventID := l.pickTopic(ctx)
	l.setPhase("debating", topic)
	l.publishStatus("debating", topic, category)

	if _, err := l.engine.Run(ctx, topic, category, nil, newsEventID); err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Printf("[LOOP] debate failed: %v", err)
	} else {
		l.mu.Lock()
		l.debatesRun++
		l.mu.Unlock()
	}

	if l.cascade != nil {
		if n := l.cascade.ValidatePending(ctx, l.cfg.ValidateBatch); n > 0 {
			l.logger.Printf("[LOOP] cascade resolved %d theories", n)
		}
		if cycle%l.cfg.ScanEvery == 0 {
			l.cascade.AnomalyScan(ctx)
		}
	}

	l.setPhase("cooldown", topic)
	l.publishStatus("cooldown", topic, category)
}

// pickTopic prefers an unprocessed news event with the configured
// probability and falls back to a weighted template topic.
func (l *Loop) pickTopic(ctx context.Context) (string, string, *string) {
	l.mu.Lock()
	useNews := l.rng.Float64() < l.cfg.NewsProbability
	l.mu.Unlock()

	if useNews && l.store != nil {
		events, err := l.store.ListUnprocessedNews(ctx, 1)
		if err != nil {
			l.logger.Printf("[LOOP] news lookup failed: %v", err)
		} else if len(events) > 0 {
			ev := events[0]
			if err := l.store.MarkNewsProcessed(ctx, ev.ID); err != nil {
				l.logger.Printf("[LOOP] failed to mark news %s processed: %v", ev.ID, err)
			}
			category := ev.Category
			if category == "" {
				category = "technical"
			}
			return "Breaking: " + ev.Headline + " - what does it really mean?", category, &ev.ID
		}
	}

	l.mu.Lock()
	topic := RandomTopic(l.rng)
	l.mu.Unlock()
	return topic.Text, topic.Category, nil
}

// acquireCycleLock takes the shared cycle lock. The returned release func is
// always safe to call. Lock errors fail open so a flaky Redis never stalls
// the loop.
func (l *Loop) acquireCycleLock(ctx context.Context) (func(), bool) {
	noop := func() {}
	if l.redis == nil {
		return noop, true
	}
	ok, err := l.redis.SetNX(ctx, cycleLockKey, time.Now().UTC().Format(time.RFC3339), cycleLockTTL).Result()
	if err != nil {
		l.logger.Printf("[LOOP] cycle lock error, proceeding: %v", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		if err := l.redis.Del(context.Background(), cycleLockKey).Err(); err != nil {
			l.logger.Printf("[LOOP] cycle lock release failed: %v", err)
		}
	}, true
}

func (l *Loop) setPhase(phase, topic string) {
	l.mu.Lock()
	l.phase = phase
	l.lastTopic = topic
	l.mu.Unlock()
}

func (l *Loop) publishStatus(status, topic, category string) {
	if l.broadcast == nil {
		return
	}
	snap := l.Snapshot()
	l.broadcast.Publish(broadcast.Event{
		Type:            "loop_status",
		Status:          status,
		Topic:           topic,
		Category:        category,
		DebatesRun:      snap.DebatesRun,
		CooldownSeconds: int(l.cfg.Cooldown / time.Second),
		Timestamp:       time.Now().UTC(),
	})
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
