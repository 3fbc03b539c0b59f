// Package scanner turns barcode scans into saved collection items.
//
// A Coordinator owns one scanning session. Every action is applied
// atomically under a single lock; lookups, saves and the cooldown timer run
// outside it and report back tagged with the generation they were started
// in, so a result that arrives after Stop or Close is dropped.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bookscan/internal/barcode"
	"bookscan/internal/collection"
	"bookscan/internal/entity"
	"bookscan/internal/logging"
	"bookscan/internal/lookup"
)

const (
	DefaultCooldown         = 1500 * time.Millisecond
	DefaultRecentCapacity   = 50
	DefaultOperationTimeout = 15 * time.Second

	subscriberBuffer = 32
)

// Resolver finds the catalog item for an identifier.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (entity.CatalogItem, error)
}

// Collection is the part of collection.Store the coordinator writes through.
type Collection interface {
	Exists(ctx context.Context, userID, identifier string) (bool, error)
	Add(ctx context.Context, userID string, item entity.CatalogItem) (string, error)
}

type Config struct {
	Cooldown         time.Duration
	RecentCapacity   int
	OperationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cooldown:         DefaultCooldown,
		RecentCapacity:   DefaultRecentCapacity,
		OperationTimeout: DefaultOperationTimeout,
	}
}

// Update is published after every transition.
type Update struct {
	State      State
	SavedCount int
}

type Option func(*Coordinator)

func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

type Coordinator struct {
	userID     string
	resolver   Resolver
	collection Collection
	cfg        Config
	clock      Clock
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	savedCount  int
	generation  uint64
	recent      *recentScans
	cooldown    Timer
	cancelOp    context.CancelFunc
	subscribers map[chan Update]struct{}
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	ops    sync.WaitGroup
}

// New returns a coordinator in Idle. An empty userID is allowed; scans then
// fail with a non-retryable auth error.
func New(userID string, resolver Resolver, coll Collection, cfg Config, opts ...Option) *Coordinator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = DefaultRecentCapacity
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		userID:      userID,
		resolver:    resolver,
		collection:  coll,
		cfg:         cfg,
		clock:       systemClock{},
		logger:      logging.NewNop(),
		state:       Idle{},
		recent:      newRecentScans(cfg.RecentCapacity),
		subscribers: make(map[chan Update]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SavedCount is the number of items saved since the coordinator was created.
func (c *Coordinator) SavedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedCount
}

// Snapshot returns the state and saved count read together.
func (c *Coordinator) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Update{State: c.state, SavedCount: c.savedCount}
}

// Subscribe returns a channel of updates and a function that ends the
// subscription. Updates are dropped for a subscriber that falls behind.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
		})
	}
}

func (c *Coordinator) Start() { c.dispatch(startEvent{}) }

// Stop returns to Idle from any state and abandons in-flight work.
func (c *Coordinator) Stop() { c.dispatch(stopEvent{}) }

func (c *Coordinator) ConfirmContinue() { c.dispatch(confirmContinueEvent{}) }

func (c *Coordinator) ConfirmAndStop() { c.dispatch(confirmStopEvent{}) }

func (c *Coordinator) Skip() { c.dispatch(skipEvent{}) }

func (c *Coordinator) DismissError() { c.dispatch(dismissEvent{}) }

// HandleScan processes one raw scan. Codes seen recently are ignored, as is
// anything arriving outside Scanning and Cooldown.
func (c *Coordinator) HandleScan(raw string) {
	code, verr := barcode.Validate(raw)
	identifier := barcode.LookupIdentifier(code)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if verr == nil && c.recent.contains(identifier) {
		c.logger.Debug("duplicate scan ignored", slog.String("identifier", identifier))
		return
	}
	if !receptive(c.state) {
		c.logger.Debug("scan ignored", slog.String("state", c.state.Name()))
		return
	}
	if c.userID == "" {
		c.applyLocked(invalidScanEvent{err: collection.ErrUnauthenticated})
		return
	}
	if verr != nil {
		c.applyLocked(invalidScanEvent{err: verr})
		return
	}
	c.recent.add(identifier)
	c.applyLocked(scanEvent{identifier: identifier})
}

// Close stops the session and ends all subscriptions. It cancels in-flight
// lookups and saves and returns once they have finished, so the resolver and
// collection may be released afterwards. It is safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.closed {
		c.applyLocked(stopEvent{})
		c.closed = true
		c.cancel()
		for ch := range c.subscribers {
			delete(c.subscribers, ch)
			close(ch)
		}
	}
	c.mu.Unlock()
	c.ops.Wait()
}

func (c *Coordinator) dispatch(ev event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.applyLocked(ev)
}

// complete applies ev only if no transition happened since gen was taken.
func (c *Coordinator) complete(gen uint64, ev event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.generation != gen {
		c.logger.Debug("stale completion dropped")
		return
	}
	c.applyLocked(ev)
}

func (c *Coordinator) applyLocked(ev event) {
	prev := c.state
	next, changed := transition(prev, ev, c.clock.Now(), c.cfg.Cooldown)
	if !changed {
		return
	}
	c.generation++
	c.state = next

	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
	if c.cancelOp != nil {
		c.cancelOp()
		c.cancelOp = nil
	}

	if _, ok := ev.(saveOKEvent); ok {
		c.savedCount++
	}
	c.forgetLocked(ev, prev, next)

	gen := c.generation
	switch s := next.(type) {
	case Searching:
		ctx := c.beginOpLocked()
		c.ops.Add(1)
		go c.runLookup(ctx, gen, s.Identifier)
	case Saving:
		ctx := c.beginOpLocked()
		c.ops.Add(1)
		go c.runSave(ctx, gen, s.Item)
	case Cooldown:
		c.cooldown = c.clock.AfterFunc(s.Until.Sub(c.clock.Now()), func() {
			c.complete(gen, cooldownExpiredEvent{})
		})
	}

	c.logger.Debug("state changed",
		slog.String("from", prev.Name()),
		slog.String("to", next.Name()),
	)
	if es, ok := next.(ErrorState); ok {
		c.logger.Info("scan failed",
			slog.String("kind", string(es.Kind)),
			slog.String("message", es.Message),
		)
	}
	c.publishLocked()
}

// forgetLocked drops the code of an abandoned or transiently failed
// operation so scanning it again retries.
func (c *Coordinator) forgetLocked(ev event, prev, next State) {
	var identifier string
	switch p := prev.(type) {
	case Searching:
		identifier = p.Identifier
	case Saving:
		identifier = p.Item.Identifier
	default:
		return
	}
	if _, stopped := ev.(stopEvent); !stopped {
		es, failed := next.(ErrorState)
		if !failed || !es.Kind.forgets() {
			return
		}
	}
	c.recent.remove(identifier)
}

func (c *Coordinator) beginOpLocked() context.Context {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.OperationTimeout)
	c.cancelOp = cancel
	return ctx
}

func (c *Coordinator) publishLocked() {
	u := Update{State: c.state, SavedCount: c.savedCount}
	for ch := range c.subscribers {
		select {
		case ch <- u:
		default:
			c.logger.Warn("subscriber lagging, update dropped")
		}
	}
}

func (c *Coordinator) runLookup(ctx context.Context, gen uint64, identifier string) {
	defer c.ops.Done()

	owned, err := c.collection.Exists(ctx, c.userID, identifier)
	if err != nil {
		c.complete(gen, lookupFailedEvent{err: &PersistenceError{Op: "check collection", Err: err}})
		return
	}
	if owned {
		c.complete(gen, ownedEvent{})
		return
	}

	item, err := c.resolver.Resolve(ctx, identifier)
	switch {
	case err == nil:
		if item.Identifier == "" {
			item.Identifier = identifier
		}
		c.complete(gen, lookupOKEvent{item: item})
	case errors.Is(err, lookup.ErrNotFound):
		c.complete(gen, lookupNotFoundEvent{})
	default:
		c.complete(gen, lookupFailedEvent{err: err})
	}
}

func (c *Coordinator) runSave(ctx context.Context, gen uint64, item entity.CatalogItem) {
	defer c.ops.Done()

	if _, err := c.collection.Add(ctx, c.userID, item); err != nil {
		c.complete(gen, saveFailedEvent{err: &PersistenceError{Op: "save item", Title: item.Title, Err: err}})
		return
	}
	c.complete(gen, saveOKEvent{})
}
