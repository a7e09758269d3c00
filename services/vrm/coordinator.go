package vrm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Host is the external owner of the document text.
type Host interface {
	// Text returns the current document text.
	Text(ctx context.Context) (string, error)
	// Commit replaces the document text.
	Commit(ctx context.Context, text string) error
}

// State is the coordinator's position in its commit cycle.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

const DefaultDebounce = 300 * time.Millisecond

type CoordinatorOptions struct {
	// Debounce is the quiet period after the last edit before a commit starts.
	Debounce time.Duration
	Retry    RetryPolicy
	Logger   zerolog.Logger
	// OnFatal receives the *CommitError of a background commit that ran out of retries.
	OnFatal func(error)
}

// Coordinator batches model edits and writes them back to a Host. At most
// one commit runs at a time; edits made meanwhile join the next batch.
type Coordinator struct {
	mu       sync.Mutex
	model    *Model
	host     Host
	debounce time.Duration
	retry    RetryPolicy
	logger   zerolog.Logger
	onFatal  func(error)

	state    State
	timer    *time.Timer
	timerGen uint64
	done     chan struct{}
	closed   bool
}

func NewCoordinator(model *Model, host Host, opts CoordinatorOptions) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}
	return &Coordinator{
		model:    model,
		host:     host,
		debounce: opts.Debounce,
		retry:    opts.Retry.normalized(),
		logger:   opts.Logger,
		onFatal:  opts.OnFatal,
	}
}

// State returns the current commit cycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Do runs fn against the model and schedules a commit if it left changes.
func (c *Coordinator) Do(fn func(m *Model) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCoordinatorDone
	}
	err := fn(c.model)
	if c.model.IsDirty() && c.state != StateCommitting {
		c.state = StateAccumulating
		c.arm()
	}
	return err
}

// Submit applies a batch of component updates, all or nothing. Updates to
// the same id within one window collapse to the last one.
func (c *Coordinator) Submit(components ...Component) error {
	return c.Do(func(m *Model) error { return m.UpdateAll(components...) })
}

// View runs fn with read access to the model.
func (c *Coordinator) View(fn func(m *Model)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.model)
}

// arm (re)starts the debounce timer. Callers hold c.mu.
func (c *Coordinator) arm() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.state != StateAccumulating {
		c.mu.Unlock()
		return
	}
	items := c.begin()
	c.mu.Unlock()

	if err := c.commit(context.Background(), items); err != nil && c.onFatal != nil {
		c.onFatal(err)
	}
}

// begin moves to Committing and snapshots the dirty items. Callers hold c.mu.
func (c *Coordinator) begin() []DirtyItem {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	c.state = StateCommitting
	c.done = make(chan struct{})
	return c.model.Dirty()
}

// Flush commits pending edits now, waiting for any commit already running.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	for c.state == StateCommitting {
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
	if !c.model.IsDirty() {
		c.state = StateIdle
		c.mu.Unlock()
		return nil
	}
	items := c.begin()
	c.mu.Unlock()
	return c.commit(ctx, items)
}

// Close stops accepting edits and flushes what is pending.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	c.mu.Unlock()
	return c.Flush(ctx)
}

func (c *Coordinator) commit(ctx context.Context, items []DirtyItem) error {
	log := c.logger.With().Str("commit_id", uuid.NewString()).Int("items", len(items)).Logger()
	log.Debug().Msg("commit started")
	start := time.Now()

	var (
		err      error
		attempts int
	)
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			commitRetries.Inc()
			wait := backoff(attempt-1, c.retry.BaseDelay, c.retry.MaxDelay, c.retry.Jitter)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				err = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}
		attempts++
		if err = c.attempt(ctx, items); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempts).Msg("commit attempt failed")
	}
	commitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		err = &CommitError{Attempts: attempts, Err: err}
		commitsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("commit abandoned, changes kept")
	} else {
		commitsTotal.WithLabelValues("success").Inc()
		log.Info().Int("attempts", attempts).Dur("elapsed", time.Since(start)).Msg("commit succeeded")
	}
	c.finish(items, err)
	return err
}

// attempt reads a fresh copy of the host text, patches it and writes it back.
func (c *Coordinator) attempt(ctx context.Context, items []DirtyItem) error {
	text, err := c.host.Text(ctx)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	patched, err := ApplyPatch(text, items)
	if err != nil {
		return fmt.Errorf("patch document: %w", err)
	}
	if err := c.host.Commit(ctx, patched); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (c *Coordinator) finish(items []DirtyItem, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil && len(items) > 0 {
		c.model.ClearDirty(items...)
	}
	c.state = StateIdle
	// A failed batch waits for the next edit or Flush.
	if err == nil && c.model.IsDirty() && !c.closed {
		c.state = StateAccumulating
		c.arm()
	}
	close(c.done)
}
