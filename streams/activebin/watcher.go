// Package activebin polls liquidity-book pairs for their active bin and
// reserves and streams a snapshot whenever a pair changes.
//
// The chain RPC is pull-based, so the watcher reads on a fixed interval
// rather than subscribing.
package activebin

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbpair"
	pairstate "github.com/HeliosFLR/helios-ui-sub000/protocols/lbpair"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
)

// Constants for retry logic
const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Snapshotter reads a pair's current state. *lbpair.Reader satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context, poolID uint64, pair common.Address) (pairstate.PoolState, error)
}

// BlockNumberer reports the chain head. *ethclient.Client satisfies it.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config holds the configuration for the watcher.
type Config struct {
	Reader Snapshotter
	// Head is optional; when set, snapshots carry the block they were read at.
	Head       BlockNumberer
	Pools      []poolregistry.PoolView
	Interval   time.Duration
	Logger     Logger
	BufferSize uint

	// Retry delays default to 1s doubling up to 30s.
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Reader == nil {
		return errors.New("config: Reader is required")
	}
	if len(c.Pools) == 0 {
		return errors.New("config: at least one pool is required")
	}
	if c.Interval <= 0 {
		return errors.New("config: Interval must be positive")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Watcher streams pair snapshots.
type Watcher struct {
	reader   Snapshotter
	head     BlockNumberer
	pools    []poolregistry.PoolView
	interval time.Duration
	logger   Logger

	initialDelay time.Duration
	maxDelay     time.Duration

	last    map[uint64]pairstate.PoolState
	stateCh chan pairstate.PoolState
	errCh   chan error
}

// NewWatcher validates cfg and starts polling until ctx is done.
func NewWatcher(ctx context.Context, cfg Config) (*Watcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = initialRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = maxRetryDelay
	}

	pools := make([]poolregistry.PoolView, len(cfg.Pools))
	copy(pools, cfg.Pools)

	w := &Watcher{
		reader:       cfg.Reader,
		head:         cfg.Head,
		pools:        pools,
		interval:     cfg.Interval,
		logger:       cfg.Logger,
		initialDelay: cfg.InitialRetryDelay,
		maxDelay:     cfg.MaxRetryDelay,
		last:         make(map[uint64]pairstate.PoolState, len(pools)),
		stateCh:      make(chan pairstate.PoolState, cfg.BufferSize),
		errCh:        make(chan error, 1),
	}

	go w.run(ctx)
	return w, nil
}

// State returns a read-only channel of changed pair snapshots.
func (w *Watcher) State() <-chan pairstate.PoolState {
	return w.stateCh
}

// Err returns a read-only channel for fatal (unrecoverable) errors.
func (w *Watcher) Err() <-chan error {
	return w.errCh
}

// run handles the polling lifecycle, backing off while reads fail.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.stateCh)
	defer close(w.errCh)
	retryDelay := w.initialDelay

	for {
		err := w.poll(ctx)
		switch {
		case err == nil:
			retryDelay = w.initialDelay
			if !w.sleep(ctx, w.interval) {
				w.logger.Info("Watcher context canceled, shutting down.")
				return
			}
		case ctx.Err() != nil:
			w.logger.Info("Watcher context canceled, shutting down.")
			return
		case errors.Is(err, lbpair.ErrEmptyResult):
			// no contract at the configured address; retrying cannot help
			w.logger.Error("Pair read returned no data, stopping watcher", "error", err)
			w.errCh <- err
			return
		default:
			w.logger.Warn("Pair read failed, will retry...", "error", err, "delay", retryDelay)
			if !w.sleep(ctx, retryDelay) {
				return
			}
			retryDelay = min(retryDelay*2, w.maxDelay)
		}
	}
}

// poll reads every pool once and emits the ones that changed.
func (w *Watcher) poll(ctx context.Context) error {
	var block uint64
	if w.head != nil {
		n, err := w.head.BlockNumber(ctx)
		if err != nil {
			return err
		}
		block = n
	}

	for _, p := range w.pools {
		state, err := w.reader.Snapshot(ctx, p.ID, p.Address)
		if err != nil {
			return err
		}
		state.BlockNumber = block

		if prev, ok := w.last[p.ID]; ok && prev.Equal(state) {
			continue
		}
		w.last[p.ID] = state
		w.logger.Debug("Pair changed", "pool_id", p.ID, "active_id", state.ActiveID, "block_number", block)

		select {
		case w.stateCh <- state:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Index builds a lookup over the given snapshots, e.g. everything received
// from State so far.
func Index(states []pairstate.PoolState) *pairstate.IndexablePairSystem {
	return pairstate.New().Index(states)
}
