package xp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/HeliosFLR/helios-ui-sub000/storage/kv"
)

// Logger is the logging surface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Action is one rewarded user action.
type Action struct {
	Type      ActionType
	VolumeUSD decimal.Decimal
	TxHash    common.Hash
}

// Result describes the effect of recording an action.
type Result struct {
	Reward          Reward        `json:"reward"`
	NewAchievements []Achievement `json:"newAchievements"`
	// XPEarned includes achievement bonuses.
	XPEarned      int64   `json:"xpEarned"`
	PreviousLevel int     `json:"previousLevel"`
	LeveledUp     bool    `json:"leveledUp"`
	Profile       Profile `json:"profile"`
}

// Update is delivered to subscribers after every successful write.
type Update struct {
	Address common.Address
	// Result is nil for ClearHistory and Reset.
	Result  *Result
	Profile Profile
}

// Config configures an Engine.
type Config struct {
	Store  kv.Store
	Logger Logger
	// Location decides calendar-day boundaries for streaks. Defaults to UTC.
	Location   *time.Location
	Now        func() time.Time
	KeyPrefix  string
	HistoryCap int
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.HistoryCap < 0 {
		return errors.New("history cap must not be negative")
	}
	return nil
}

// Engine records actions and persists profiles through a kv.Store.
//
// All read-modify-write cycles are serialised, so back-to-back actions never
// lose updates.
type Engine struct {
	store      kv.Store
	logger     Logger
	loc        *time.Location
	now        func() time.Time
	prefix     string
	historyCap int

	mu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]func(Update)
	nextSub int
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid xp engine config: %w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "xp:"
	}
	if cfg.HistoryCap == 0 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	return &Engine{
		store:      cfg.Store,
		logger:     cfg.Logger,
		loc:        cfg.Location,
		now:        cfg.Now,
		prefix:     cfg.KeyPrefix,
		historyCap: cfg.HistoryCap,
		subs:       make(map[int]func(Update)),
	}, nil
}

func (e *Engine) key(addr common.Address) string {
	return e.prefix + strings.ToLower(addr.Hex())
}

// --- Persistence ---

func (e *Engine) load(ctx context.Context, addr common.Address) (Profile, error) {
	data, err := e.store.Get(ctx, e.key(addr))
	if errors.Is(err, kv.ErrNotFound) {
		return NewProfile(addr), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("xp: load profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		// a corrupt record must not block the wallet from earning XP
		e.logger.Warn("Discarding unreadable XP profile", "address", addr.Hex(), "error", err)
		return NewProfile(addr), nil
	}
	if p.Level < 1 {
		p.Level = LevelForXP(p.TotalXP)
	}
	if p.Achievements == nil {
		p.Achievements = []UnlockedAchievement{}
	}
	if p.History == nil {
		p.History = []HistoryEntry{}
	}
	return p, nil
}

func (e *Engine) save(ctx context.Context, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("xp: encode profile: %w", err)
	}
	if err := e.store.Set(ctx, e.key(p.Address), data); err != nil {
		return fmt.Errorf("xp: save profile: %w", err)
	}
	return nil
}

// --- Actions ---

// Record applies one action to the wallet's profile.
func (e *Engine) Record(ctx context.Context, addr common.Address, action Action) (*Result, error) {
	if _, ok := rewardRules[action.Type]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
	if action.VolumeUSD.IsNegative() {
		return nil, ErrNegativeVolume
	}

	e.mu.Lock()
	res, err := e.record(ctx, addr, action)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.logger.Info("XP recorded",
		"address", addr.Hex(),
		"action", string(action.Type),
		"xp", res.XPEarned,
		"total", res.Profile.TotalXP,
		"level", res.Profile.Level,
	)
	e.notify(Update{Address: addr, Result: res, Profile: res.Profile})
	return res, nil
}

func (e *Engine) record(ctx context.Context, addr common.Address, action Action) (*Result, error) {
	p, err := e.load(ctx, addr)
	if err != nil {
		return nil, err
	}
	now := e.now()
	prevLevel := p.Level
	prevXP := p.TotalXP

	p.Streak = UpdateStreak(p.Streak, now, e.loc)
	reward, err := ComputeReward(action.Type, action.VolumeUSD, p.Streak.Current, p.Stats)
	if err != nil {
		return nil, err
	}

	p.Stats.apply(action.Type, action.VolumeUSD)
	p.addXP(reward.Total)
	p.appendHistory(HistoryEntry{
		Type:      action.Type,
		XP:        reward.Total,
		VolumeUSD: action.VolumeUSD,
		TxHash:    action.TxHash,
		Timestamp: now,
	}, e.historyCap)
	unlocked := CheckAchievements(&p, now)
	p.UpdatedAt = now

	if err := e.save(ctx, p); err != nil {
		return nil, err
	}
	return &Result{
		Reward:          reward,
		NewAchievements: unlocked,
		XPEarned:        p.TotalXP - prevXP,
		PreviousLevel:   prevLevel,
		LeveledUp:       p.Level > prevLevel,
		Profile:         p,
	}, nil
}

// RecordSwap records a swap of volumeUSD.
func (e *Engine) RecordSwap(ctx context.Context, addr common.Address, volumeUSD decimal.Decimal, tx common.Hash) (*Result, error) {
	return e.Record(ctx, addr, Action{Type: ActionSwap, VolumeUSD: volumeUSD, TxHash: tx})
}

// RecordAddLiquidity records a liquidity deposit of volumeUSD.
func (e *Engine) RecordAddLiquidity(ctx context.Context, addr common.Address, volumeUSD decimal.Decimal, tx common.Hash) (*Result, error) {
	return e.Record(ctx, addr, Action{Type: ActionAddLiquidity, VolumeUSD: volumeUSD, TxHash: tx})
}

// RecordRemoveLiquidity records a liquidity withdrawal.
func (e *Engine) RecordRemoveLiquidity(ctx context.Context, addr common.Address, tx common.Hash) (*Result, error) {
	return e.Record(ctx, addr, Action{Type: ActionRemoveLiquidity, TxHash: tx})
}

// RecordRebalance records a completed rebalance.
func (e *Engine) RecordRebalance(ctx context.Context, addr common.Address, tx common.Hash) (*Result, error) {
	return e.Record(ctx, addr, Action{Type: ActionRebalance, TxHash: tx})
}

// --- Queries and maintenance ---

// Profile returns the wallet's profile; unknown wallets get an empty one.
func (e *Engine) Profile(ctx context.Context, addr common.Address) (Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx, addr)
}

// ClearHistory empties the action history, keeping XP, stats and
// achievements.
func (e *Engine) ClearHistory(ctx context.Context, addr common.Address) error {
	e.mu.Lock()
	p, err := e.load(ctx, addr)
	if err == nil {
		p.History = []HistoryEntry{}
		p.UpdatedAt = e.now()
		err = e.save(ctx, p)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(Update{Address: addr, Profile: p})
	return nil
}

// Reset deletes the wallet's record entirely.
func (e *Engine) Reset(ctx context.Context, addr common.Address) error {
	e.mu.Lock()
	err := e.store.Delete(ctx, e.key(addr))
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("xp: reset profile: %w", err)
	}
	e.logger.Info("XP profile reset", "address", addr.Hex())
	e.notify(Update{Address: addr, Profile: NewProfile(addr)})
	return nil
}

// Export is the portable snapshot of a wallet's XP state.
type Export struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Profile    Profile   `json:"profile"`
	Progress   Progress  `json:"progress"`
}

// ExportVersion is bumped whenever the export layout changes.
const ExportVersion = 1

// Export returns the wallet's profile and progress as indented JSON.
func (e *Engine) Export(ctx context.Context, addr common.Address) ([]byte, error) {
	p, err := e.Profile(ctx, addr)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(Export{
		Version:    ExportVersion,
		ExportedAt: e.now(),
		Profile:    p,
		Progress:   p.Progress(),
	}, "", "  ")
}

// --- Subscriptions ---

// Subscribe registers fn for every profile change and returns a function
// that removes it. fn runs on the recording goroutine after the write.
func (e *Engine) Subscribe(fn func(Update)) (unsubscribe func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) notify(u Update) {
	e.subMu.Lock()
	fns := make([]func(Update), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
