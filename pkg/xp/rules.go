// Package xp tracks client-side experience points per wallet.
//
// XP is local, non-authoritative gamification state. Each recorded action
// updates the daily streak, earns a reward scaled by the streak multiplier,
// bumps the wallet's stats and level, and may unlock achievements whose own
// bonus can level the wallet up again.
package xp

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ActionType is one of the four rewarded actions.
type ActionType string

const (
	ActionSwap            ActionType = "swap"
	ActionAddLiquidity    ActionType = "add_liquidity"
	ActionRemoveLiquidity ActionType = "remove_liquidity"
	ActionRebalance       ActionType = "rebalance"
)

var (
	ErrUnknownAction  = errors.New("xp: unknown action type")
	ErrNegativeVolume = errors.New("xp: volume must not be negative")
)

// DateLayout formats calendar days in streak bookkeeping.
const DateLayout = "2006-01-02"

// --- Rewards ---

type rewardRule struct {
	base int64
	// rate is XP per USD of volume; zero for flat rewards.
	rate decimal.Decimal
}

var rewardRules = map[ActionType]rewardRule{
	ActionSwap:            {base: 10, rate: decimal.RequireFromString("0.5")},
	ActionAddLiquidity:    {base: 20, rate: decimal.NewFromInt(1)},
	ActionRemoveLiquidity: {base: 15},
	ActionRebalance:       {base: 25},
}

const (
	FirstSwapBonus      int64 = 100
	FirstLiquidityBonus int64 = 150
)

// Reward is the breakdown of XP earned by one action, before achievements.
type Reward struct {
	Base       int64           `json:"base"`
	VolumeXP   int64           `json:"volumeXP"`
	Multiplier decimal.Decimal `json:"multiplier"`
	// Scaled is floor((Base + VolumeXP) * Multiplier).
	Scaled     int64 `json:"scaled"`
	FirstBonus int64 `json:"firstBonus"`
	Total      int64 `json:"total"`
}

// StreakMultiplier returns the reward multiplier for a streak length in days.
func StreakMultiplier(streak int) decimal.Decimal {
	switch {
	case streak >= 30:
		return decimal.NewFromInt(2)
	case streak >= 14:
		return decimal.RequireFromString("1.5")
	case streak >= 7:
		return decimal.RequireFromString("1.25")
	case streak >= 3:
		return decimal.RequireFromString("1.1")
	default:
		return decimal.NewFromInt(1)
	}
}

// ComputeReward prices an action. streak is the streak after today's update
// and stats are the counters before the action is applied; they decide the
// one-time first-action bonus.
func ComputeReward(action ActionType, volumeUSD decimal.Decimal, streak int, stats Stats) (Reward, error) {
	rule, ok := rewardRules[action]
	if !ok {
		return Reward{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if volumeUSD.IsNegative() {
		return Reward{}, ErrNegativeVolume
	}

	r := Reward{Base: rule.base, Multiplier: StreakMultiplier(streak)}
	if !rule.rate.IsZero() {
		r.VolumeXP = volumeUSD.Mul(rule.rate).Floor().IntPart()
	}
	r.Scaled = decimal.NewFromInt(r.Base + r.VolumeXP).Mul(r.Multiplier).Floor().IntPart()

	switch {
	case action == ActionSwap && stats.SwapCount == 0:
		r.FirstBonus = FirstSwapBonus
	case action == ActionAddLiquidity && stats.LiquidityAddCount == 0:
		r.FirstBonus = FirstLiquidityBonus
	}
	r.Total = r.Scaled + r.FirstBonus
	return r, nil
}

// --- Streaks ---

// Streak is the daily activity streak.
type Streak struct {
	Current         int    `json:"current"`
	Longest         int    `json:"longest"`
	LastActiveDate  string `json:"lastActiveDate,omitempty"`
	FirstActiveDate string `json:"firstActiveDate,omitempty"`
}

// UpdateStreak advances s for activity at now, with days taken in loc.
// Same day leaves it unchanged; the next day extends it; anything else
// restarts it at 1.
func UpdateStreak(s Streak, now time.Time, loc *time.Location) Streak {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := local.Format(DateLayout)
	yesterday := local.AddDate(0, 0, -1).Format(DateLayout)

	switch s.LastActiveDate {
	case today:
		return s
	case yesterday:
		s.Current++
	default:
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	if s.FirstActiveDate == "" {
		s.FirstActiveDate = today
	}
	s.LastActiveDate = today
	return s
}

// --- Levels ---

// LevelThresholds holds the cumulative XP needed for levels 1..N.
var LevelThresholds = []int64{
	0, 100, 250, 500, 1000, 2000, 3500, 5000, 7500,
	10_000, 15_000, 20_000, 30_000, 50_000, 75_000, 100_000,
}

// LevelForXP returns the highest level whose threshold is at most xp.
func LevelForXP(xp int64) int {
	level := 1
	for i, t := range LevelThresholds {
		if xp >= t {
			level = i + 1
		}
	}
	return level
}

// Progress describes where a wallet stands within its level.
type Progress struct {
	Level            int     `json:"level"`
	XP               int64   `json:"xp"`
	CurrentThreshold int64   `json:"currentThreshold"`
	NextThreshold    int64   `json:"nextThreshold"`
	Percent          float64 `json:"percent"`
}

// LevelProgress computes Progress for xp. Past the last defined level the
// next threshold shown is the last threshold doubled.
func LevelProgress(xp int64) Progress {
	level := LevelForXP(xp)
	p := Progress{Level: level, XP: xp, CurrentThreshold: LevelThresholds[level-1]}
	if level < len(LevelThresholds) {
		p.NextThreshold = LevelThresholds[level]
	} else {
		p.NextThreshold = LevelThresholds[len(LevelThresholds)-1] * 2
	}
	span := p.NextThreshold - p.CurrentThreshold
	if span > 0 {
		p.Percent = float64(xp-p.CurrentThreshold) / float64(span) * 100
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	return p
}
