package xp

import (
	"time"

	"github.com/shopspring/decimal"
)

// AchievementID identifies an achievement.
type AchievementID string

// Achievement is a one-time goal with an XP bonus.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	BonusXP     int64         `json:"bonusXP"`
	met         func(p *Profile) bool
}

func swapsAtLeast(n int) func(*Profile) bool {
	return func(p *Profile) bool { return p.Stats.SwapCount >= n }
}

func volumeAtLeast(usd int64) func(*Profile) bool {
	v := decimal.NewFromInt(usd)
	return func(p *Profile) bool { return p.Stats.SwapVolumeUSD.GreaterThanOrEqual(v) }
}

func liquidityAtLeast(n int) func(*Profile) bool {
	return func(p *Profile) bool { return p.Stats.LiquidityAddCount >= n }
}

func rebalancesAtLeast(n int) func(*Profile) bool {
	return func(p *Profile) bool { return p.Stats.RebalanceCount >= n }
}

func streakAtLeast(days int) func(*Profile) bool {
	return func(p *Profile) bool { return p.Streak.Current >= days }
}

func levelAtLeast(level int) func(*Profile) bool {
	return func(p *Profile) bool { return p.Level >= level }
}

// Achievements is the fixed, ordered achievement catalogue.
var Achievements = []Achievement{
	{ID: "first_swap", Name: "First Swap", Description: "Complete your first swap", BonusXP: 100, met: swapsAtLeast(1)},
	{ID: "first_liquidity", Name: "Liquidity Provider", Description: "Add liquidity for the first time", BonusXP: 100, met: liquidityAtLeast(1)},
	{ID: "swap_10", Name: "Trader", Description: "Complete 10 swaps", BonusXP: 150, met: swapsAtLeast(10)},
	{ID: "swap_100", Name: "Veteran Trader", Description: "Complete 100 swaps", BonusXP: 500, met: swapsAtLeast(100)},
	{ID: "volume_1k", Name: "Volume 1K", Description: "Swap $1,000 in total", BonusXP: 200, met: volumeAtLeast(1_000)},
	{ID: "volume_10k", Name: "Volume 10K", Description: "Swap $10,000 in total", BonusXP: 500, met: volumeAtLeast(10_000)},
	{ID: "volume_100k", Name: "Whale", Description: "Swap $100,000 in total", BonusXP: 1000, met: volumeAtLeast(100_000)},
	{ID: "liquidity_5", Name: "Market Maker", Description: "Add liquidity 5 times", BonusXP: 200, met: liquidityAtLeast(5)},
	{ID: "liquidity_25", Name: "Liquidity Pillar", Description: "Add liquidity 25 times", BonusXP: 500, met: liquidityAtLeast(25)},
	{ID: "first_rebalance", Name: "Rebalancer", Description: "Rebalance a position", BonusXP: 150, met: rebalancesAtLeast(1)},
	{ID: "rebalance_10", Name: "Active Manager", Description: "Rebalance 10 times", BonusXP: 400, met: rebalancesAtLeast(10)},
	{ID: "streak_3", Name: "On a Roll", Description: "Keep a 3 day streak", BonusXP: 100, met: streakAtLeast(3)},
	{ID: "streak_7", Name: "Weekly Regular", Description: "Keep a 7 day streak", BonusXP: 250, met: streakAtLeast(7)},
	{ID: "streak_14", Name: "Dedicated", Description: "Keep a 14 day streak", BonusXP: 500, met: streakAtLeast(14)},
	{ID: "streak_30", Name: "Unstoppable", Description: "Keep a 30 day streak", BonusXP: 1000, met: streakAtLeast(30)},
	{ID: "level_5", Name: "Rising Star", Description: "Reach level 5", BonusXP: 250, met: levelAtLeast(5)},
	{ID: "level_10", Name: "Helios Elite", Description: "Reach level 10", BonusXP: 1000, met: levelAtLeast(10)},
}

// AchievementByID looks up a catalogue entry.
func AchievementByID(id AchievementID) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// CheckAchievements unlocks every achievement p now qualifies for, adding
// each bonus exactly once. Evaluation repeats until a pass unlocks nothing,
// so a bonus that levels the wallet up can unlock a level achievement in the
// same call.
func CheckAchievements(p *Profile, now time.Time) []Achievement {
	var unlocked []Achievement
	for {
		progressed := false
		for _, a := range Achievements {
			if p.HasAchievement(a.ID) || !a.met(p) {
				continue
			}
			p.Achievements = append(p.Achievements, UnlockedAchievement{ID: a.ID, UnlockedAt: now})
			p.addXP(a.BonusXP)
			unlocked = append(unlocked, a)
			progressed = true
		}
		if !progressed {
			return unlocked
		}
	}
}
