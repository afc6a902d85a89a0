package xp

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DefaultHistoryCap bounds the per-wallet action history.
const DefaultHistoryCap = 100

// Stats are the per-wallet action counters.
type Stats struct {
	SwapCount            int             `json:"swapCount"`
	SwapVolumeUSD        decimal.Decimal `json:"swapVolumeUSD"`
	LiquidityAddCount    int             `json:"liquidityAddCount"`
	LiquidityVolumeUSD   decimal.Decimal `json:"liquidityVolumeUSD"`
	LiquidityRemoveCount int             `json:"liquidityRemoveCount"`
	RebalanceCount       int             `json:"rebalanceCount"`
}

// apply bumps the counters for one action.
func (s *Stats) apply(action ActionType, volumeUSD decimal.Decimal) {
	switch action {
	case ActionSwap:
		s.SwapCount++
		s.SwapVolumeUSD = s.SwapVolumeUSD.Add(volumeUSD)
	case ActionAddLiquidity:
		s.LiquidityAddCount++
		s.LiquidityVolumeUSD = s.LiquidityVolumeUSD.Add(volumeUSD)
	case ActionRemoveLiquidity:
		s.LiquidityRemoveCount++
	case ActionRebalance:
		s.RebalanceCount++
	}
}

// HistoryEntry records one rewarded action.
type HistoryEntry struct {
	Type      ActionType      `json:"type"`
	XP        int64           `json:"xp"`
	VolumeUSD decimal.Decimal `json:"volumeUSD"`
	TxHash    common.Hash     `json:"txHash"`
	Timestamp time.Time       `json:"timestamp"`
}

// UnlockedAchievement records when an achievement was unlocked.
type UnlockedAchievement struct {
	ID         AchievementID `json:"id"`
	UnlockedAt time.Time     `json:"unlockedAt"`
}

// Profile is the persisted per-wallet XP record.
type Profile struct {
	Address      common.Address        `json:"address"`
	TotalXP      int64                 `json:"totalXP"`
	Level        int                   `json:"level"`
	Streak       Streak                `json:"streak"`
	Stats        Stats                 `json:"stats"`
	Achievements []UnlockedAchievement `json:"achievements"`
	History      []HistoryEntry        `json:"history"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// NewProfile returns the empty record for a wallet.
func NewProfile(addr common.Address) Profile {
	return Profile{
		Address:      addr,
		Level:        1,
		Achievements: []UnlockedAchievement{},
		History:      []HistoryEntry{},
	}
}

// HasAchievement reports whether id is unlocked.
func (p *Profile) HasAchievement(id AchievementID) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// addXP adds xp and recomputes the level. Levels never go down here since
// xp is never negative.
func (p *Profile) addXP(xp int64) {
	p.TotalXP += xp
	p.Level = LevelForXP(p.TotalXP)
}

// appendHistory appends e and drops the oldest entries beyond limit.
func (p *Profile) appendHistory(e HistoryEntry, limit int) {
	p.History = append(p.History, e)
	if limit > 0 && len(p.History) > limit {
		p.History = append([]HistoryEntry(nil), p.History[len(p.History)-limit:]...)
	}
}

// Progress returns the wallet's level progress.
func (p *Profile) Progress() Progress {
	return LevelProgress(p.TotalXP)
}
