package service

import (
	"time"

	"LeadGrid-App/internal/domain/model"
)

// ClassifyFreshness 最終検索からの経過時間を3段階に分類する。境界値は下位ティアに含まれる。
func ClassifyFreshness(lastSearchedAt, now time.Time) model.FreshnessTier {
	elapsed := now.Sub(lastSearchedAt)
	switch {
	case elapsed <= model.FreshWindow:
		return model.FreshnessFresh
	case elapsed <= model.AgingWindow:
		return model.FreshnessAging
	default:
		return model.FreshnessStale
	}
}

// CellFreshness searched/saturated かつ lastSearchedAt を持つセルだけがティアを持つ
func CellFreshness(cell *model.DiscoveryCell, now time.Time) (model.FreshnessTier, bool) {
	if cell == nil || !cell.Status.IsSearchedState() || cell.LastSearchedAt == nil {
		return model.FreshnessNone, false
	}
	return ClassifyFreshness(*cell.LastSearchedAt, now), true
}
