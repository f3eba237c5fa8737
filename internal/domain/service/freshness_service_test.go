package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"LeadGrid-App/internal/domain/model"
)

func TestClassifyFreshness_Boundaries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	assert.Equal(t, model.FreshnessFresh, ClassifyFreshness(now, now))
	assert.Equal(t, model.FreshnessFresh, ClassifyFreshness(now.Add(-30*day), now))
	assert.Equal(t, model.FreshnessAging, ClassifyFreshness(now.Add(-30*day-time.Second), now))
	assert.Equal(t, model.FreshnessAging, ClassifyFreshness(now.Add(-90*day), now))
	assert.Equal(t, model.FreshnessStale, ClassifyFreshness(now.Add(-91*day), now))
}

func TestCellFreshness(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-45 * 24 * time.Hour)

	cell := &model.DiscoveryCell{Status: model.StatusSearched, LastSearchedAt: &last}
	tier, ok := CellFreshness(cell, now)
	assert.True(t, ok)
	assert.Equal(t, model.FreshnessAging, tier)

	cell.Status = model.StatusSearching
	_, ok = CellFreshness(cell, now)
	assert.False(t, ok)

	_, ok = CellFreshness(&model.DiscoveryCell{Status: model.StatusSaturated}, now)
	assert.False(t, ok)

	_, ok = CellFreshness(nil, now)
	assert.False(t, ok)
}
