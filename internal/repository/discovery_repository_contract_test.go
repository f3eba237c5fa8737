package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
)

// runDiscoveryRepositoryContract 全バックエンド共通の振る舞いを検証する
func runDiscoveryRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.DiscoveryRepository) {
	ctx := context.Background()
	bounds := model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}

	newGrid := func(t *testing.T, repo repository.DiscoveryRepository, name string, createdAt time.Time) *model.DiscoveryGrid {
		t.Helper()
		grid := &model.DiscoveryGrid{
			Name:       name,
			Region:     "ontario",
			Queries:    []string{"dentist", "plumber"},
			Bounds:     bounds,
			CellSizeKm: 5,
			CreatedAt:  createdAt,
		}
		require.NoError(t, repo.CreateGrid(ctx, grid))
		require.NotEmpty(t, grid.ID)
		return grid
	}

	t.Run("グリッドの作成と取得", func(t *testing.T) {
		repo := newRepo(t)
		created := time.Now().UTC().Truncate(time.Millisecond)
		grid := newGrid(t, repo, "Hamilton", created)

		got, err := repo.GetGrid(ctx, grid.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hamilton", got.Name)
		assert.Equal(t, []string{"dentist", "plumber"}, got.Queries)
		assert.Equal(t, bounds, got.Bounds)
		assert.True(t, created.Equal(got.CreatedAt))

		_, err = repo.GetGrid(ctx, "missing")
		assert.True(t, errors.Is(err, model.ErrGridNotFound))
	})

	t.Run("最古のグリッドを返す", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindFirstGrid(ctx)
		assert.True(t, errors.Is(err, model.ErrGridNotFound))

		base := time.Now().UTC().Truncate(time.Millisecond)
		newGrid(t, repo, "newer", base)
		older := newGrid(t, repo, "older", base.Add(-time.Hour))

		first, err := repo.FindFirstGrid(ctx)
		require.NoError(t, err)
		assert.Equal(t, older.ID, first.ID)

		grids, err := repo.ListGrids(ctx)
		require.NoError(t, err)
		require.Len(t, grids, 2)
		assert.Equal(t, "older", grids[0].Name)
	})

	t.Run("リード数の加算", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "leads", time.Now().UTC())
		require.NoError(t, repo.AddLeadsFound(ctx, grid.ID, 3))
		require.NoError(t, repo.AddLeadsFound(ctx, grid.ID, 4))

		got, err := repo.GetGrid(ctx, grid.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, got.TotalLeadsFound)
	})

	t.Run("セルの更新と削除", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "cells", time.Now().UTC())
		cell := &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: model.StatusUnsearched, BoundsKey: "43.000000,-80.000000"}
		require.NoError(t, repo.CreateCell(ctx, cell))

		now := time.Now().UTC().Truncate(time.Millisecond)
		count := 42
		cell.Status = model.StatusSaturated
		cell.ResultCount = &count
		cell.LastSearchedAt = &now
		cell.QuerySaturation = []model.QuerySaturation{{Query: "dentist", Count: 60}}
		require.NoError(t, repo.UpdateCell(ctx, cell))

		got, err := repo.GetCell(ctx, cell.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusSaturated, got.Status)
		require.NotNil(t, got.ResultCount)
		assert.Equal(t, 42, *got.ResultCount)
		require.NotNil(t, got.LastSearchedAt)
		assert.True(t, now.Equal(*got.LastSearchedAt))
		assert.Nil(t, got.SearchStartedAt)
		assert.Equal(t, cell.QuerySaturation, got.QuerySaturation)

		require.NoError(t, repo.DeleteCell(ctx, cell.ID))
		_, err = repo.GetCell(ctx, cell.ID)
		assert.True(t, errors.Is(err, model.ErrCellNotFound))
		// 削除は冪等
		assert.NoError(t, repo.DeleteCell(ctx, cell.ID))

		missing := &model.DiscoveryCell{ID: "missing", GridID: grid.ID, Bounds: bounds}
		assert.True(t, errors.Is(repo.UpdateCell(ctx, missing), model.ErrCellNotFound))
	})

	t.Run("活性化は冪等", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "activate", time.Now().UTC())
		newCell := func() *model.DiscoveryCell {
			return &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: model.StatusUnsearched, BoundsKey: "43.000000,-80.000000"}
		}

		first, created, err := repo.CreateCellIfAbsent(ctx, newCell())
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := repo.CreateCellIfAbsent(ctx, newCell())
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		found, err := repo.FindByBoundsKey(ctx, grid.ID, "43.000000,-80.000000")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)

		_, _, err = repo.CreateCellIfAbsent(ctx, &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds})
		assert.True(t, errors.Is(err, model.ErrInvalidBoundsKey))
	})

	t.Run("同時活性化でもセルは1つ", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "race", time.Now().UTC())

		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cell, _, err := repo.CreateCellIfAbsent(ctx, &model.DiscoveryCell{
					GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: model.StatusUnsearched, BoundsKey: "race-key",
				})
				if assert.NoError(t, err) {
					ids[i] = cell.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids[1:] {
			assert.Equal(t, ids[0], id)
		}
		cells, err := repo.ListCellsByGrid(ctx, grid.ID, 0)
		require.NoError(t, err)
		assert.Len(t, cells, 1)
	})

	t.Run("事前生成セルと同じキーは再作成しない", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "eager", time.Now().UTC())

		eager := &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: model.StatusUnsearched, BoundsKey: "43.000000,-80.000000"}
		require.NoError(t, repo.CreateCell(ctx, eager))
		require.NotEmpty(t, eager.ID)

		activation := &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: model.StatusUnsearched, BoundsKey: "43.000000,-80.000000"}
		existing, created, err := repo.CreateCellIfAbsent(ctx, activation)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, eager.ID, existing.ID)
		// 作成されなかった場合は呼び出し元のIDを書き換えない
		assert.Empty(t, activation.ID)

		cells, err := repo.ListCellsByGrid(ctx, grid.ID, 0)
		require.NoError(t, err)
		assert.Len(t, cells, 1)
	})

	t.Run("一覧系クエリ", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "lists", time.Now().UTC())
		other := newGrid(t, repo, "other", time.Now().UTC())

		parent := &model.DiscoveryCell{GridID: grid.ID, Bounds: bounds, IsLeaf: false, Status: model.StatusSaturated, BoundsKey: "parent"}
		require.NoError(t, repo.CreateCell(ctx, parent))
		for i := 0; i < 4; i++ {
			child := &model.DiscoveryCell{GridID: grid.ID, ParentCellID: parent.ID, Bounds: bounds, Depth: 1, IsLeaf: true}
			require.NoError(t, repo.CreateCell(ctx, child))
		}
		require.NoError(t, repo.CreateCell(ctx, &model.DiscoveryCell{GridID: other.ID, Bounds: bounds, IsLeaf: true, BoundsKey: "parent"}))

		all, err := repo.ListCellsByGrid(ctx, grid.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
		assert.Equal(t, parent.ID, all[0].ID)

		limited, err := repo.ListCellsByGrid(ctx, grid.ID, 3)
		require.NoError(t, err)
		assert.Len(t, limited, 3)

		leaves, err := repo.ListLeafCells(ctx, grid.ID)
		require.NoError(t, err)
		assert.Len(t, leaves, 4)

		children, err := repo.ListChildCells(ctx, parent.ID)
		require.NoError(t, err)
		assert.Len(t, children, 4)
		for _, c := range children {
			assert.Equal(t, 1, c.Depth)
			assert.Empty(t, c.BoundsKey)
		}
	})

	t.Run("放置された searching セルの検索", func(t *testing.T) {
		repo := newRepo(t)
		grid := newGrid(t, repo, "orphans", time.Now().UTC())
		now := time.Now().UTC().Truncate(time.Millisecond)
		old := now.Add(-2 * time.Hour)
		recent := now.Add(-time.Minute)

		for i, started := range []*time.Time{&old, &recent, nil} {
			status := model.StatusSearching
			if started == nil {
				status = model.StatusSearched
			}
			require.NoError(t, repo.CreateCell(ctx, &model.DiscoveryCell{
				GridID: grid.ID, Bounds: bounds, IsLeaf: true, Status: status,
				SearchStartedAt: started, BoundsKey: fmt.Sprintf("k%d", i),
			}))
		}

		cells, err := repo.ListSearchingBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, cells, 1)
		assert.Equal(t, "k0", cells[0].BoundsKey)
	})
}
