package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadGrid-App/internal/config"
	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/infrastructure/logger"
	"LeadGrid-App/internal/infrastructure/queue"
	repoImpl "LeadGrid-App/internal/repository"
	"LeadGrid-App/internal/usecase"
)

const hamiltonBBox = "-80.0,43.0,-79.8,43.2"

type testServer struct {
	router    *gin.Engine
	repo      *repoImpl.MemoryDiscoveryRepository
	scheduler *queue.InProcessScheduler
}

// setupTestRouter インメモリリポジトリで全ルートを組み立てる
func setupTestRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repoImpl.NewMemoryDiscoveryRepository()
	gridUseCase := usecase.NewDiscoveryGridUseCase(repo, config.DefaultGridConfig(), logger.Nop())
	deletionUseCase := usecase.NewGridDeletionUseCase(repo, 10, logger.Nop())
	scheduler := queue.NewInProcessScheduler(deletionUseCase.Worker(), 1, 8, logger.Nop())
	deletionUseCase.SetScheduler(scheduler)
	t.Cleanup(func() { _ = scheduler.Close() })

	return &testServer{
		router:    NewRouter(gridUseCase, deletionUseCase, logger.Nop()),
		repo:      repo,
		scheduler: scheduler,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *testServer) createGrid(t *testing.T) model.GridGenerationResult {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/grids", model.CreateGridRequest{
		Name:       "Hamilton",
		Queries:    []string{"dentist"},
		Bounds:     model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8},
		CellSizeKm: 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.GridGenerationResult](t, w)
}

func TestHealth(t *testing.T) {
	s := setupTestRouter(t)
	w := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"LeadGrid-App"}`, w.Body.String())
}

func TestGridEndpoints(t *testing.T) {
	s := setupTestRouter(t)
	created := s.createGrid(t)
	assert.Equal(t, 2, created.CellsCreated)

	w := s.do(t, http.MethodGet, "/api/grids/"+created.Grid.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	grid := decode[model.DiscoveryGrid](t, w)
	assert.Equal(t, "Hamilton", grid.Name)

	w = s.do(t, http.MethodGet, "/api/grids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Grids []model.DiscoveryGrid `json:"grids"`
	}](t, w)
	assert.Len(t, list.Grids, 1)

	w = s.do(t, http.MethodGet, "/api/grids/"+created.Grid.ID+"/cells?leaves=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cells := decode[struct {
		Cells []model.CellView `json:"cells"`
	}](t, w)
	assert.Len(t, cells.Cells, 2)

	w = s.do(t, http.MethodGet, "/api/grids/"+created.Grid.ID+"/geojson", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/geo+json")
	assert.Contains(t, w.Body.String(), `"FeatureCollection"`)

	w = s.do(t, http.MethodGet, "/api/grids/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, w).Error)
}

func TestCreateGrid_Invalid(t *testing.T) {
	s := setupTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"壊れたJSON", "not-json"},
		{"名前なし", model.CreateGridRequest{Bounds: model.BoundingBox{SWLat: 1, SWLng: 1, NELat: 2, NELng: 2}, CellSizeKm: 5}},
		{"逆転した境界", model.CreateGridRequest{Name: "x", Bounds: model.BoundingBox{SWLat: 2, SWLng: 1, NELat: 1, NELng: 2}, CellSizeKm: 5}},
		{"セルサイズ0", model.CreateGridRequest{Name: "x", Bounds: model.BoundingBox{SWLat: 1, SWLng: 1, NELat: 2, NELng: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/grids", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestVirtualTilesEndpoint(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(t, http.MethodGet, "/api/virtual-tiles?bbox="+hamiltonBBox+"&cell_size_km=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Tiles      []model.VirtualCell `json:"tiles"`
		Suppressed bool                `json:"suppressed"`
	}](t, w)
	assert.NotEmpty(t, body.Tiles)
	assert.False(t, body.Suppressed)

	w = s.do(t, http.MethodGet, "/api/virtual-tiles?bbox=-100,30,-60,50&cell_size_km=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[struct {
		Tiles      []model.VirtualCell `json:"tiles"`
		Suppressed bool                `json:"suppressed"`
	}](t, w)
	assert.Empty(t, body.Tiles)
	assert.True(t, body.Suppressed)

	for _, path := range []string{
		"/api/virtual-tiles",
		"/api/virtual-tiles?bbox=1,2,3",
		"/api/virtual-tiles?bbox=a,2,3,4",
		"/api/virtual-tiles?bbox=" + hamiltonBBox + "&cell_size_km=abc",
		"/api/virtual-tiles?bbox=" + hamiltonBBox + "&max_cells=x",
		"/api/virtual-tiles?bbox=-79.8,43.0,-80.0,43.2",
	} {
		w := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestCellLifecycleEndpoints(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(t, http.MethodGet, "/api/grids/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	grid := decode[model.DiscoveryGrid](t, w)

	w = s.do(t, http.MethodGet, "/api/grids/"+grid.ID+"/overlay?bbox="+hamiltonBBox, nil)
	require.Equal(t, http.StatusOK, w.Code)
	overlay := decode[model.ViewportOverlay](t, w)
	require.NotEmpty(t, overlay.VirtualTiles)
	tile := overlay.VirtualTiles[0]

	activate := model.ActivateCellRequest{BoundsKey: tile.Key, Bounds: tile.Bounds}
	w = s.do(t, http.MethodPost, "/api/grids/"+grid.ID+"/cells/activate", activate)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	activation := decode[model.ActivationResult](t, w)
	assert.False(t, activation.AlreadyExisted)

	w = s.do(t, http.MethodPost, "/api/grids/"+grid.ID+"/cells/activate", activate)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.ActivationResult](t, w).AlreadyExisted)

	cellPath := "/api/cells/" + activation.CellID
	w = s.do(t, http.MethodPost, cellPath+"/search/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusSearching, decode[model.DiscoveryCell](t, w).Status)

	w = s.do(t, http.MethodPost, cellPath+"/subdivide", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cannot subdivide while cell is being searched", decode[errorBody](t, w).Message)

	w = s.do(t, http.MethodPost, cellPath+"/search/result", model.SearchResult{
		QueryCounts: []model.QuerySaturation{{Query: "dentist", Count: 60}},
		ResultCount: 60,
		NewLeads:    3,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusSaturated, decode[model.DiscoveryCell](t, w).Status)

	w = s.do(t, http.MethodPost, cellPath+"/search/abort", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, cellPath+"/subdivide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	children := decode[struct {
		Children []model.DiscoveryCell `json:"children"`
	}](t, w)
	require.Len(t, children.Children, 4)

	w = s.do(t, http.MethodPost, "/api/cells/"+children.Children[0].ID+"/undivide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	parent := decode[model.DiscoveryCell](t, w)
	assert.Equal(t, activation.CellID, parent.ID)
	assert.True(t, parent.IsLeaf)

	w = s.do(t, http.MethodPost, cellPath+"/undivide", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, cellPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[model.CellView](t, w)
	assert.Equal(t, model.FreshnessFresh, view.Freshness)

	w = s.do(t, http.MethodGet, "/api/cells/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivateCell_Errors(t *testing.T) {
	s := setupTestRouter(t)
	w := s.do(t, http.MethodGet, "/api/grids/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	grid := decode[model.DiscoveryGrid](t, w)

	w = s.do(t, http.MethodPost, "/api/grids/"+grid.ID+"/cells/activate", model.ActivateCellRequest{
		BoundsKey: "88.000000,0.000000",
		Bounds:    model.BoundingBox{SWLat: 88, SWLng: 0, NELat: 89, NELng: 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/grids/missing/cells/activate", model.ActivateCellRequest{
		BoundsKey: "k",
		Bounds:    model.BoundingBox{SWLat: 1, SWLng: 1, NELat: 2, NELng: 2},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	eager := s.createGrid(t)
	inside := model.BoundingBox{SWLat: 43.05, SWLng: -79.95, NELat: 43.1, NELng: -79.9}

	w = s.do(t, http.MethodPost, "/api/grids/"+eager.Grid.ID+"/cells/activate", model.ActivateCellRequest{
		BoundsKey: "1.000000,1.000000",
		Bounds:    inside,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[errorBody](t, w).Error)

	// 事前生成セルと重なる範囲
	w = s.do(t, http.MethodPost, "/api/grids/"+eager.Grid.ID+"/cells/activate", model.ActivateCellRequest{Bounds: inside})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cell bounds overlap an existing cell", decode[errorBody](t, w).Message)
}

func TestDeleteGridEndpoint(t *testing.T) {
	s := setupTestRouter(t)
	created := s.createGrid(t)

	w := s.do(t, http.MethodDelete, "/api/grids/"+created.Grid.ID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"grid_id":"`+created.Grid.ID+`","status":"deletion_scheduled"}`, w.Body.String())

	require.NoError(t, s.scheduler.Close())
	_, err := s.repo.GetGrid(context.Background(), created.Grid.ID)
	assert.ErrorIs(t, err, model.ErrGridNotFound)

	w = s.do(t, http.MethodDelete, "/api/grids/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestRouter(t)
	s.do(t, http.MethodGet, "/api/virtual-tiles?bbox="+hamiltonBBox, nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leadgrid_virtual_tile_requests_total")
}
