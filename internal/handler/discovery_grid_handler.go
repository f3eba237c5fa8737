package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/usecase"
)

// DiscoveryGridHandler グリッドと仮想タイルに関するHTTPハンドラー
type DiscoveryGridHandler struct {
	gridUseCase     usecase.DiscoveryGridUseCase
	deletionUseCase usecase.GridDeletionUseCase
}

// NewDiscoveryGridHandler DiscoveryGridHandlerの新しいインスタンスを作成
func NewDiscoveryGridHandler(gridUseCase usecase.DiscoveryGridUseCase, deletionUseCase usecase.GridDeletionUseCase) *DiscoveryGridHandler {
	return &DiscoveryGridHandler{
		gridUseCase:     gridUseCase,
		deletionUseCase: deletionUseCase,
	}
}

// ListGrids GET /api/grids
func (h *DiscoveryGridHandler) ListGrids(c *gin.Context) {
	grids, err := h.gridUseCase.ListGrids(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grids": grids})
}

// CreateGrid POST /api/grids - 明示的な境界でグリッドを作成
func (h *DiscoveryGridHandler) CreateGrid(c *gin.Context) {
	var req model.CreateGridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid JSON format: "+err.Error())
		return
	}

	result, err := h.gridUseCase.GenerateGrid(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetDefaultGrid GET /api/grids/default
func (h *DiscoveryGridHandler) GetDefaultGrid(c *gin.Context) {
	grid, err := h.gridUseCase.GetOrCreateDefaultGrid(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

// GetGrid GET /api/grids/:id
func (h *DiscoveryGridHandler) GetGrid(c *gin.Context) {
	grid, err := h.gridUseCase.GetGrid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

// DeleteGrid DELETE /api/grids/:id - 削除を受け付けて 202 を返す
func (h *DiscoveryGridHandler) DeleteGrid(c *gin.Context) {
	gridID := c.Param("id")
	if err := h.deletionUseCase.RequestDeleteGrid(c.Request.Context(), gridID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"grid_id": gridID,
		"status":  "deletion_scheduled",
	})
}

// ListCells GET /api/grids/:id/cells?leaves=true
func (h *DiscoveryGridHandler) ListCells(c *gin.Context) {
	leavesOnly, _ := strconv.ParseBool(c.DefaultQuery("leaves", "false"))
	cells, err := h.gridUseCase.ListCells(c.Request.Context(), c.Param("id"), leavesOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cells": cells})
}

// GetGeoJSON GET /api/grids/:id/geojson - 葉セルを GeoJSON で返す
func (h *DiscoveryGridHandler) GetGeoJSON(c *gin.Context) {
	fc, err := h.gridUseCase.ExportGeoJSON(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

// GetOverlay GET /api/grids/:id/overlay?bbox= - ビューポート内の永続セルと仮想タイル
func (h *DiscoveryGridHandler) GetOverlay(c *gin.Context) {
	viewport, err := parseBBox(c.Query("bbox"))
	if err != nil {
		badRequest(c, "invalid_parameter", err.Error())
		return
	}
	overlay, err := h.gridUseCase.ViewportOverlay(c.Request.Context(), c.Param("id"), viewport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overlay)
}

// GetVirtualTiles GET /api/virtual-tiles?bbox=&cell_size_km=&max_cells=
func (h *DiscoveryGridHandler) GetVirtualTiles(c *gin.Context) {
	viewport, err := parseBBox(c.Query("bbox"))
	if err != nil {
		badRequest(c, "invalid_parameter", err.Error())
		return
	}

	cellSizeKm := 0.0
	if v := c.Query("cell_size_km"); v != "" {
		if cellSizeKm, err = strconv.ParseFloat(v, 64); err != nil {
			badRequest(c, "invalid_parameter", "Invalid cell_size_km value")
			return
		}
	}
	maxCells := 0
	if v := c.Query("max_cells"); v != "" {
		if maxCells, err = strconv.Atoi(v); err != nil {
			badRequest(c, "invalid_parameter", "Invalid max_cells value")
			return
		}
	}

	tiles, err := h.gridUseCase.ComputeVirtualTiles(viewport, cellSizeKm, maxCells)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tiles":      tiles,
		"suppressed": len(tiles) == 0,
	})
}
