package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/usecase"
)

// DiscoveryCellHandler セルの活性化・検索・分割に関するHTTPハンドラー
type DiscoveryCellHandler struct {
	gridUseCase usecase.DiscoveryGridUseCase
}

// NewDiscoveryCellHandler DiscoveryCellHandlerの新しいインスタンスを作成
func NewDiscoveryCellHandler(gridUseCase usecase.DiscoveryGridUseCase) *DiscoveryCellHandler {
	return &DiscoveryCellHandler{gridUseCase: gridUseCase}
}

// ActivateCell POST /api/grids/:id/cells/activate - 仮想タイルを永続化
func (h *DiscoveryCellHandler) ActivateCell(c *gin.Context) {
	var req model.ActivateCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid JSON format: "+err.Error())
		return
	}

	result, err := h.gridUseCase.ActivateCell(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetCell GET /api/cells/:id
func (h *DiscoveryCellHandler) GetCell(c *gin.Context) {
	cell, err := h.gridUseCase.GetCell(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cell)
}

// StartSearch POST /api/cells/:id/search/start
func (h *DiscoveryCellHandler) StartSearch(c *gin.Context) {
	cell, err := h.gridUseCase.BeginSearch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cell)
}

// RecordSearchResult POST /api/cells/:id/search/result
func (h *DiscoveryCellHandler) RecordSearchResult(c *gin.Context) {
	var result model.SearchResult
	if err := c.ShouldBindJSON(&result); err != nil {
		badRequest(c, "invalid_request", "Invalid JSON format: "+err.Error())
		return
	}

	cell, err := h.gridUseCase.RecordSearchResult(c.Request.Context(), c.Param("id"), &result)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cell)
}

// AbortSearch POST /api/cells/:id/search/abort
func (h *DiscoveryCellHandler) AbortSearch(c *gin.Context) {
	cell, err := h.gridUseCase.AbortSearch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cell)
}

// Subdivide POST /api/cells/:id/subdivide
func (h *DiscoveryCellHandler) Subdivide(c *gin.Context) {
	children, err := h.gridUseCase.Subdivide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

// Undivide POST /api/cells/:id/undivide
func (h *DiscoveryCellHandler) Undivide(c *gin.Context) {
	parent, err := h.gridUseCase.Undivide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, parent)
}
