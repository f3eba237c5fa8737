package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"LeadGrid-App/internal/domain/model"
)

// respondError ドメインエラーをHTTPステータスに変換して返す
func respondError(c *gin.Context, err error) {
	var (
		validationErr *model.ValidationError
		conflictErr   *model.ConflictError
	)
	switch {
	case errors.Is(err, model.ErrGridNotFound), errors.Is(err, model.ErrCellNotFound), errors.Is(err, model.ErrParentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.As(err, &validationErr),
		errors.Is(err, model.ErrInvalidBounds),
		errors.Is(err, model.ErrInvalidCellSize),
		errors.Is(err, model.ErrCellOutsideGrid),
		errors.Is(err, model.ErrInvalidBoundsKey):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.As(err, &conflictErr),
		errors.Is(err, model.ErrCellSearching),
		errors.Is(err, model.ErrRootCellMerge),
		errors.Is(err, model.ErrCellNotLeaf),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrCellOverlap):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   code,
		"message": message,
	})
}
