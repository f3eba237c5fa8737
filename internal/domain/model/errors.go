package model

import "errors"

// バリデーションエラー
var (
	ErrInvalidBounds    = errors.New("invalid bounding box")
	ErrInvalidCellSize  = errors.New("cell size must be positive")
	ErrGridNotFound     = errors.New("discovery grid not found")
	ErrCellNotFound     = errors.New("discovery cell not found")
	ErrCellOutsideGrid  = errors.New("cell bounds lie outside the grid bounds")
	ErrInvalidBoundsKey = errors.New("bounds key is missing or does not match the cell bounds")
	ErrInvalidRequest   = errors.New("invalid request")
)

// 状態競合エラー
var (
	ErrCellSearching     = errors.New("cell is being searched")
	ErrRootCellMerge     = errors.New("cannot merge a root cell: there is no parent to merge into")
	ErrCellNotLeaf       = errors.New("cell has already been subdivided")
	ErrParentNotFound    = errors.New("parent cell could not be resolved")
	ErrInvalidTransition = errors.New("invalid cell status transition")
	ErrCellOverlap       = errors.New("cell bounds overlap an existing cell")
)

// ValidationError はバリデーションエラーを表す
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError はセル状態との競合を表す（ユーザー向けメッセージ付き）
type ConflictError struct {
	CellID  string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
