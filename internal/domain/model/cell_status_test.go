package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellStatus_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    CellStatus
		event   CellEvent
		want    CellStatus
		wantErr error
	}{
		{"未検索から検索開始", StatusUnsearched, EventStartSearch, StatusSearching, nil},
		{"検索完了", StatusSearching, EventCompleteSearched, StatusSearched, nil},
		{"飽和で検索完了", StatusSearching, EventCompleteSaturated, StatusSaturated, nil},
		{"検索中断", StatusSearching, EventAbortSearch, StatusUnsearched, nil},
		{"検索済みから再検索", StatusSearched, EventStartSearch, StatusSearching, nil},
		{"飽和から再検索", StatusSaturated, EventStartSearch, StatusSearching, nil},
		{"未検索の分割", StatusUnsearched, EventSplit, StatusUnsearched, nil},
		{"飽和の分割", StatusSaturated, EventSplit, StatusSaturated, nil},
		{"検索済みの統合", StatusSearched, EventMerge, StatusSearched, nil},
		{"検索中の分割は拒否", StatusSearching, EventSplit, StatusSearching, ErrCellSearching},
		{"検索中の統合は拒否", StatusSearching, EventMerge, StatusSearching, ErrCellSearching},
		{"検索中に再度開始", StatusSearching, EventStartSearch, StatusSearching, ErrInvalidTransition},
		{"未検索で完了", StatusUnsearched, EventCompleteSearched, StatusUnsearched, ErrInvalidTransition},
		{"検索済みで中断", StatusSearched, EventAbortSearch, StatusSearched, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Transition(tt.event)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCellStatus_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status CellStatus `json:"status"`
	}{StatusSaturated})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"saturated"}`, string(data))

	var decoded struct {
		Status CellStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"searching"}`), &decoded))
	assert.Equal(t, StatusSearching, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"done"}`), &decoded))
}

func TestParseCellStatus(t *testing.T) {
	for _, s := range []CellStatus{StatusUnsearched, StatusSearching, StatusSearched, StatusSaturated} {
		parsed, err := ParseCellStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseCellStatus("")
	assert.Error(t, err)
}

func TestCellStatus_Predicates(t *testing.T) {
	assert.False(t, StatusSearching.CanRestructure())
	assert.True(t, StatusSaturated.CanRestructure())
	assert.True(t, StatusSearched.IsSearchedState())
	assert.True(t, StatusSaturated.IsSearchedState())
	assert.False(t, StatusUnsearched.IsSearchedState())
}
