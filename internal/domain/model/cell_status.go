package model

import (
	"encoding/json"
	"fmt"
)

// CellStatus 永続セルの検索状態
type CellStatus int

const (
	StatusUnsearched CellStatus = iota
	StatusSearching
	StatusSearched
	StatusSaturated
)

var cellStatusNames = [...]string{
	StatusUnsearched: "unsearched",
	StatusSearching:  "searching",
	StatusSearched:   "searched",
	StatusSaturated:  "saturated",
}

func (s CellStatus) String() string {
	if s < StatusUnsearched || s > StatusSaturated {
		return fmt.Sprintf("CellStatus(%d)", int(s))
	}
	return cellStatusNames[s]
}

// ParseCellStatus 文字列から CellStatus を復元
func ParseCellStatus(v string) (CellStatus, error) {
	for i, name := range cellStatusNames {
		if name == v {
			return CellStatus(i), nil
		}
	}
	return StatusUnsearched, fmt.Errorf("unknown cell status %q", v)
}

func (s CellStatus) MarshalText() ([]byte, error) {
	if s < StatusUnsearched || s > StatusSaturated {
		return nil, fmt.Errorf("unknown cell status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *CellStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseCellStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON はステータスを文字列として出力する
func (s CellStatus) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (s *CellStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(v))
}

// CellEvent 状態遷移を引き起こすイベント
type CellEvent int

const (
	EventStartSearch CellEvent = iota
	EventCompleteSearched
	EventCompleteSaturated
	EventAbortSearch
	EventSplit
	EventMerge
)

func (e CellEvent) String() string {
	switch e {
	case EventStartSearch:
		return "start_search"
	case EventCompleteSearched:
		return "complete_searched"
	case EventCompleteSaturated:
		return "complete_saturated"
	case EventAbortSearch:
		return "abort_search"
	case EventSplit:
		return "split"
	case EventMerge:
		return "merge"
	}
	return fmt.Sprintf("CellEvent(%d)", int(e))
}

// Transition イベント適用後の状態を返す。不正な遷移はエラー。
// split/merge はセル自身の状態を変えないが searching 中は拒否される。
func (s CellStatus) Transition(e CellEvent) (CellStatus, error) {
	switch s {
	case StatusUnsearched:
		switch e {
		case EventStartSearch:
			return StatusSearching, nil
		case EventSplit, EventMerge:
			return s, nil
		}
	case StatusSearching:
		switch e {
		case EventCompleteSearched:
			return StatusSearched, nil
		case EventCompleteSaturated:
			return StatusSaturated, nil
		case EventAbortSearch:
			return StatusUnsearched, nil
		case EventSplit, EventMerge:
			return s, ErrCellSearching
		}
	case StatusSearched, StatusSaturated:
		switch e {
		case EventStartSearch:
			return StatusSearching, nil
		case EventSplit, EventMerge:
			return s, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}

// CanRestructure 分割・統合が許可される状態か
func (s CellStatus) CanRestructure() bool {
	return s != StatusSearching
}

// IsSearchedState 検索済み（鮮度判定対象）の状態か
func (s CellStatus) IsSearchedState() bool {
	return s == StatusSearched || s == StatusSaturated
}
