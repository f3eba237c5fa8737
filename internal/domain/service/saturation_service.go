package service

import "LeadGrid-App/internal/domain/model"

// MergeQuerySaturation クエリ名で上書きしつつ結果件数をマージする（追記はしない）
func MergeQuerySaturation(existing, incoming []model.QuerySaturation) []model.QuerySaturation {
	merged := make([]model.QuerySaturation, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, entry := range existing {
		if i, ok := index[entry.Query]; ok {
			merged[i] = entry
			continue
		}
		index[entry.Query] = len(merged)
		merged = append(merged, entry)
	}
	for _, entry := range incoming {
		if i, ok := index[entry.Query]; ok {
			merged[i].Count = entry.Count
			continue
		}
		index[entry.Query] = len(merged)
		merged = append(merged, entry)
	}
	return merged
}

// IsSaturated いずれかのクエリが threshold 以上の件数を返していれば true
func IsSaturated(entries []model.QuerySaturation, threshold int) bool {
	for _, entry := range entries {
		if entry.Count >= threshold {
			return true
		}
	}
	return false
}

// ClassifySaturation 検索完了時のイベントを決める。
// 上限付近のクエリがあればまだデータが隠れている可能性がある（saturated）。
func ClassifySaturation(entries []model.QuerySaturation, threshold int) model.CellEvent {
	if IsSaturated(entries, threshold) {
		return model.EventCompleteSaturated
	}
	return model.EventCompleteSearched
}
