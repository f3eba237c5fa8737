package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"LeadGrid-App/internal/domain/model"
)

func TestMergeQuerySaturation(t *testing.T) {
	existing := []model.QuerySaturation{{Query: "dentist", Count: 12}, {Query: "plumber", Count: 60}}
	incoming := []model.QuerySaturation{{Query: "plumber", Count: 20}, {Query: "roofer", Count: 5}}

	merged := MergeQuerySaturation(existing, incoming)
	assert.Equal(t, []model.QuerySaturation{
		{Query: "dentist", Count: 12},
		{Query: "plumber", Count: 20},
		{Query: "roofer", Count: 5},
	}, merged)
	// 入力は変更しない
	assert.Equal(t, 60, existing[1].Count)

	assert.Empty(t, MergeQuerySaturation(nil, nil))
}

func TestClassifySaturation(t *testing.T) {
	threshold := model.DefaultSaturationThreshold

	assert.Equal(t, model.EventCompleteSearched, ClassifySaturation(nil, threshold))
	assert.Equal(t, model.EventCompleteSearched, ClassifySaturation([]model.QuerySaturation{{Query: "a", Count: threshold - 1}}, threshold))
	assert.Equal(t, model.EventCompleteSaturated, ClassifySaturation([]model.QuerySaturation{
		{Query: "a", Count: 3},
		{Query: "b", Count: threshold},
	}, threshold))
	assert.True(t, IsSaturated([]model.QuerySaturation{{Query: "a", Count: model.SaturationResultCap}}, threshold))
}
