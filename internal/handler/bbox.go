package handler

import (
	"fmt"
	"strconv"
	"strings"

	"LeadGrid-App/internal/domain/model"
)

var bboxFields = [4]string{"min_lng", "min_lat", "max_lng", "max_lat"}

// parseBBox "min_lng,min_lat,max_lng,max_lat" 形式の文字列を解析する
func parseBBox(bbox string) (model.BoundingBox, error) {
	if bbox == "" {
		return model.BoundingBox{}, fmt.Errorf("bbox parameter is required (format: min_lng,min_lat,max_lng,max_lat)")
	}
	coords := strings.Split(bbox, ",")
	if len(coords) != 4 {
		return model.BoundingBox{}, fmt.Errorf("bbox must contain 4 coordinates: min_lng,min_lat,max_lng,max_lat")
	}

	var values [4]float64
	for i, raw := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return model.BoundingBox{}, fmt.Errorf("Invalid %s value", bboxFields[i])
		}
		values[i] = v
	}
	return model.BoundingBox{
		SWLng: values[0],
		SWLat: values[1],
		NELng: values[2],
		NELat: values[3],
	}, nil
}
