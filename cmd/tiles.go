package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"LeadGrid-App/internal/config"
	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/infrastructure/logger"
	repoImpl "LeadGrid-App/internal/repository"
	"LeadGrid-App/internal/usecase"
)

var (
	tilesBBox       string
	tilesCellSizeKm float64
	tilesMaxCells   int
	tilesFormat     string
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Print the virtual tiles covering a bounding box",
	Example: `  leadgrid tiles --bbox -80.0,43.0,-79.8,43.2 --cell-size-km 5
  leadgrid tiles --bbox -80.0,43.0,-79.8,43.2 --format wkt`,
	RunE: runTiles,
}

func init() {
	tilesCmd.Flags().StringVar(&tilesBBox, "bbox", "", "min_lng,min_lat,max_lng,max_lat")
	tilesCmd.Flags().Float64Var(&tilesCellSizeKm, "cell-size-km", model.DefaultCellSizeKm, "tile edge length in km")
	tilesCmd.Flags().IntVar(&tilesMaxCells, "max-cells", model.DefaultMaxVirtualCells, "suppress output above this many tiles")
	tilesCmd.Flags().StringVar(&tilesFormat, "format", "json", "output format: json, geojson or wkt")
	_ = tilesCmd.MarkFlagRequired("bbox")
}

func runTiles(cmd *cobra.Command, args []string) error {
	viewport, err := parseBBoxFlag(tilesBBox)
	if err != nil {
		return err
	}

	// 仮想タイルは純粋計算なのでストアは使わない
	uc := usecase.NewDiscoveryGridUseCase(repoImpl.NewMemoryDiscoveryRepository(), config.DefaultGridConfig(), logger.Nop())
	tiles, err := uc.ComputeVirtualTiles(viewport, tilesCellSizeKm, tilesMaxCells)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch tilesFormat {
	case "wkt":
		for _, tile := range tiles {
			fmt.Fprintf(out, "%s\t%s\n", tile.Key, repoImpl.BoundsToWKT(tile.Bounds))
		}
		return nil
	case "geojson":
		return writeJSON(out, repoImpl.VirtualTilesToFeatureCollection(tiles))
	case "json":
		return writeJSON(out, tiles)
	}
	return fmt.Errorf("unknown format %q", tilesFormat)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseBBoxFlag(bbox string) (model.BoundingBox, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return model.BoundingBox{}, fmt.Errorf("--bbox must contain 4 coordinates: min_lng,min_lat,max_lng,max_lat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BoundingBox{}, fmt.Errorf("invalid --bbox coordinate %q", p)
		}
		v[i] = f
	}
	return model.BoundingBox{SWLng: v[0], SWLat: v[1], NELng: v[2], NELat: v[3]}, nil
}
