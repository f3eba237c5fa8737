package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VirtualTileRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_virtual_tile_requests_total",
		Help: "Total number of virtual tile computations",
	})
	VirtualTilesSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_virtual_tiles_suppressed_total",
		Help: "Virtual tile computations suppressed because the viewport exceeded max cells",
	})
	CellActivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgrid_cell_activations_total",
		Help: "Cell activations by result (created or existing)",
	}, []string{"result"})
	CellSubdivisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_cell_subdivisions_total",
		Help: "Total number of cells split into four children",
	})
	CellMergesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_cell_merges_total",
		Help: "Total number of parent cells re-activated by merging children",
	})
	SearchResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgrid_search_results_total",
		Help: "Recorded search results by resulting status",
	}, []string{"status"})
	OrphanedSearchResetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_orphaned_search_resets_total",
		Help: "Cells reset after staying in searching longer than the timeout",
	})
	DeletionBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_deletion_batches_total",
		Help: "Cascading deletion batch steps executed",
	})
	CellsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadgrid_cells_deleted_total",
		Help: "Cells deleted by cascading grid deletion",
	})
	GridDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgrid_grid_deletions_total",
		Help: "Cascading grid deletions by outcome",
	}, []string{"outcome"})
	DeletionDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadgrid_grid_deletion_duration_ms",
		Help:    "Cascading grid deletion duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 60000},
	})
)

func init() {
	prometheus.MustRegister(VirtualTileRequestsTotal)
	prometheus.MustRegister(VirtualTilesSuppressedTotal)
	prometheus.MustRegister(CellActivationsTotal)
	prometheus.MustRegister(CellSubdivisionsTotal)
	prometheus.MustRegister(CellMergesTotal)
	prometheus.MustRegister(SearchResultsTotal)
	prometheus.MustRegister(OrphanedSearchResetsTotal)
	prometheus.MustRegister(DeletionBatchesTotal)
	prometheus.MustRegister(CellsDeletedTotal)
	prometheus.MustRegister(GridDeletionsTotal)
	prometheus.MustRegister(DeletionDurationMs)
}

// Handler Prometheus 用の /metrics ハンドラー
func Handler() http.Handler { return promhttp.Handler() }
