package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesImported counts DICOM files accepted by the import endpoint.
	FilesImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_files_imported_total",
		Help: "Number of DICOM files successfully parsed during import",
	})

	// ImportErrors counts per-file parse failures during import.
	ImportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_import_errors_total",
		Help: "Number of uploaded files that failed DICOM parsing",
	})

	// TransfersCompleted counts finished series transfers by outcome.
	TransfersCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_transfers_completed_total",
		Help: "Number of series transfers reaching a terminal state",
	}, []string{"status"})

	// BytesTransferred sums the on-disk size of successfully sent files.
	BytesTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_transfer_bytes_total",
		Help: "Total bytes of DICOM data transferred to destinations",
	})

	// ProbesTotal counts destination connectivity tests by outcome.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_connectivity_probes_total",
		Help: "Number of destination connectivity tests",
	}, []string{"result"})
)
