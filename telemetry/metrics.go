package telemetry

// RecordBuckets for per record processing time
var RecordBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}

// Metrics are the Prometheus series of a conversion run.
type Metrics struct {
	// Records counts every chunk read from the input
	Records Counter

	// LinesRead counts physical input lines
	LinesRead Counter

	// RecordsWritten counts records written to the output
	RecordsWritten Counter

	// RecordsModified counts written records that differ from their input
	RecordsModified Counter

	// RecordsFailed counts records sent to the reject stream
	RecordsFailed Counter

	ValidationErrors Counter
	Base64Errors     Counter
	DuplicateKeys    Counter

	// LinesDropped counts removed lines by rule
	LinesDropped CounterVec

	// RecordSeconds measures parse plus rule time of one record
	RecordSeconds Histogram

	// Throughput is records per second over the whole run
	Throughput Gauge
}

// NewMetrics registers the run metrics. A nil registry yields no-op metrics.
func NewMetrics(r *Registry) *Metrics {
	return &Metrics{
		Records:          r.NewCounter("records_total", "Records read from the input"),
		LinesRead:        r.NewCounter("lines_read_total", "Physical lines read from the input"),
		RecordsWritten:   r.NewCounter("records_written_total", "Records written to the output"),
		RecordsModified:  r.NewCounter("records_modified_total", "Written records changed by conversion"),
		RecordsFailed:    r.NewCounter("records_failed_total", "Records that failed conversion"),
		ValidationErrors: r.NewCounter("validation_errors_total", "Attribute values rejected by schema validation"),
		Base64Errors:     r.NewCounter("base64_errors_total", "Base64 values that could not be decoded"),
		DuplicateKeys:    r.NewCounter("duplicate_keys_total", "Records whose dn was probably seen before"),
		LinesDropped:     r.NewCounterVec("lines_dropped_total", "Lines removed by rules", []string{"rule"}),
		RecordSeconds:    r.NewHistogram("record_seconds", "Time spent converting one record", RecordBuckets),
		Throughput:       r.NewGauge("records_per_second", "Records converted per second"),
	}
}
