package metrics

import "github.com/prometheus/client_golang/prometheus"

// RecorderStats is a snapshot of recorder counters.
type RecorderStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// RegisterRecorder exposes recorder counters read from stats at scrape time.
func RegisterRecorder(reg prometheus.Registerer, stats func() RecorderStats) error {
	if reg == nil {
		return nil
	}

	counter := func(name, help string, value func(RecorderStats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}

	collectors := []prometheus.Collector{
		counter("rows_inserted_total", "Total number of rows inserted",
			func(s RecorderStats) int64 { return s.Inserts }),
		counter("rows_conflicted_total", "Total number of rows skipped as duplicates",
			func(s RecorderStats) int64 { return s.Conflicts }),
		counter("flushes_total", "Total number of successful batch flushes",
			func(s RecorderStats) int64 { return s.Flushes }),
		counter("flush_errors_total", "Total number of failed batch flushes",
			func(s RecorderStats) int64 { return s.Errors }),
		counter("dropped_total", "Total number of messages dropped because the buffer was full",
			func(s RecorderStats) int64 { return s.Dropped }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
