package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Value reads the current value of a single gauge or counter. It is meant for
// tests; it returns an error for other metric kinds.
func Value(c prometheus.Collector) (float64, error) {
	ch := make(chan prometheus.Metric, 1)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	m, ok := <-ch
	if !ok {
		return 0, fmt.Errorf("collector produced no metric")
	}
	for range ch {
	}

	pb := &dto.Metric{}
	if err := m.Write(pb); err != nil {
		return 0, err
	}

	switch {
	case pb.Gauge != nil:
		return pb.Gauge.GetValue(), nil
	case pb.Counter != nil:
		return pb.Counter.GetValue(), nil
	}
	return 0, fmt.Errorf("unsupported metric type")
}
