package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// findSample returns the series of name whose labels include every pair in kv.
func findSample(mfs []*dto.MetricFamily, name string, kv ...string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), kv) {
			return metric, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, kv)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, kv ...string) (float64, error) {
	metric, err := findSample(mfs, name, kv...)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func hasLabels(labels []*dto.LabelPair, kv []string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		found := false
		for _, label := range labels {
			if label.GetName() == kv[i] && label.GetValue() == kv[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
