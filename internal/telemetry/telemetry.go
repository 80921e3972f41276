// Package telemetry holds the prometheus collectors updated by the
// controller. They live in a private registry so that several controllers in
// one process share the same series without touching the global registry.
package telemetry

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels of ImplicitSolves.
const (
	OutcomeOptimal    = "optimal"
	OutcomeInfeasible = "infeasible"
	OutcomeError      = "error"
)

var Registry = prometheus.NewRegistry()

var (
	ImplicitSolves = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "pwampc",
		Name:      "implicit_solves_total",
		Help:      "Total fixed-state QP solves by outcome",
	}, []string{"outcome"})

	ExplicitLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "pwampc",
		Name:      "explicit_lookups_total",
		Help:      "Total explicit solution evaluations by outcome",
	}, []string{"outcome"})

	SolveLatency = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pwampc",
		Name:      "solve_seconds",
		Help:      "Solve duration by kind (implicit, explicit)",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"kind"})

	ExplicitRegions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "pwampc",
		Name:      "explicit_regions",
		Help:      "Critical regions in the most recently stored explicit solution",
	})

	Condensations = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "pwampc",
		Name:      "condense_total",
		Help:      "Total condensed programs built",
	})
)

// Sample is one series of a gathered snapshot.
type Sample struct {
	Name  string
	Value float64
}

// Snapshot flattens the registry into name{labels} samples. Histograms
// report their sample count.
func Snapshot() ([]Sample, error) {
	families, err := Registry.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			out = append(out, Sample{Name: seriesName(fam.GetName(), m), Value: value(fam.GetType(), m)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func seriesName(name string, m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return name
	}
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		pairs = append(pairs, l.GetName()+"="+l.GetValue())
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func value(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}
