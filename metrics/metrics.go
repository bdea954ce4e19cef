/*
 * metrics.go, part of gocsm.
 *
 * Copyright 2024 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

// Package metrics collects Prometheus metrics about symmetry searches. The metrics are
// kept in their own registry and can be written in the textfile format read by the node
// exporter, which suits short lived command line runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	csm "github.com/rmera/gocsm"
)

// Config holds the configuration of a Collector.
type Config struct {
	Namespace   string //gocsm if empty
	ConstLabels prometheus.Labels
}

// Collector is a csm.Observer that records the work and the results of searches.
type Collector struct {
	registry     *prometheus.Registry
	searches     *prometheus.CounterVec
	permutations *prometheus.CounterVec
	truncated    *prometheus.CounterVec
	warnings     prometheus.Counter
	measure      *prometheus.GaugeVec
	measures     prometheus.Histogram
	duration     prometheus.Histogram
}

// New returns a Collector with its metrics registered in a new registry.
func New(cfg Config) (*Collector, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "gocsm"
	}
	ns := cfg.Namespace
	c := &Collector{registry: prometheus.NewRegistry()}
	c.searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "searches_total", Help: "Symmetry searches completed.", ConstLabels: cfg.ConstLabels,
	}, []string{"requested", "operation"})
	c.permutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "permutations_total", Help: "Permutations evaluated.", ConstLabels: cfg.ConstLabels,
	}, []string{"operation"})
	c.truncated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "truncated_searches_total", Help: "Searches stopped by a limit before completion.", ConstLabels: cfg.ConstLabels,
	}, []string{"requested"})
	c.warnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "warnings_total", Help: "Warnings issued by searches.", ConstLabels: cfg.ConstLabels,
	})
	c.measure = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Name: "measure", Help: "Last symmetry measure obtained.", ConstLabels: cfg.ConstLabels,
	}, []string{"requested"})
	c.measures = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Name: "measure_distribution", Help: "Symmetry measures obtained.", ConstLabels: cfg.ConstLabels,
		Buckets: []float64{1e-6, 0.01, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
	c.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Name: "search_duration_seconds", Help: "Wall clock time of searches.", ConstLabels: cfg.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
	})
	for _, col := range []prometheus.Collector{c.searches, c.permutations, c.truncated, c.warnings, c.measure, c.measures, c.duration} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}
	return c, nil
}

// Registry returns the registry that holds the metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePermutations implements csm.Observer.
func (c *Collector) ObservePermutations(op csm.Operation, n int64) {
	c.permutations.WithLabelValues(op.String()).Add(float64(n))
}

// ObserveResult implements csm.Observer.
func (c *Collector) ObserveResult(r *csm.Result) {
	req := r.Requested.String()
	c.searches.WithLabelValues(req, r.Op.String()).Inc()
	if r.Truncated {
		c.truncated.WithLabelValues(req).Inc()
	}
	c.warnings.Add(float64(len(r.Warnings)))
	c.measure.WithLabelValues(req).Set(r.CSM)
	c.measures.Observe(r.CSM)
}

// ObserveDuration records the time taken by a search that started at start.
func (c *Collector) ObserveDuration(start time.Time) {
	c.duration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the metrics to filename in the Prometheus text format.
// The file is written atomically.
func (c *Collector) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, c.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", filename, err)
	}
	return nil
}
