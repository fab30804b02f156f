/*
Copyright © 2021 the adios2nc authors.
This file is part of adios2nc.

adios2nc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

adios2nc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with adios2nc.  If not, see <http://www.gnu.org/licenses/>.
*/

package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus records measurements as Prometheus metrics.
type Prometheus struct {
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	readTime     prometheus.Histogram
	writeTime    prometheus.Histogram
	variables    prometheus.Counter
	barrierWait  *prometheus.HistogramVec
	sessions     *prometheus.CounterVec
	sessionTime  prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the conversion metrics in namespace and
// registers them with reg. If reg is nil, prometheus.DefaultRegisterer is
// used; if namespace is "", "adios2nc" is used.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "adios2nc"
	}
	ioBuckets := prometheus.ExponentialBuckets(0.001, 4, 10)
	p := &Prometheus{
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from the source dataset.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to the destination container.",
		}),
		readTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_seconds",
			Help:      "Duration of source reads.",
			Buckets:   ioBuckets,
		}),
		writeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_seconds",
			Help:      "Duration of destination writes.",
			Buckets:   ioBuckets,
		}),
		variables: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variables_total",
			Help:      "Variables transferred.",
		}),
		barrierWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "barrier_wait_seconds",
			Help:      "Time spent waiting at collective barriers.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"barrier"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Conversion sessions by result (success, failure).",
		}, []string{"result"}),
		sessionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_seconds",
			Help:      "Duration of conversion sessions.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{p.bytesRead, p.bytesWritten, p.readTime, p.writeTime,
		p.variables, p.barrierWait, p.sessions, p.sessionTime} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("adios2nc/metrics: %w", err)
		}
	}
	return p, nil
}

// ObserveRead implements Recorder.
func (p *Prometheus) ObserveRead(bytes int, d time.Duration) {
	p.bytesRead.Add(float64(bytes))
	p.readTime.Observe(d.Seconds())
}

// ObserveWrite implements Recorder.
func (p *Prometheus) ObserveWrite(bytes int, d time.Duration) {
	p.bytesWritten.Add(float64(bytes))
	p.writeTime.Observe(d.Seconds())
}

// VariableDone implements Recorder.
func (p *Prometheus) VariableDone() { p.variables.Inc() }

// BarrierWait implements Recorder.
func (p *Prometheus) BarrierWait(barrier string, d time.Duration) {
	p.barrierWait.WithLabelValues(barrier).Observe(d.Seconds())
}

// SessionDone implements Recorder.
func (p *Prometheus) SessionDone(ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	p.sessions.WithLabelValues(result).Inc()
	p.sessionTime.Observe(d.Seconds())
}

// Push sends the metrics gathered by g to the Prometheus Pushgateway at
// url under the given job name. Each worker of a distributed run should
// use a distinct grouping, e.g. its rank.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(g)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("adios2nc/metrics: pushing to %s: %w", url, err)
	}
	return nil
}
