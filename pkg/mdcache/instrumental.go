/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package mdcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/basenana/nanamds/pkg/types"
)

var (
	cacheOperationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdcache_operation_latency_seconds",
			Help:    "The latency of fragment cache operation.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"operation"},
	)
	freezeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdcache_freeze_total",
			Help: "This count of freeze transitions by outcome",
		},
		[]string{"result"},
	)
	completionFiredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdcache_completions_fired_total",
			Help: "This count of completions fired by result",
		},
		[]string{"result"},
	)
	fragmentGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdcache_fragments",
			Help: "The number of cached directory fragments.",
		},
	)
	dentryGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdcache_dentries",
			Help: "The number of cached dentries.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheOperationLatency,
		freezeCounter,
		completionFiredCounter,
		fragmentGauge,
		dentryGauge,
	)
}

func logOperationLatency(operation string, startAt time.Time) {
	cacheOperationLatency.WithLabelValues(operation).Observe(time.Since(startAt).Seconds())
}

func resultLabel(r types.Result) string {
	switch r {
	case types.ResultOK:
		return "ok"
	case types.ResultCanceled:
		return "canceled"
	default:
		return "error"
	}
}
