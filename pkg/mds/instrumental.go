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

package mds

import "github.com/prometheus/client_golang/prometheus"

var (
	shardRequestLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mds_shard_request_latency_seconds",
			Help:    "The latency of requests executed by a cache shard.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
	)
	fragmentEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mds_fragment_events_total",
			Help: "The count of fragment lifecycle events observed.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(shardRequestLatency, fragmentEventCounter)
}
