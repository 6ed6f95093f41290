// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lector

import "github.com/prometheus/client_golang/prometheus"

var (
	recognitionRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "recognition_request_ops_total",
			Help:      "The total number of recognition requests.",
		},
		[]string{"model"},
	)
	imageRecognitionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "image_recognition_ops_total",
			Help:      "The total number of images recognized.",
		},
		[]string{"model"},
	)
	tokenGenerationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "token_generation_ops_total",
			Help:      "The total number of tokens generated.",
		},
		[]string{"model"},
	)
	truncatedSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "truncated_samples_total",
			Help:      "Total number of samples cut off by the token budget.",
		},
		[]string{"model"},
	)

	plannedBatchSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "planned_batch_size",
			Help:      "The most recently planned recognition batch size.",
		},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process a recognition request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "status"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "model_load_duration_seconds",
			Help:      "Time taken to load a model.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"type"}, // recognition
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "lector",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"type"}, // recognition
	)
)

func init() {
	prometheus.MustRegister(recognitionRequestOps)
	prometheus.MustRegister(imageRecognitionOps)
	prometheus.MustRegister(tokenGenerationOps)
	prometheus.MustRegister(truncatedSamplesTotal)
	prometheus.MustRegister(plannedBatchSize)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(modelLoadDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

// RecordRecognitionRequest increments the recognition request counter
func RecordRecognitionRequest(model string) {
	recognitionRequestOps.WithLabelValues(model).Inc()
}

// RecordImageRecognition records the number of images recognized
func RecordImageRecognition(model string, count int) {
	imageRecognitionOps.WithLabelValues(model).Add(float64(count))
}

// RecordTokenGeneration records the number of tokens generated
func RecordTokenGeneration(model string, count int) {
	tokenGenerationOps.WithLabelValues(model).Add(float64(count))
}

// RecordTruncatedSamples records samples cut off by the token budget
func RecordTruncatedSamples(model string, count int) {
	truncatedSamplesTotal.WithLabelValues(model).Add(float64(count))
}

// RecordPlannedBatchSize records the most recently planned batch size
func RecordPlannedBatchSize(size int) {
	plannedBatchSize.Set(float64(size))
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(model, status string, seconds float64) {
	requestDuration.WithLabelValues(model, status).Observe(seconds)
}

// RecordModelLoadDuration records how long it took to load a model
func RecordModelLoadDuration(model string, seconds float64) {
	modelLoadDuration.WithLabelValues(model).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter
func RecordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter
func RecordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}
