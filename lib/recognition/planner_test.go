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

package recognition

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestsWithWidths(widths ...int) []Request {
	reqs := make([]Request, len(widths))
	for i, w := range widths {
		reqs[i] = Request{Image: image.NewRGBA(image.Rect(0, 0, w, 10))}
	}
	return reqs
}

func TestPlanBatchesSortsByWidth(t *testing.T) {
	reqs := requestsWithWidths(50, 10, 30)
	batches := planBatches(reqs, 2)

	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 1)

	// Sorted ascending by width, original indices retained.
	assert.Equal(t, 1, batches[0][0].index) // width 10
	assert.Equal(t, 2, batches[0][1].index) // width 30
	assert.Equal(t, 0, batches[1][0].index) // width 50
}

func TestPlanBatchesChunking(t *testing.T) {
	tests := []struct {
		name      string
		widths    []int
		batchSize int
		wantSizes []int
	}{
		{"single item", []int{20}, 8, []int{1}},
		{"exact fit", []int{10, 20, 30, 40}, 4, []int{4}},
		{"one over", []int{10, 20, 30, 40, 50}, 4, []int{4, 1}},
		{"batch of one", []int{10, 20, 30}, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := planBatches(requestsWithWidths(tt.widths...), tt.batchSize)
			require.Len(t, batches, len(tt.wantSizes))
			for i, want := range tt.wantSizes {
				assert.Len(t, batches[i], want)
			}
		})
	}
}

func TestPlanBatchesEveryIndexAppearsOnce(t *testing.T) {
	reqs := requestsWithWidths(40, 10, 10, 70, 25, 25, 90, 5)
	batches := planBatches(reqs, 3)

	seen := make(map[int]int)
	for _, batch := range batches {
		for _, item := range batch {
			seen[item.index]++
		}
	}
	require.Len(t, seen, len(reqs))
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d", idx)
	}
}

func TestPlanBatchesStableForEqualWidths(t *testing.T) {
	// Three images of equal width keep their input order.
	reqs := requestsWithWidths(20, 20, 20)
	batches := planBatches(reqs, 8)

	require.Len(t, batches, 1)
	for i, item := range batches[0] {
		assert.Equal(t, i, item.index)
	}
}

func TestPlanBatchesEmpty(t *testing.T) {
	assert.Empty(t, planBatches(nil, 4))
}
