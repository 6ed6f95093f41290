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

import "sort"

// plannedItem is one request tagged with its position in the caller's
// input slice so results can be restored to caller order at the end.
type plannedItem struct {
	index int
	req   Request
}

// planBatches orders requests by ascending image width and chunks them
// into batches of at most batchSize. Sorting groups similarly sized
// images so each batch wastes less padding; the sort is stable so equal
// widths keep their input order.
func planBatches(requests []Request, batchSize int) [][]plannedItem {
	items := make([]plannedItem, len(requests))
	for i, req := range requests {
		items[i] = plannedItem{index: i, req: req}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].req.Image.Bounds().Dx() < items[b].req.Image.Bounds().Dx()
	})

	var batches [][]plannedItem
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
