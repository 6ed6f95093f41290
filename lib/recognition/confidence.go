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

// aggregateConfidence reduces one sample's per-step scores to a mean over
// the steps it actually contributed. Zero entries were recorded after the
// sample finished and are excluded from the denominator. A sample with no
// contributing steps gets a confidence of 0.
func aggregateConfidence(scores []float32) float64 {
	var sum float64
	var count int
	for _, s := range scores {
		if s != 0 {
			sum += float64(s)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
