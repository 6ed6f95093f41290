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

// Package postprocess cleans up raw decoder output: degenerate trailing
// repetitions from runaway generation, and LaTeX math markup repair.
package postprocess

// minRepetitionLen is the shortest trailing repetition worth truncating.
// Shorter repeats are usually legitimate text ("no no no").
const minRepetitionLen = 15

// TruncateRepetitions collapses a degenerate repeating tail down to a
// single occurrence. Autoregressive decoders that miss their stop token
// tend to loop on a fixed suffix until the token budget runs out; this
// detects the longest repeating suffix and keeps one copy of it.
func TruncateRepetitions(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2*minRepetitionLen {
		return text
	}

	// Find the longest tail length at which the text repeats.
	maxRepLen := 0
	for repLen := minRepetitionLen; repLen <= n/2; repLen++ {
		same := true
		for i := 0; i < repLen; i++ {
			if runes[n-repLen-i-1] != runes[n-i-1] {
				same = false
				break
			}
		}
		if same {
			maxRepLen = repLen
		}
	}

	if maxRepLen == 0 {
		return text
	}

	// Strip all trailing copies, then keep exactly one.
	end := n
	for end >= maxRepLen && equalRunes(runes[end-maxRepLen:end], runes[n-maxRepLen:n]) {
		end -= maxRepLen
	}
	return string(runes[:end+maxRepLen])
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
