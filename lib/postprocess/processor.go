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

package postprocess

// Processor bundles the package's text cleanup functions behind a value
// satisfying the recognizer's postprocessor contract.
type Processor struct{}

// TruncateRepetitions collapses degenerate repeating tails.
func (Processor) TruncateRepetitions(text string) string { return TruncateRepetitions(text) }

// ContainsMath reports whether text carries LaTeX math markup.
func (Processor) ContainsMath(text string) bool { return ContainsMath(text) }

// FixMath repairs math fences.
func (Processor) FixMath(text string) string { return FixMath(text) }
