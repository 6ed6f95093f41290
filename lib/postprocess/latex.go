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

import (
	"regexp"
	"strings"
)

var mathCommandRe = regexp.MustCompile(`\\[a-zA-Z]{2,}`)

// ContainsMath reports whether text looks like it carries LaTeX math:
// dollar-fenced spans, \(..\)/\[..\] fences, or LaTeX commands.
func ContainsMath(text string) bool {
	if strings.Contains(text, "$") {
		return true
	}
	if strings.Contains(text, `\(`) || strings.Contains(text, `\[`) {
		return true
	}
	return mathCommandRe.MatchString(text)
}

// FixMath normalizes math markup produced by the decoder: alternate fence
// styles are rewritten to dollar fences, and an unbalanced trailing fence
// is closed so downstream renderers do not swallow the rest of the line.
func FixMath(text string) string {
	replacer := strings.NewReplacer(
		`\(`, "$",
		`\)`, "$",
		`\[`, "$$",
		`\]`, "$$",
	)
	text = replacer.Replace(text)

	// Close an unbalanced inline fence. Display fences ($$) contribute an
	// even count, so only a dangling single $ trips this.
	if strings.Count(text, "$")%2 == 1 {
		text += "$"
	}

	return text
}
