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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRepetitions(t *testing.T) {
	phrase := "the quick brown fox " // 20 runes

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no repetition untouched",
			in:   "a perfectly ordinary recognized line of text",
			want: "a perfectly ordinary recognized line of text",
		},
		{
			name: "short repeats are legitimate text",
			in:   "no no no no no no",
			want: "no no no no no no",
		},
		{
			name: "repeating tail collapsed to one copy",
			in:   "prefix: " + strings.Repeat(phrase, 4),
			want: "prefix: " + phrase,
		},
		{
			name: "fully degenerate output keeps one copy",
			in:   strings.Repeat(phrase, 5),
			want: phrase,
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRepetitions(tt.in))
		})
	}
}

func TestTruncateRepetitionsMultiByte(t *testing.T) {
	phrase := "認識された数式の行がここで繰り返されます。" // 21 runes
	got := TruncateRepetitions("前置き " + strings.Repeat(phrase, 3))
	assert.Equal(t, "前置き "+phrase, got)
}
