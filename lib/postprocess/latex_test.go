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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsMath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain text", "just a line of text", false},
		{"dollar delimiter", "the value $x$ grows", true},
		{"inline fence", `take \(x+1\) here`, true},
		{"display fence", `\[x^2\]`, true},
		{"latex command", `\frac{a}{b}`, true},
		{"single letter escape is not a command", `a\nb`, false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsMath(tt.in))
		})
	}
}

func TestFixMath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline fences rewritten", `take \(x+1\) here`, "take $x+1$ here"},
		{"display fences rewritten", `\[x^2\]`, "$x^2$"},
		{"odd dollar count closed", `$\frac{a}{b}`, `$\frac{a}{b}$`},
		{"balanced dollars untouched", "the value $x$ grows", "the value $x$ grows"},
		{"dangling open fence closed", `take \(x+1 here`, "take $x+1 here$"},
		{"no math passes through", "just a line of text", "just a line of text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixMath(tt.in))
		})
	}
}
