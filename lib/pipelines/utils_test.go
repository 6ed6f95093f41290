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

package pipelines

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstNonZero(t *testing.T) {
	assert.Equal(t, 5, FirstNonZero(0, 0, 5, 7))
	assert.Equal(t, 7, FirstNonZero(7))
	assert.Equal(t, 0, FirstNonZero(0, 0))
	assert.Equal(t, 0, FirstNonZero())
}

func TestFindONNXFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "onnx"), 0o755))
	writeModelFile(t, dir, "decoder.onnx", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "onnx", "encoder.onnx"), nil, 0o644))

	// Root comes before the onnx/ subdirectory, candidate order wins
	// within a directory.
	assert.Equal(t, filepath.Join(dir, "decoder.onnx"),
		FindONNXFile(dir, []string{"decoder_model_merged.onnx", "decoder.onnx"}))
	assert.Equal(t, filepath.Join(dir, "onnx", "encoder.onnx"),
		FindONNXFile(dir, []string{"encoder.onnx"}))
	assert.Empty(t, FindONNXFile(dir, []string{"missing.onnx"}))
}

func TestIntConversionRoundTrip(t *testing.T) {
	ids := []int{0, 1, 65791}
	assert.Equal(t, ids, Int32ToInt(IntToInt32(ids)))
	assert.Empty(t, IntToInt32(nil))
}
