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
	"image"
	"image/color"
	"testing"

	"github.com/antflydb/lector/lib/backends"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecognitionTokenizer(t *testing.T) *RecognitionTokenizer {
	t.Helper()
	rt, err := NewRecognitionTokenizer(&fakeTok{}, &backends.DecoderConfig{
		DecoderStartTokenID: 3,
		PadTokenID:          1,
		EOSTokenID:          2,
	}, map[string]int32{"en": 100, "fr": 101, "de": 102})
	require.NoError(t, err)
	return rt
}

func TestPreprocessorBuildsPrefixes(t *testing.T) {
	cfg := testImageConfig()
	p := NewPreprocessor(cfg, testRecognitionTokenizer(t))

	batch, err := p.Process([]image.Image{
		solidImage(16, 8, color.White),
		solidImage(16, 8, color.White),
	}, [][]string{{"en", "fr"}, {"de"}})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Batch)
	assert.Equal(t, cfg.Channels, batch.Channels)
	assert.Equal(t, cfg.Height, batch.Height)
	assert.Equal(t, cfg.Width, batch.Width)
	assert.Len(t, batch.Pixels, 2*cfg.Channels*cfg.Height*cfg.Width)

	// The shorter prefix is left-padded with the pad id so both samples
	// decode in lockstep.
	assert.Equal(t, [][]int32{
		{3, 100, 101},
		{1, 3, 102},
	}, batch.DecoderPrefixes)
}

func TestPreprocessorNilLangs(t *testing.T) {
	p := NewPreprocessor(testImageConfig(), testRecognitionTokenizer(t))

	batch, err := p.Process([]image.Image{solidImage(16, 8, color.White)}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{3}}, batch.DecoderPrefixes)
}

func TestPreprocessorLangsLengthMismatch(t *testing.T) {
	p := NewPreprocessor(testImageConfig(), testRecognitionTokenizer(t))

	_, err := p.Process([]image.Image{solidImage(16, 8, color.White)}, [][]string{{"en"}, {"fr"}})
	assert.Error(t, err)
}
