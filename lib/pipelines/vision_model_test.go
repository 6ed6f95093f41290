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

func writeModelFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadRecognitionModelConfig(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "encoder.onnx", "")
	writeModelFile(t, dir, "decoder_model_merged.onnx", "")
	writeModelFile(t, dir, "config.json", `{
		"decoder": {
			"vocab_size": 65792,
			"decoder_start_token_id": 1,
			"eos_token_id": 2,
			"pad_token_id": 0,
			"max_length": 256,
			"decoder_layers": 4,
			"decoder_attention_heads": 16,
			"d_model": 1024
		},
		"encoder": {"image_size": [896, 196]}
	}`)
	writeModelFile(t, dir, "preprocessor_config.json", `{
		"image_mean": [0.485, 0.456, 0.406],
		"image_std": [0.229, 0.224, 0.225],
		"rescale_factor": 0.00392156862745098
	}`)
	writeModelFile(t, dir, "tokenizer.json", `{
		"added_tokens": [
			{"id": 65600, "content": "<en>", "special": true},
			{"id": 65601, "content": "[fr]", "special": true},
			{"id": 2, "content": "</s>", "special": true}
		]
	}`)

	config, err := LoadRecognitionModelConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "encoder.onnx"), config.EncoderPath)
	assert.Equal(t, filepath.Join(dir, "decoder_model_merged.onnx"), config.DecoderPath)
	assert.Empty(t, config.TextEncoderPath)

	dec := config.DecoderConfig
	assert.Equal(t, 65792, dec.VocabSize)
	assert.Equal(t, int32(1), dec.DecoderStartTokenID)
	assert.Equal(t, int32(2), dec.EOSTokenID)
	assert.Equal(t, int32(0), dec.PadTokenID)
	assert.Equal(t, 256, dec.MaxLength)
	assert.Equal(t, 4, dec.NumLayers)
	assert.Equal(t, 16, dec.NumHeads)
	assert.Equal(t, 64, dec.HeadDim)

	img := config.ImageConfig
	assert.Equal(t, 896, img.Width)
	assert.Equal(t, 196, img.Height)
	assert.InDelta(t, 0.485, img.Mean[0], 1e-6)
	assert.InDelta(t, 0.225, img.Std[2], 1e-6)

	assert.Equal(t, map[string]int32{"en": 65600, "fr": 65601, "/s": 2}, config.LangTokens)
}

func TestLoadRecognitionModelConfigMissingConfig(t *testing.T) {
	_, err := LoadRecognitionModelConfig(t.TempDir())
	assert.Error(t, err)
}

func TestIsRecognitionModel(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRecognitionModel(dir))

	writeModelFile(t, dir, "encoder.onnx", "")
	assert.False(t, IsRecognitionModel(dir))

	writeModelFile(t, dir, "decoder.onnx", "")
	assert.True(t, IsRecognitionModel(dir))
}

func TestParseEOSTokenID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int32
	}{
		{"number", float64(2), 2},
		{"list", []interface{}{float64(7), float64(8)}, 7},
		{"empty list", []interface{}{}, 0},
		{"nil", nil, 0},
		{"string", "2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseEOSTokenID(tt.in))
		})
	}
}

func TestExtractImageSize(t *testing.T) {
	tests := []struct {
		name       string
		in         any
		wantWidth  int
		wantHeight int
	}{
		{"bare number is square", float64(224), 224, 224},
		{"pair is width then height", []interface{}{float64(896), float64(196)}, 896, 196},
		{"map keeps both dimensions", map[string]interface{}{"width": float64(896), "height": float64(196)}, 896, 196},
		{"shortest edge is square", map[string]interface{}{"shortest_edge": float64(384)}, 384, 384},
		{"nil", nil, 0, 0},
		{"malformed pair", []interface{}{"a", "b"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := extractImageSize(tt.in)
			assert.Equal(t, tt.wantWidth, w)
			assert.Equal(t, tt.wantHeight, h)
		})
	}
}

func TestBuildDecoderConfigDefaults(t *testing.T) {
	dec := buildDecoderConfig(&rawModelConfig{})
	assert.Equal(t, 512, dec.MaxLength)
	assert.Equal(t, 6, dec.NumLayers)
	assert.Equal(t, 8, dec.NumHeads)
	assert.Equal(t, 96, dec.HeadDim)
}

func TestKVCacheTensorNaming(t *testing.T) {
	assert.True(t, IsPastKeyValueInput("past_key_values.0.decoder.key"))
	assert.False(t, IsPastKeyValueInput("input_ids"))

	assert.True(t, IsPresentKeyValueOutput("present.0.decoder.value"))
	assert.False(t, IsPresentKeyValueOutput("logits"))

	assert.True(t, isEncoderKVTensor("past_key_values.0.encoder.key"))
	assert.False(t, isEncoderKVTensor("past_key_values.0.decoder.key"))

	assert.Equal(t, "decoder_input_ids", GetDecoderInputIDsName(map[string]bool{"decoder_input_ids": true}))
	assert.Equal(t, "input_ids", GetDecoderInputIDsName(map[string]bool{"input_ids": true}))

	assert.Equal(t, "encoder_outputs", GetEncoderOutputName(map[string]bool{"encoder_outputs": true}))
	assert.Equal(t, "encoder_hidden_states", GetEncoderOutputName(map[string]bool{}))
}
