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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/antflydb/lector/lib/backends"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTok is a minimal tokenizers.Tokenizer for adapter tests. Decode
// renders ids as space-separated numbers so filtering is observable.
type fakeTok struct {
	specials map[api.SpecialToken]int
}

func (f *fakeTok) Encode(text string) []int { return nil }

func (f *fakeTok) Decode(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

func (f *fakeTok) SpecialTokenID(token api.SpecialToken) (int, error) {
	id, ok := f.specials[token]
	if !ok {
		return 0, fmt.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	return id, nil
}

func TestNewRecognitionTokenizerUsesDecoderConfig(t *testing.T) {
	rt, err := NewRecognitionTokenizer(&fakeTok{}, &backends.DecoderConfig{
		DecoderStartTokenID: 3,
		PadTokenID:          1,
		EOSTokenID:          2,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), rt.StartTokenID())
	assert.Equal(t, int32(1), rt.PadTokenID())
	assert.Equal(t, int32(2), rt.EOSTokenID())
}

func TestNewRecognitionTokenizerFallsBackToTokenizer(t *testing.T) {
	tok := &fakeTok{specials: map[api.SpecialToken]int{
		api.TokPad:                 7,
		api.TokEndOfSentence:       8,
		api.TokBeginningOfSentence: 9,
	}}
	rt, err := NewRecognitionTokenizer(tok, &backends.DecoderConfig{}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(9), rt.StartTokenID())
	assert.Equal(t, int32(7), rt.PadTokenID())
	assert.Equal(t, int32(8), rt.EOSTokenID())
}

func TestNewRecognitionTokenizerStartFallsBackToEOS(t *testing.T) {
	tok := &fakeTok{specials: map[api.SpecialToken]int{
		api.TokEndOfSentence: 8,
	}}
	rt, err := NewRecognitionTokenizer(tok, &backends.DecoderConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(8), rt.StartTokenID())
}

func TestNewRecognitionTokenizerRequiresEOS(t *testing.T) {
	_, err := NewRecognitionTokenizer(&fakeTok{}, &backends.DecoderConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eos")
}

func TestLangTokenIDs(t *testing.T) {
	rt, err := NewRecognitionTokenizer(&fakeTok{}, &backends.DecoderConfig{
		DecoderStartTokenID: 3,
		PadTokenID:          1,
		EOSTokenID:          2,
	}, map[string]int32{"en": 100, "fr": 101})
	require.NoError(t, err)

	assert.Equal(t, []int32{100, 101}, rt.LangTokenIDs([]string{"en", "fr"}))
	assert.Equal(t, []int32{100}, rt.LangTokenIDs([]string{"en_math"}))
	assert.Nil(t, rt.LangTokenIDs([]string{"xx"}))
	assert.Nil(t, rt.LangTokenIDs(nil))
}

func TestBatchDecodeFiltersSpecialTokens(t *testing.T) {
	rt, err := NewRecognitionTokenizer(&fakeTok{}, &backends.DecoderConfig{
		DecoderStartTokenID: 3,
		PadTokenID:          1,
		EOSTokenID:          2,
	}, nil)
	require.NoError(t, err)

	texts := rt.BatchDecode([][]int32{
		{3, 10, 11, 2},
		{1, 1, 3, 20, 2, 1},
		{3, 2},
	})
	assert.Equal(t, []string{"10 11", "20", ""}, texts)
}

func TestNormalizeTokenizerConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tokenizer_config.json")
	raw := `{
		"eos_token": {"__type": "AddedToken", "content": "</s>"},
		"pad_token": "<pad>",
		"model_max_length": 512
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(raw), 0o644))

	normalized, err := normalizeTokenizerConfig(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(normalized), `"eos_token":"</s>"`)
	assert.Contains(t, string(normalized), `"pad_token":"<pad>"`)
}
