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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antflydb/lector/lib/backends"
	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-huggingface/tokenizers"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
)

// LoadTokenizer loads a tokenizer from a local model directory.
// It auto-detects the tokenizer type (HuggingFace tokenizer.json or
// SentencePiece tokenizer.model).
func LoadTokenizer(modelPath string) (tokenizers.Tokenizer, error) {
	var config *api.Config
	configPath := filepath.Join(modelPath, "tokenizer_config.json")
	if _, err := os.Stat(configPath); err == nil {
		// Normalize the config to handle HuggingFace AddedToken objects
		normalizedContent, err := normalizeTokenizerConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("normalizing tokenizer config: %w", err)
		}
		config, err = api.ParseConfigContent(normalizedContent)
		if err != nil {
			return nil, fmt.Errorf("parsing tokenizer config: %w", err)
		}
		config.ConfigFile = configPath
	}

	// tokenizer.json (HuggingFace Tokenizers format - BPE, WordPiece, etc.)
	tokenizerJSONPath := filepath.Join(modelPath, "tokenizer.json")
	if _, err := os.Stat(tokenizerJSONPath); err == nil {
		tok, err := hftokenizer.NewFromFile(config, tokenizerJSONPath)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer.json: %w", err)
		}
		return tok, nil
	}

	// tokenizer.model (SentencePiece format)
	spModelPath := filepath.Join(modelPath, "tokenizer.model")
	if _, err := os.Stat(spModelPath); err == nil {
		proc, err := esentencepiece.NewProcessorFromPath(spModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer.model: %w", err)
		}
		return &sentencepieceTokenizer{
			Processor: proc,
			Info:      proc.ModelInfo(),
		}, nil
	}

	return nil, fmt.Errorf("no tokenizer found in %s (expected tokenizer.json or tokenizer.model)", modelPath)
}

// sentencepieceTokenizer wraps esentencepiece.Processor to implement tokenizers.Tokenizer.
type sentencepieceTokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

var _ tokenizers.Tokenizer = (*sentencepieceTokenizer)(nil)

// Encode returns the text encoded into a sequence of token IDs.
func (t *sentencepieceTokenizer) Encode(text string) []int {
	tokens := t.Processor.Encode(text)
	result := make([]int, len(tokens))
	for i, tok := range tokens {
		result[i] = tok.ID
	}
	return result
}

// Decode returns the text from a sequence of token IDs.
func (t *sentencepieceTokenizer) Decode(ids []int) string {
	return t.Processor.Decode(ids)
}

// SpecialTokenID returns the ID for the given special token, or an error if unknown.
func (t *sentencepieceTokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return t.Info.UnknownID, nil
	case api.TokPad:
		return t.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return t.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return t.Info.EndOfSentenceID, nil
	default:
		return 0, fmt.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

// normalizeTokenizerConfig reads a tokenizer_config.json file and normalizes
// HuggingFace AddedToken objects to plain strings.
// Some HuggingFace models use {"__type": "AddedToken", "content": "<s>"} format
// instead of plain strings for special tokens.
func normalizeTokenizerConfig(configPath string) ([]byte, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}

	tokenFields := []string{
		"bos_token", "eos_token", "pad_token", "unk_token",
		"cls_token", "sep_token", "mask_token",
	}
	for _, field := range tokenFields {
		if val, ok := raw[field]; ok {
			raw[field] = extractTokenContent(val)
		}
	}

	return json.Marshal(raw)
}

// extractTokenContent extracts the token string from either a plain string
// or a HuggingFace AddedToken object.
func extractTokenContent(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if content, ok := val["content"].(string); ok {
			return content
		}
	}
	return ""
}

// RecognitionTokenizer adapts a loaded tokenizer to the recognizer's
// needs: resolved special token ids, language-tag token lookup, and batch
// decoding that strips special tokens.
type RecognitionTokenizer struct {
	tok        tokenizers.Tokenizer
	startID    int32
	padID      int32
	eosID      int32
	langTokens map[string]int32
}

// NewRecognitionTokenizer builds the adapter. Token ids come from the
// decoder config when set, falling back to the tokenizer's own special
// token table. langTokens maps language tags (e.g. "en") to the model's
// language token ids; it may be nil when the model is untagged.
func NewRecognitionTokenizer(tok tokenizers.Tokenizer, cfg *backends.DecoderConfig, langTokens map[string]int32) (*RecognitionTokenizer, error) {
	rt := &RecognitionTokenizer{
		tok:        tok,
		startID:    cfg.DecoderStartTokenID,
		padID:      cfg.PadTokenID,
		eosID:      cfg.EOSTokenID,
		langTokens: langTokens,
	}
	if rt.padID == 0 {
		if id, err := tok.SpecialTokenID(api.TokPad); err == nil {
			rt.padID = int32(id)
		}
	}
	if rt.eosID == 0 {
		id, err := tok.SpecialTokenID(api.TokEndOfSentence)
		if err != nil {
			return nil, fmt.Errorf("resolving eos token: %w", err)
		}
		rt.eosID = int32(id)
	}
	if rt.startID == 0 {
		if id, err := tok.SpecialTokenID(api.TokBeginningOfSentence); err == nil {
			rt.startID = int32(id)
		} else {
			rt.startID = rt.eosID
		}
	}
	return rt, nil
}

// StartTokenID is the decoder start token.
func (t *RecognitionTokenizer) StartTokenID() int32 { return t.startID }

// PadTokenID is the padding token.
func (t *RecognitionTokenizer) PadTokenID() int32 { return t.padID }

// EOSTokenID is the end-of-sequence token.
func (t *RecognitionTokenizer) EOSTokenID() int32 { return t.eosID }

// LangTokenIDs resolves language tags to token ids. Unknown tags are
// skipped; a "_math" suffix is stripped before lookup since math mode is
// a postprocessing concern, not a vocabulary one.
func (t *RecognitionTokenizer) LangTokenIDs(tags []string) []int32 {
	var ids []int32
	for _, tag := range tags {
		tag = strings.TrimSuffix(tag, "_math")
		if id, ok := t.langTokens[tag]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// BatchDecode converts generated token id sequences to strings.
func (t *RecognitionTokenizer) BatchDecode(sequences [][]int32) []string {
	texts := make([]string, len(sequences))
	for i, seq := range sequences {
		ids := make([]int, 0, len(seq))
		for _, id := range seq {
			if id == t.startID || id == t.padID || id == t.eosID {
				continue
			}
			ids = append(ids, int(id))
		}
		texts[i] = t.tok.Decode(ids)
	}
	return texts
}
