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
	"image"

	"github.com/antflydb/lector/lib/backends"
	"github.com/antflydb/lector/lib/recognition"
)

// Ensure Preprocessor implements recognition.Preprocessor
var _ recognition.Preprocessor = (*Preprocessor)(nil)

// Preprocessor converts line images and language tags into model inputs:
// a normalized NCHW pixel tensor plus per-sample decoder prefixes.
type Preprocessor struct {
	images    *ImageProcessor
	tokenizer *RecognitionTokenizer
}

// NewPreprocessor builds a Preprocessor over an image config and the
// recognition tokenizer.
func NewPreprocessor(imageConfig *backends.ImageConfig, tokenizer *RecognitionTokenizer) *Preprocessor {
	return &Preprocessor{
		images:    NewImageProcessor(imageConfig),
		tokenizer: tokenizer,
	}
}

// Process preprocesses one batch. Decoder prefixes are the start token
// followed by the language token ids, left-padded with the pad id to a
// uniform length so the batch decodes in lockstep.
func (p *Preprocessor) Process(images []image.Image, langs [][]string) (*recognition.ProcessedBatch, error) {
	if langs != nil && len(langs) != len(images) {
		return nil, fmt.Errorf("got %d language tag lists for %d images", len(langs), len(images))
	}

	pixels, err := p.images.ProcessBatch(images)
	if err != nil {
		return nil, err
	}

	prefixes := make([][]int32, len(images))
	maxLen := 0
	for i := range images {
		prefix := []int32{p.tokenizer.StartTokenID()}
		if langs != nil {
			prefix = append(prefix, p.tokenizer.LangTokenIDs(langs[i])...)
		}
		prefixes[i] = prefix
		if len(prefix) > maxLen {
			maxLen = len(prefix)
		}
	}
	padID := p.tokenizer.PadTokenID()
	for i, prefix := range prefixes {
		if len(prefix) == maxLen {
			continue
		}
		padded := make([]int32, maxLen)
		pad := maxLen - len(prefix)
		for j := 0; j < pad; j++ {
			padded[j] = padID
		}
		copy(padded[pad:], prefix)
		prefixes[i] = padded
	}

	cfg := p.images.Config
	return &recognition.ProcessedBatch{
		Pixels:          pixels,
		Batch:           len(images),
		Channels:        cfg.Channels,
		Height:          cfg.Height,
		Width:           cfg.Width,
		DecoderPrefixes: prefixes,
	}, nil
}
