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

// Package recognition implements batched autoregressive text recognition
// over cropped line images: memory-driven batch sizing, width-sorted batch
// planning, the lockstep decoding loop with per-sample early stopping, and
// confidence aggregation with caller-order result assembly.
//
// The neural network, tokenizer, image preprocessing, and text
// postprocessing are consumed through capability interfaces; the pipelines
// and postprocess packages provide the default implementations.
package recognition

import (
	"context"
	"image"
	"strings"

	"github.com/antflydb/lector/lib/backends"
)

// mathTagSuffix marks a language tag that puts a sample in math mode,
// enabling LaTeX repair on its output.
const mathTagSuffix = "_math"

// Request is one input image plus optional language tags. It is owned by
// the caller until consumed by the batch planner.
type Request struct {
	// Image is the cropped line or region to recognize.
	Image image.Image

	// Langs are optional language tags conditioning the decoder
	// (e.g. "en", "fr", "en_math").
	Langs []string
}

// MathMode reports whether any language tag flags math mode.
func (r Request) MathMode() bool {
	for _, lang := range r.Langs {
		if strings.HasSuffix(lang, mathTagSuffix) {
			return true
		}
	}
	return false
}

// Result is the recognized text and confidence for one request.
type Result struct {
	// Text is the recognized (postprocessed) text.
	Text string

	// Confidence is the mean per-token probability over the steps the
	// sample actually contributed before terminating.
	Confidence float64

	// Truncated indicates the sample's batch hit the token budget before
	// the sample emitted an end marker. Truncation is expected behavior,
	// surfaced here for telemetry rather than raised as an error.
	Truncated bool

	// TokenCount is the number of tokens generated for this sample.
	TokenCount int
}

// DecodeStep is the input to one step of batched decoding.
type DecodeStep struct {
	// InputIDs holds the current decoder tokens per sample, padded up to
	// the declared cache capacity when a static cache is in use.
	InputIDs [][]int32

	// CachePositions are the cache slot positions the input tokens occupy.
	CachePositions []int64

	// Context is the encoder output attended to by the decoder.
	Context *backends.EncoderOutput

	// UseCache requests incremental reuse of the decoder's key/value cache.
	UseCache bool

	// Prefill marks the first step, which consumes the full initial input
	// rather than a single new token.
	Prefill bool
}

// DecodeResult is the output of one step of batched decoding.
type DecodeResult struct {
	// Logits holds the last-position vocabulary logits per sample,
	// including any cache-padding rows (the engine truncates those).
	Logits [][]float32

	// AuxLogits optionally carries a secondary head's logits; unused by
	// the decoding loop but passed through for models that emit them.
	AuxLogits [][]float32
}

// Model is the encoder-decoder network consumed by the recognizer.
// Implementations are not required to be safe for concurrent use; the
// pool serializes access per instance.
type Model interface {
	// Encode runs the image encoder over a pixel tensor
	// [batch, channels, height, width] flattened in NCHW order.
	Encode(ctx context.Context, pixels []float32, batch, channels, height, width int) (*backends.EncoderOutput, error)

	// EncodeTextContext projects encoder hidden states into the text
	// context the decoder attends to.
	EncodeTextContext(ctx context.Context, hidden *backends.EncoderOutput) (*backends.EncoderOutput, error)

	// Decode runs one decoder step.
	Decode(ctx context.Context, step *DecodeStep) (*DecodeResult, error)

	// SetupCache (re)initializes the decoder cache with the given batch
	// capacity. It must be called before each batch so no state leaks
	// between batches.
	SetupCache(capacity int) error

	// DecoderConfig returns the decoder's token ids and dimensions.
	DecoderConfig() *backends.DecoderConfig

	// Close releases model resources.
	Close() error
}

// Tokenizer is the text side of the model: special token ids and batch
// decoding of generated id sequences.
type Tokenizer interface {
	// StartTokenID is the decoder start token.
	StartTokenID() int32

	// PadTokenID is the padding token; predicting it terminates a sample.
	PadTokenID() int32

	// EOSTokenID is the end-of-sequence token.
	EOSTokenID() int32

	// BatchDecode converts generated token id sequences to strings.
	BatchDecode(sequences [][]int32) []string
}

// ProcessedBatch is the preprocessor's output for one ordered batch.
type ProcessedBatch struct {
	// Pixels is the NCHW pixel tensor for the whole batch, flattened.
	Pixels []float32

	// Batch, Channels, Height, Width are the tensor dimensions.
	Batch, Channels, Height, Width int

	// DecoderPrefixes holds the per-sample decoder input prefix
	// (start token plus encoded language tags), left-padded with the pad
	// id to a uniform length.
	DecoderPrefixes [][]int32
}

// Preprocessor converts raw images and language tags into model inputs.
type Preprocessor interface {
	Process(images []image.Image, langs [][]string) (*ProcessedBatch, error)
}

// Postprocessor cleans up decoded text.
type Postprocessor interface {
	// TruncateRepetitions collapses degenerate repeating tails.
	TruncateRepetitions(text string) string

	// ContainsMath reports whether text carries LaTeX math markup.
	ContainsMath(text string) bool

	// FixMath repairs math markup (fence style, unbalanced fences).
	FixMath(text string) string
}
