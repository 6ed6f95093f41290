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

package recognition

import (
	"context"
	"fmt"
	"image"

	"github.com/antflydb/lector/lib/backends"
	"go.uber.org/zap"
)

// Recognizer runs batched text recognition end to end: it plans batches,
// preprocesses images, drives the encoder and decoder, and reassembles
// results in caller order. A Recognizer is not safe for concurrent use;
// wrap it in a Pool for that.
type Recognizer struct {
	model        Model
	tokenizer    Tokenizer
	preprocessor Preprocessor
	post         Postprocessor
	gen          *backends.GenerationConfig
	estimator    *BatchSizeEstimator
	logger       *zap.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recognizer) { r.logger = logger }
}

// WithGenerationConfig overrides the decoding-loop parameters.
func WithGenerationConfig(gen *backends.GenerationConfig) Option {
	return func(r *Recognizer) { r.gen = gen }
}

// WithEstimator overrides the batch size estimator, e.g. to pin the
// device or inject a memory reader.
func WithEstimator(est *BatchSizeEstimator) Option {
	return func(r *Recognizer) { r.estimator = est }
}

// WithPostprocessor overrides the text postprocessor.
func WithPostprocessor(post Postprocessor) Option {
	return func(r *Recognizer) { r.post = post }
}

// New builds a Recognizer over the given model, tokenizer, and
// preprocessor.
func New(model Model, tokenizer Tokenizer, preprocessor Preprocessor, opts ...Option) *Recognizer {
	r := &Recognizer{
		model:        model,
		tokenizer:    tokenizer,
		preprocessor: preprocessor,
		post:         noopPostprocessor{},
		gen:          backends.DefaultGenerationConfig(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.estimator == nil {
		r.estimator = NewEstimator(nil, backends.DetectDevice(), r.logger)
	}
	return r
}

// Recognize runs recognition over images with optional per-image language
// tags and returns texts and confidences in the same order as the input.
// langs may be nil; otherwise it must have one entry per image (entries
// may be nil). batchSize <= 0 derives a batch size from free memory.
func (r *Recognizer) Recognize(ctx context.Context, images []image.Image, langs [][]string, batchSize int) ([]string, []float64, error) {
	requests, err := buildRequests(images, langs)
	if err != nil {
		return nil, nil, err
	}
	results, err := r.RecognizeRequests(ctx, requests, batchSize)
	if err != nil {
		return nil, nil, err
	}
	texts := make([]string, len(results))
	confidences := make([]float64, len(results))
	for i, res := range results {
		texts[i] = res.Text
		confidences[i] = res.Confidence
	}
	return texts, confidences, nil
}

// RecognizeRequests is Recognize with per-result detail (truncation,
// token counts). Results are in request order.
func (r *Recognizer) RecognizeRequests(ctx context.Context, requests []Request, batchSize int) ([]Result, error) {
	if len(requests) == 0 {
		return []Result{}, nil
	}
	for i, req := range requests {
		if req.Image == nil {
			return nil, fmt.Errorf("request %d has a nil image", i)
		}
	}
	if batchSize <= 0 {
		batchSize = r.estimator.EstimateBatchSize()
	}

	results := make([]Result, len(requests))
	batches := planBatches(requests, batchSize)
	r.logger.Debug("planned recognition batches",
		zap.Int("requests", len(requests)),
		zap.Int("batch_size", batchSize),
		zap.Int("batches", len(batches)))

	engine := newDecodingEngine(r.model, r.tokenizer, r.gen, r.logger)
	for _, batch := range batches {
		if err := r.runBatch(ctx, engine, batch, batchSize, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// runBatch processes one planned batch and writes results into the
// caller-indexed results slice.
func (r *Recognizer) runBatch(ctx context.Context, engine *decodingEngine, batch []plannedItem, batchSize int, results []Result) error {
	images := make([]image.Image, len(batch))
	langs := make([][]string, len(batch))
	for i, item := range batch {
		images[i] = item.req.Image
		langs[i] = item.req.Langs
	}

	processed, err := r.preprocessor.Process(images, langs)
	if err != nil {
		return fmt.Errorf("preprocessing batch: %w", err)
	}

	// The cache capacity is the planned batch size even on a short tail
	// batch, so every step pads inputs to the same shape and static-shape
	// backends compile the model once.
	if err := r.model.SetupCache(batchSize); err != nil {
		return fmt.Errorf("setting up decoder cache: %w", err)
	}

	encoded, err := r.encodeChunks(ctx, processed, batchSize)
	if err != nil {
		return err
	}
	textContext, err := r.model.EncodeTextContext(ctx, encoded)
	if err != nil {
		return fmt.Errorf("encoding text context: %w", err)
	}

	state, err := engine.run(ctx, textContext, processed.DecoderPrefixes, batchSize)
	if err != nil {
		return err
	}

	texts := r.tokenizer.BatchDecode(state.predictions)
	for i, item := range batch {
		text := r.post.TruncateRepetitions(texts[i])
		if item.req.MathMode() && r.post.ContainsMath(text) {
			text = r.post.FixMath(text)
		}
		results[item.index] = Result{
			Text:       text,
			Confidence: aggregateConfidence(state.scores[i]),
			Truncated:  state.truncated && !state.done[i],
			TokenCount: len(state.predictions[i]),
		}
	}
	return nil
}

// encodeChunks runs the image encoder over sub-chunks of the batch to
// bound peak encoder memory, then concatenates the hidden states.
func (r *Recognizer) encodeChunks(ctx context.Context, processed *ProcessedBatch, batchSize int) (*backends.EncoderOutput, error) {
	chunkSize := batchSize
	if r.gen.EncoderChunkDivisor > 0 {
		chunkSize = batchSize/r.gen.EncoderChunkDivisor + 1
	}
	sampleLen := processed.Channels * processed.Height * processed.Width

	var out *backends.EncoderOutput
	for start := 0; start < processed.Batch; start += chunkSize {
		end := min(start+chunkSize, processed.Batch)
		pixels := processed.Pixels[start*sampleLen : end*sampleLen]
		chunk, err := r.model.Encode(ctx, pixels, end-start, processed.Channels, processed.Height, processed.Width)
		if err != nil {
			return nil, fmt.Errorf("encoding images %d..%d: %w", start, end, err)
		}
		if out == nil {
			out = chunk
			continue
		}
		if chunk.Shape[1] != out.Shape[1] || chunk.Shape[2] != out.Shape[2] {
			return nil, fmt.Errorf("encoder chunk shape %v does not match %v", chunk.Shape, out.Shape)
		}
		out.HiddenStates = append(out.HiddenStates, chunk.HiddenStates...)
		out.Shape[0] += chunk.Shape[0]
	}
	return out, nil
}

// buildRequests zips images with their language tags, validating shape.
func buildRequests(images []image.Image, langs [][]string) ([]Request, error) {
	if langs != nil && len(langs) != len(images) {
		return nil, fmt.Errorf("got %d language tag lists for %d images", len(langs), len(images))
	}
	requests := make([]Request, len(images))
	for i, img := range images {
		requests[i] = Request{Image: img}
		if langs != nil {
			requests[i].Langs = langs[i]
		}
	}
	return requests, nil
}

// noopPostprocessor passes text through untouched. It is the default
// until a real postprocessor is attached.
type noopPostprocessor struct{}

func (noopPostprocessor) TruncateRepetitions(text string) string { return text }
func (noopPostprocessor) ContainsMath(text string) bool          { return false }
func (noopPostprocessor) FixMath(text string) string             { return text }
