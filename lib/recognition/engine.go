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

	"github.com/ajroetker/go-highway/hwy/contrib/nn"
	"github.com/ajroetker/go-highway/hwy/contrib/vec"
	"github.com/antflydb/lector/lib/backends"
	"go.uber.org/zap"
)

// decoderState tracks the lockstep decoding loop for one batch. Slices are
// indexed by position within the batch, not by caller index.
type decoderState struct {
	// predictions are the generated token ids per sample, excluding the
	// prefix and excluding anything predicted after the sample finished.
	predictions [][]int32

	// scores are the greedy-token probabilities per step. Once a sample
	// has finished, later steps record a zero so the confidence
	// aggregator can skip them; the step on which the sample finishes
	// still records its real score.
	scores [][]float32

	// done marks samples that have emitted eos or pad. It never resets
	// within a batch.
	done []bool

	// truncated is set when the token budget ran out with samples still
	// unfinished.
	truncated bool
}

// decodingEngine runs the batched autoregressive loop against a Model.
type decodingEngine struct {
	model      Model
	gen        *backends.GenerationConfig
	eosTokenID int32
	padTokenID int32
	logger     *zap.Logger
	softmaxBuf []float32
}

func newDecodingEngine(model Model, tok Tokenizer, gen *backends.GenerationConfig, logger *zap.Logger) *decodingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &decodingEngine{
		model:      model,
		gen:        gen,
		eosTokenID: tok.EOSTokenID(),
		padTokenID: tok.PadTokenID(),
		logger:     logger,
	}
}

// run decodes one batch to completion. encoderContext is the text context
// for the batch's samples; prefixes holds each sample's initial decoder
// tokens, already left-padded to a uniform length. capacity is the
// declared cache capacity, which may exceed the number of samples when
// the batch is a short tail.
func (e *decodingEngine) run(ctx context.Context, encoderContext *backends.EncoderOutput, prefixes [][]int32, capacity int) (*decoderState, error) {
	n := len(prefixes)
	state := &decoderState{
		predictions: make([][]int32, n),
		scores:      make([][]float32, n),
		done:        make([]bool, n),
	}
	if n == 0 {
		return state, nil
	}
	prefixLen := len(prefixes[0])
	for i, p := range prefixes {
		if len(p) != prefixLen {
			return nil, fmt.Errorf("ragged decoder prefixes: sample %d has %d tokens, want %d", i, len(p), prefixLen)
		}
	}

	if e.gen.StaticCache {
		encoderContext = padEncoderOutput(encoderContext, capacity)
	}

	inputIDs := make([][]int32, n)
	for i := range prefixes {
		inputIDs[i] = append([]int32(nil), prefixes[i]...)
	}
	positions := make([]int64, prefixLen)
	for i := range positions {
		positions[i] = int64(i)
	}

	tokenCount := 0
	stepTokens := prefixLen
	allDone := false

	for tokenCount < e.gen.MaxNewTokens-1 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		prefill := tokenCount == 0
		step := &DecodeStep{
			InputIDs:       inputIDs,
			CachePositions: positions,
			Context:        encoderContext,
			UseCache:       true,
			Prefill:        prefill,
		}
		if e.gen.StaticCache {
			step.InputIDs = padTokenRows(inputIDs, capacity)
		}

		out, err := e.model.Decode(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("decode step at token %d: %w", tokenCount, err)
		}
		logits := out.Logits
		if len(logits) < n {
			return nil, fmt.Errorf("decode step returned %d logit rows, want at least %d", len(logits), n)
		}
		logits = logits[:n]

		next := make([]int32, n)
		allDone = true
		for i, row := range logits {
			if len(row) == 0 {
				return nil, fmt.Errorf("empty logits for sample %d", i)
			}
			pred := int32(vec.Argmax(row))
			next[i] = pred

			// Samples already finished before this step contribute a zero
			// score; a sample finishing on this step keeps its real score.
			wasDone := state.done[i]
			if wasDone {
				state.scores[i] = append(state.scores[i], 0)
			} else {
				state.scores[i] = append(state.scores[i], e.tokenProbability(row, pred))
				if pred == e.eosTokenID || pred == e.padTokenID {
					state.done[i] = true
				} else {
					state.predictions[i] = append(state.predictions[i], pred)
				}
			}
			if !state.done[i] {
				allDone = false
			}
		}

		tokenCount += stepTokens
		stepTokens = 1

		if allDone {
			break
		}

		// Every sample feeds its latest prediction back in, finished ones
		// included; their output is masked by the done flags above.
		for i := range inputIDs {
			inputIDs[i] = []int32{next[i]}
		}
		lastPos := positions[len(positions)-1]
		positions = []int64{lastPos + 1}
	}

	if !allDone {
		state.truncated = true
		e.logger.Debug("token budget exhausted before all samples finished",
			zap.Int("batch", n),
			zap.Int("max_new_tokens", e.gen.MaxNewTokens))
	}
	return state, nil
}

// tokenProbability returns the softmax probability of the chosen token.
func (e *decodingEngine) tokenProbability(logits []float32, token int32) float32 {
	if cap(e.softmaxBuf) < len(logits) {
		e.softmaxBuf = make([]float32, len(logits))
	}
	probs := e.softmaxBuf[:len(logits)]
	nn.Softmax(logits, probs)
	return probs[token]
}

// padTokenRows pads a token matrix up to capacity rows with zero rows of
// the same sequence length, for models whose cache has a fixed batch
// capacity. The input rows are shared, not copied.
func padTokenRows(rows [][]int32, capacity int) [][]int32 {
	if len(rows) >= capacity {
		return rows[:capacity]
	}
	seqLen := 0
	if len(rows) > 0 {
		seqLen = len(rows[0])
	}
	out := make([][]int32, capacity)
	copy(out, rows)
	for i := len(rows); i < capacity; i++ {
		out[i] = make([]int32, seqLen)
	}
	return out
}

// padEncoderOutput pads the batch axis of an encoder output up to
// capacity with zero rows, or truncates it down to capacity.
func padEncoderOutput(o *backends.EncoderOutput, capacity int) *backends.EncoderOutput {
	batch, seq, hidden := o.Shape[0], o.Shape[1], o.Shape[2]
	if batch == capacity {
		return o
	}
	rowLen := seq * hidden
	padded := &backends.EncoderOutput{
		HiddenStates: make([]float32, capacity*rowLen),
		Shape:        [3]int{capacity, seq, hidden},
	}
	copy(padded.HiddenStates, o.HiddenStates[:min(batch, capacity)*rowLen])
	return padded
}
