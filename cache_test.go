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

package lector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRecognizer answers with "w<width>" per image so tests can tell
// which images reached the model and in what order.
type stubRecognizer struct {
	calls      int
	seenWidths [][]int
}

func (s *stubRecognizer) Recognize(ctx context.Context, images []image.Image, langs [][]string, batchSize int) ([]string, []float64, error) {
	s.calls++
	texts := make([]string, len(images))
	confs := make([]float64, len(images))
	widths := make([]int, len(images))
	for i, img := range images {
		widths[i] = img.Bounds().Dx()
		texts[i] = fmt.Sprintf("w%d", widths[i])
		confs[i] = 0.9
	}
	s.seenWidths = append(s.seenWidths, widths)
	return texts, confs, nil
}

func pngBytes(t *testing.T, width int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestCache(t *testing.T, inner imageRecognizer) *CachedRecognizer {
	t.Helper()
	rc := NewResultCache(zap.NewNop())
	t.Cleanup(rc.Close)
	return rc.WrapRecognizer(inner, "test-model")
}

func TestCachedRecognizerCachesResults(t *testing.T) {
	stub := &stubRecognizer{}
	cached := newTestCache(t, stub)

	images := [][]byte{pngBytes(t, 10), pngBytes(t, 20)}

	texts, confs, err := cached.RecognizeBytes(context.Background(), images, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w10", "w20"}, texts)
	assert.Equal(t, []float64{0.9, 0.9}, confs)
	assert.Equal(t, 1, stub.calls)

	// The repeat request never reaches the model.
	texts, confs, err = cached.RecognizeBytes(context.Background(), images, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w10", "w20"}, texts)
	assert.Equal(t, []float64{0.9, 0.9}, confs)
	assert.Equal(t, 1, stub.calls)

	stats := cached.Stats()
	assert.Equal(t, "test-model", stats.Model)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestCachedRecognizerPartialMiss(t *testing.T) {
	stub := &stubRecognizer{}
	cached := newTestCache(t, stub)

	seed := [][]byte{pngBytes(t, 10)}
	_, _, err := cached.RecognizeBytes(context.Background(), seed, nil, 0)
	require.NoError(t, err)

	// One cached image, one new; only the miss goes to the model and
	// results still come back in input order.
	mixed := [][]byte{pngBytes(t, 30), pngBytes(t, 10)}
	texts, _, err := cached.RecognizeBytes(context.Background(), mixed, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w30", "w10"}, texts)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, []int{30}, stub.seenWidths[1])
}

func TestCachedRecognizerLangsAffectKey(t *testing.T) {
	stub := &stubRecognizer{}
	cached := newTestCache(t, stub)

	images := [][]byte{pngBytes(t, 10)}
	_, _, err := cached.RecognizeBytes(context.Background(), images, [][]string{{"en"}}, 0)
	require.NoError(t, err)

	// Same bytes with different tags is a distinct cache entry.
	_, _, err = cached.RecognizeBytes(context.Background(), images, [][]string{{"fr"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)

	_, _, err = cached.RecognizeBytes(context.Background(), images, [][]string{{"en"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestCachedRecognizerLangsLengthMismatch(t *testing.T) {
	cached := newTestCache(t, &stubRecognizer{})

	_, _, err := cached.RecognizeBytes(context.Background(), [][]byte{pngBytes(t, 10)}, [][]string{{"en"}, {"fr"}}, 0)
	assert.Error(t, err)
}

func TestCachedRecognizerBadImage(t *testing.T) {
	stub := &stubRecognizer{}
	cached := newTestCache(t, stub)

	_, _, err := cached.RecognizeBytes(context.Background(), [][]byte{[]byte("not an image")}, nil, 0)
	require.Error(t, err)
	assert.Zero(t, stub.calls)
}
