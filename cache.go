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
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/antflydb/lector/lib/pipelines"
	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RecognitionCacheTTL is the default TTL for cached recognition results
const RecognitionCacheTTL = 2 * time.Minute

// cachedText is one image's cached recognition output.
type cachedText struct {
	Text       string
	Confidence float64
}

// imageRecognizer is the surface the cache wraps; both Recognizer and
// Pool satisfy it.
type imageRecognizer interface {
	Recognize(ctx context.Context, images []image.Image, langs [][]string, batchSize int) ([]string, []float64, error)
}

// CachedRecognizer wraps a recognizer with per-image result caching.
// Identical image bytes with the same language tags hit the cache; only
// the misses go through the model, batched together.
type CachedRecognizer struct {
	inner   imageRecognizer
	model   string
	cache   *ttlcache.Cache[string, cachedText]
	sfGroup *singleflight.Group
	logger  *zap.Logger

	// Metrics
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedRecognizer wraps a recognizer with caching.
func NewCachedRecognizer(
	inner imageRecognizer,
	model string,
	cache *ttlcache.Cache[string, cachedText],
	logger *zap.Logger,
) *CachedRecognizer {
	return &CachedRecognizer{
		inner:   inner,
		model:   model,
		cache:   cache,
		sfGroup: &singleflight.Group{},
		logger:  logger,
	}
}

// RecognizeBytes recognizes encoded images (PNG, JPEG, etc.), serving
// repeated images from the cache. Results are in input order.
func (c *CachedRecognizer) RecognizeBytes(ctx context.Context, images [][]byte, langs [][]string, batchSize int) ([]string, []float64, error) {
	if langs != nil && len(langs) != len(images) {
		return nil, nil, fmt.Errorf("got %d language tag lists for %d images", len(langs), len(images))
	}

	keys := make([]string, len(images))
	texts := make([]string, len(images))
	confidences := make([]float64, len(images))

	var missIdx []int
	for i, data := range images {
		var tags []string
		if langs != nil {
			tags = langs[i]
		}
		keys[i] = c.cacheKey(data, tags)
		if item := c.cache.Get(keys[i]); item != nil {
			c.hits.Add(1)
			RecordCacheHit("recognition")
			texts[i] = item.Value().Text
			confidences[i] = item.Value().Confidence
			continue
		}
		c.misses.Add(1)
		RecordCacheMiss("recognition")
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		c.logger.Debug("Recognition served fully from cache",
			zap.String("model", c.model),
			zap.Int("numImages", len(images)))
		return texts, confidences, nil
	}

	// Deduplicate identical concurrent requests on the missed set.
	sfKey := missSetKey(keys, missIdx)
	result, err, shared := c.sfGroup.Do(sfKey, func() (any, error) {
		missImages := make([]image.Image, len(missIdx))
		var missLangs [][]string
		if langs != nil {
			missLangs = make([][]string, len(missIdx))
		}
		for j, i := range missIdx {
			img, err := pipelines.DecodeImage(images[i])
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			missImages[j] = img
			if langs != nil {
				missLangs[j] = langs[i]
			}
		}

		start := time.Now()
		missTexts, missConfs, err := c.inner.Recognize(ctx, missImages, missLangs, batchSize)
		if err != nil {
			return nil, err
		}
		RecordRequestDuration(c.model, "ok", time.Since(start).Seconds())

		out := make([]cachedText, len(missIdx))
		for j := range missIdx {
			out[j] = cachedText{Text: missTexts[j], Confidence: missConfs[j]}
			c.cache.Set(keys[missIdx[j]], out[j], ttlcache.DefaultTTL)
		}
		c.logger.Debug("Recognition results cached",
			zap.String("model", c.model),
			zap.Int("numImages", len(missIdx)),
			zap.Duration("duration", time.Since(start)))
		return out, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		c.logger.Debug("Singleflight hit for recognition request",
			zap.String("model", c.model))
	}

	for j, res := range result.([]cachedText) {
		texts[missIdx[j]] = res.Text
		confidences[missIdx[j]] = res.Confidence
	}
	return texts, confidences, nil
}

// cacheKey generates a cache key from model + image bytes + language tags.
func (c *CachedRecognizer) cacheKey(data []byte, tags []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(c.model)
	_, _ = h.WriteString("|")
	// SHA256 for image bytes (more collision-resistant)
	imgHash := sha256.Sum256(data)
	_, _ = h.Write(imgHash[:])
	for _, tag := range tags {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(tag)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// missSetKey derives a singleflight key covering exactly the missed images.
func missSetKey(keys []string, missIdx []int) string {
	h := xxhash.New()
	for _, i := range missIdx {
		_, _ = h.WriteString(keys[i])
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// Stats returns cache statistics for this recognizer
func (c *CachedRecognizer) Stats() RecognizerCacheStats {
	return RecognizerCacheStats{
		Model:  c.model,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// RecognizerCacheStats holds cache statistics for a recognizer
type RecognizerCacheStats struct {
	Model  string `json:"model"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// ResultCache manages the shared TTL cache behind cached recognizers.
type ResultCache struct {
	cache  *ttlcache.Cache[string, cachedText]
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewResultCache creates a new recognition result cache.
func NewResultCache(logger *zap.Logger) *ResultCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, cachedText](RecognitionCacheTTL),
	)
	go cache.Start()

	ctx, cancel := context.WithCancel(context.Background())
	rc := &ResultCache{
		cache:  cache,
		logger: logger,
		cancel: cancel,
	}
	go rc.logStats(ctx)
	return rc
}

// WrapRecognizer wraps a recognizer with caching.
func (rc *ResultCache) WrapRecognizer(inner imageRecognizer, model string) *CachedRecognizer {
	return NewCachedRecognizer(inner, model, rc.cache, rc.logger.Named(model))
}

// Close stops the cache
func (rc *ResultCache) Close() {
	rc.cancel()
	rc.cache.Stop()
}

// logStats logs cache statistics periodically
func (rc *ResultCache) logStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := rc.cache.Metrics()
			if metrics.Hits > 0 || metrics.Misses > 0 {
				total := metrics.Hits + metrics.Misses
				hitRate := float64(metrics.Hits) / float64(total) * 100
				rc.logger.Info("Recognition cache stats",
					zap.Uint64("hits", metrics.Hits),
					zap.Uint64("misses", metrics.Misses),
					zap.Float64("hit_rate_pct", hitRate),
					zap.Int("items", rc.cache.Len()))
			}
		}
	}
}
