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

// Package lector provides batched OCR text recognition over
// encoder-decoder models: a pooled recognizer with memory-aware batch
// sizing, result caching, and Prometheus metrics.
package lector

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/antflydb/lector/lib/backends"
	"github.com/antflydb/lector/lib/pipelines"
	"github.com/antflydb/lector/lib/postprocess"
	"github.com/antflydb/lector/lib/recognition"
	"go.uber.org/zap"
)

// Config holds configuration for creating a Service.
type Config struct {
	// ModelPath is the path to the recognition model directory.
	ModelPath string

	// PoolSize is the number of concurrent recognizers
	// (0 = auto-detect from CPU count).
	PoolSize int

	// BatchSize pins the recognition batch size
	// (0 = derive from free memory per request).
	BatchSize int

	// MaxNewTokens overrides the per-batch token budget (0 = default).
	MaxNewTokens int

	// Device selects the execution device (empty = auto-detect).
	Device backends.DeviceType

	// NumThreads for inference sessions (0 = auto).
	NumThreads int

	// DisableCache turns off result caching.
	DisableCache bool

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// Service is the top-level recognition service: a pool of recognizers
// behind a result cache, with metrics recorded per request.
type Service struct {
	cfg       *Config
	modelName string
	pool      *recognition.Pool
	estimator *recognition.BatchSizeEstimator
	cache     *ResultCache
	cached    *CachedRecognizer
	logger    *zap.Logger
}

// New creates a Service from the given configuration. It loads one model
// instance per pool slot using the best available backend.
func New(cfg *Config) (*Service, error) {
	if cfg == nil || cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	factory, err := backends.DefaultSessionFactory()
	if err != nil {
		return nil, fmt.Errorf("resolving inference backend: %w", err)
	}

	device := cfg.Device
	if device == "" || device == backends.DeviceAuto {
		device = backends.DetectDevice()
	}
	logger.Info("Selected execution device",
		zap.String("device", string(device)),
		zap.String("backend", string(factory.Backend())))

	gen := backends.DefaultGenerationConfig()
	if cfg.MaxNewTokens > 0 {
		gen.MaxNewTokens = cfg.MaxNewTokens
	}

	modelName := filepath.Base(cfg.ModelPath)
	sessionOpts := []backends.SessionOption{
		backends.WithSessionThreads(cfg.NumThreads),
		backends.WithSessionGPUMode(device.ToGPUMode()),
	}
	estimator := recognition.NewEstimator(nil, device, logger)

	pool, err := recognition.NewPool(
		&recognition.PoolConfig{PoolSize: cfg.PoolSize, Logger: logger},
		func() (*recognition.Recognizer, error) {
			start := time.Now()
			model, err := pipelines.LoadRecognitionModel(cfg.ModelPath, factory, sessionOpts...)
			if err != nil {
				return nil, fmt.Errorf("loading model from %s: %w", cfg.ModelPath, err)
			}
			RecordModelLoadDuration(modelName, time.Since(start).Seconds())

			tok, err := pipelines.LoadTokenizer(cfg.ModelPath)
			if err != nil {
				_ = model.Close()
				return nil, err
			}
			modelConfig, err := pipelines.LoadRecognitionModelConfig(cfg.ModelPath)
			if err != nil {
				_ = model.Close()
				return nil, err
			}
			rtok, err := pipelines.NewRecognitionTokenizer(tok, model.DecoderConfig(), modelConfig.LangTokens)
			if err != nil {
				_ = model.Close()
				return nil, err
			}

			pre := pipelines.NewPreprocessor(modelConfig.ImageConfig, rtok)
			return recognition.New(model, rtok, pre,
				recognition.WithLogger(logger),
				recognition.WithGenerationConfig(gen),
				recognition.WithEstimator(estimator),
				recognition.WithPostprocessor(postprocess.Processor{}),
			), nil
		},
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		modelName: modelName,
		pool:      pool,
		estimator: estimator,
		logger:    logger,
	}
	if !cfg.DisableCache {
		s.cache = NewResultCache(logger)
		s.cached = s.cache.WrapRecognizer(pool, modelName)
	}
	return s, nil
}

// Recognize runs recognition over decoded images with optional per-image
// language tags. Results are in input order. Decoded images bypass the
// result cache; use RecognizeBytes for cached recognition.
func (s *Service) Recognize(ctx context.Context, images []image.Image, langs [][]string) ([]string, []float64, error) {
	if langs != nil && len(langs) != len(images) {
		return nil, nil, fmt.Errorf("got %d language tag lists for %d images", len(langs), len(images))
	}
	requests := make([]recognition.Request, len(images))
	for i, img := range images {
		requests[i] = recognition.Request{Image: img}
		if langs != nil {
			requests[i].Langs = langs[i]
		}
	}

	RecordRecognitionRequest(s.modelName)
	batchSize := s.batchSize()
	start := time.Now()
	results, err := s.pool.RecognizeRequests(ctx, requests, batchSize)
	if err != nil {
		RecordRequestDuration(s.modelName, "error", time.Since(start).Seconds())
		return nil, nil, err
	}
	RecordRequestDuration(s.modelName, "ok", time.Since(start).Seconds())
	RecordImageRecognition(s.modelName, len(images))

	texts := make([]string, len(results))
	confidences := make([]float64, len(results))
	tokens, truncated := 0, 0
	for i, res := range results {
		texts[i] = res.Text
		confidences[i] = res.Confidence
		tokens += res.TokenCount
		if res.Truncated {
			truncated++
		}
	}
	RecordTokenGeneration(s.modelName, tokens)
	if truncated > 0 {
		RecordTruncatedSamples(s.modelName, truncated)
	}
	return texts, confidences, nil
}

// batchSize resolves the batch size for a request: the configured value
// when pinned, otherwise an estimate from free memory right now.
func (s *Service) batchSize() int {
	size := s.cfg.BatchSize
	if size <= 0 {
		size = s.estimator.EstimateBatchSize()
	}
	RecordPlannedBatchSize(size)
	return size
}

// RecognizeBytes runs recognition over encoded images (PNG, JPEG, etc.),
// serving repeated images from the result cache when enabled.
func (s *Service) RecognizeBytes(ctx context.Context, images [][]byte, langs [][]string) ([]string, []float64, error) {
	if s.cached != nil {
		RecordRecognitionRequest(s.modelName)
		texts, confidences, err := s.cached.RecognizeBytes(ctx, images, langs, s.batchSize())
		if err != nil {
			return nil, nil, err
		}
		RecordImageRecognition(s.modelName, len(images))
		return texts, confidences, nil
	}

	decoded := make([]image.Image, len(images))
	for i, data := range images {
		img, err := pipelines.DecodeImage(data)
		if err != nil {
			return nil, nil, fmt.Errorf("image %d: %w", i, err)
		}
		decoded[i] = img
	}
	return s.Recognize(ctx, decoded, langs)
}

// CacheStats returns result cache statistics, or zero stats when the
// cache is disabled.
func (s *Service) CacheStats() RecognizerCacheStats {
	if s.cached == nil {
		return RecognizerCacheStats{Model: s.modelName}
	}
	return s.cached.Stats()
}

// Close releases the pool and cache.
func (s *Service) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.pool.Close()
}
