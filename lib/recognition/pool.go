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
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool manages multiple Recognizer instances for concurrent recognition.
// Model sessions are not safe for concurrent use, so each request acquires
// a slot via semaphore and is routed to a recognizer round-robin.
type Pool struct {
	recognizers []*Recognizer
	sem         *semaphore.Weighted
	next        atomic.Uint64
	logger      *zap.Logger
	poolSize    int
}

// PoolConfig holds configuration for creating a Pool.
type PoolConfig struct {
	// PoolSize is the number of concurrent recognizers
	// (0 = auto-detect from CPU count, capped at 4).
	PoolSize int

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// NewPool creates a pool by calling factory once per slot. On factory
// failure it closes the recognizers already created.
func NewPool(cfg *PoolConfig, factory func() (*Recognizer, error)) (*Pool, error) {
	if cfg == nil {
		cfg = &PoolConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = min(runtime.NumCPU(), 4)
	}

	recognizers := make([]*Recognizer, poolSize)
	for i := 0; i < poolSize; i++ {
		rec, err := factory()
		if err != nil {
			for j := 0; j < i; j++ {
				_ = recognizers[j].model.Close()
			}
			return nil, fmt.Errorf("creating recognizer %d: %w", i, err)
		}
		recognizers[i] = rec
	}

	logger.Info("Created recognizer pool", zap.Int("poolSize", poolSize))
	return &Pool{
		recognizers: recognizers,
		sem:         semaphore.NewWeighted(int64(poolSize)),
		logger:      logger,
		poolSize:    poolSize,
	}, nil
}

// Recognize acquires a slot and runs recognition on one of the pooled
// recognizers. Results are in input order.
func (p *Pool) Recognize(ctx context.Context, images []image.Image, langs [][]string, batchSize int) ([]string, []float64, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquiring recognizer slot: %w", err)
	}
	defer p.sem.Release(1)

	idx := p.next.Add(1) - 1
	rec := p.recognizers[idx%uint64(p.poolSize)]

	texts, confidences, err := rec.Recognize(ctx, images, langs, batchSize)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Debug("Recognition completed",
		zap.Int("numImages", len(images)),
		zap.Int("batchSize", batchSize))
	return texts, confidences, nil
}

// RecognizeRequests is Recognize with per-result detail, acquiring a slot
// the same way.
func (p *Pool) RecognizeRequests(ctx context.Context, requests []Request, batchSize int) ([]Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring recognizer slot: %w", err)
	}
	defer p.sem.Release(1)

	idx := p.next.Add(1) - 1
	rec := p.recognizers[idx%uint64(p.poolSize)]
	return rec.RecognizeRequests(ctx, requests, batchSize)
}

// Close releases all pooled recognizers' model resources.
func (p *Pool) Close() error {
	p.logger.Info("Closing recognizer pool", zap.Int("poolSize", p.poolSize))

	var errs []error
	for i, rec := range p.recognizers {
		if rec != nil {
			if err := rec.model.Close(); err != nil {
				p.logger.Warn("Error closing recognizer",
					zap.Int("index", i),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing pool: %v", errs)
	}
	return nil
}
