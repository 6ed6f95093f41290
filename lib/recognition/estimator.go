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
	"github.com/antflydb/lector/lib/backends"
	"go.uber.org/zap"
)

const (
	// minBatchSize is the floor returned even on hosts with almost no
	// reported memory, and the fallback when introspection fails.
	minBatchSize = 8

	// maxBatchSize caps the planned batch regardless of free memory.
	maxBatchSize = 512

	// perSampleBytes is the working-set estimate for one sample going
	// through the encoder and cached decoder (~0.1 GiB).
	perSampleBytes = 100 << 20

	// memorySafetyMargin is the fraction of free memory the estimator is
	// allowed to plan against; the rest is slack for allocator overhead
	// and fragmentation.
	memorySafetyMargin = 0.8

	// cudaBatchAlign keeps CUDA batches a multiple of 8 so tensor-core
	// kernels stay on their fast paths.
	cudaBatchAlign = 8

	// coreMLMaxBatch caps batches on CoreML, where large batches degrade
	// rather than improve throughput.
	coreMLMaxBatch = 64
)

// BatchSizeEstimator derives a batch size from live free memory on the
// selected execution device. A zero value is unusable; use NewEstimator.
type BatchSizeEstimator struct {
	memory backends.MemoryReader
	device backends.DeviceType
	logger *zap.Logger
}

// NewEstimator builds an estimator for the given device. A nil reader
// falls back to system memory introspection.
func NewEstimator(memory backends.MemoryReader, device backends.DeviceType, logger *zap.Logger) *BatchSizeEstimator {
	if memory == nil {
		memory = backends.SystemMemory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchSizeEstimator{memory: memory, device: device, logger: logger}
}

// EstimateBatchSize returns a batch size derived from free memory on the
// estimator's device, clamped to [8, 512]. It never fails: when memory
// introspection returns nothing the minimum batch size is used so the
// pipeline degrades to small batches instead of erroring out.
func (e *BatchSizeEstimator) EstimateBatchSize() int {
	free := e.memory.DeviceFreeBytes(e.device)
	if free == 0 {
		free = e.memory.HostAvailableBytes()
	}
	if free == 0 {
		e.logger.Warn("memory introspection unavailable, using minimum batch size",
			zap.Int("batch_size", minBatchSize))
		return minBatchSize
	}

	usable := uint64(float64(free) * memorySafetyMargin)
	size := int(usable / perSampleBytes)

	if size < minBatchSize {
		size = minBatchSize
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}

	switch e.device {
	case backends.DeviceCUDA:
		if aligned := (size / cudaBatchAlign) * cudaBatchAlign; aligned >= minBatchSize {
			size = aligned
		}
	case backends.DeviceCoreML:
		if size > coreMLMaxBatch {
			size = coreMLMaxBatch
		}
	}

	e.logger.Debug("estimated batch size",
		zap.Uint64("free_bytes", free),
		zap.String("device", string(e.device)),
		zap.Int("batch_size", size))
	return size
}
