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
	"testing"

	"github.com/antflydb/lector/lib/backends"
	"github.com/stretchr/testify/assert"
)

// stubMemory is a MemoryReader with fixed readings.
type stubMemory struct {
	host   uint64
	device uint64
}

func (m stubMemory) HostAvailableBytes() uint64                   { return m.host }
func (m stubMemory) DeviceFreeBytes(_ backends.DeviceType) uint64 { return m.device }

func TestEstimateBatchSize(t *testing.T) {
	tests := []struct {
		name   string
		memory stubMemory
		device backends.DeviceType
		want   int
	}{
		{
			name:   "no memory information falls back to minimum",
			memory: stubMemory{},
			device: backends.DeviceCPU,
			want:   8,
		},
		{
			name:   "tiny host memory clamps to minimum",
			memory: stubMemory{host: 100 << 20},
			device: backends.DeviceCPU,
			want:   8,
		},
		{
			name:   "huge memory clamps to maximum",
			memory: stubMemory{host: 1 << 40}, // 1 TiB
			device: backends.DeviceCPU,
			want:   512,
		},
		{
			// 4 GiB * 0.8 / 100 MiB = 32.7 -> 32
			name:   "host memory scales linearly",
			memory: stubMemory{host: 4 << 30},
			device: backends.DeviceCPU,
			want:   32,
		},
		{
			// Device reading wins over host when present.
			name:   "device memory preferred over host",
			memory: stubMemory{host: 1 << 40, device: 4 << 30},
			device: backends.DeviceCUDA,
			want:   32,
		},
		{
			// 4.5 GiB * 0.8 / 100 MiB = 36.8 -> 36 -> rounded down to 32.
			name:   "cuda batch rounds down to multiple of 8",
			memory: stubMemory{device: 4608 << 20},
			device: backends.DeviceCUDA,
			want:   32,
		},
		{
			name:   "coreml caps at 64",
			memory: stubMemory{device: 64 << 30},
			device: backends.DeviceCoreML,
			want:   64,
		},
		{
			name:   "cuda device falls back to host when device reads zero",
			memory: stubMemory{host: 4 << 30},
			device: backends.DeviceCUDA,
			want:   32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := NewEstimator(tt.memory, tt.device, nil)
			assert.Equal(t, tt.want, est.EstimateBatchSize())
		})
	}
}

func TestEstimateBatchSizeNeverBelowMinimum(t *testing.T) {
	for _, device := range []backends.DeviceType{backends.DeviceCPU, backends.DeviceCUDA, backends.DeviceCoreML} {
		est := NewEstimator(stubMemory{host: 1}, device, nil)
		got := est.EstimateBatchSize()
		assert.GreaterOrEqual(t, got, 8, "device %s", device)
		assert.LessOrEqual(t, got, 512, "device %s", device)
	}
}
