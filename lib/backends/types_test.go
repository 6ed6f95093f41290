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

package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceTypeToGPUMode(t *testing.T) {
	tests := []struct {
		device DeviceType
		want   GPUMode
	}{
		{DeviceAuto, GPUModeAuto},
		{DeviceCUDA, GPUModeCuda},
		{DeviceCoreML, GPUModeCoreML},
		{DeviceTPU, GPUModeTpu},
		{DeviceCPU, GPUModeOff},
		{DeviceType("bogus"), GPUModeAuto},
	}

	for _, tt := range tests {
		t.Run(string(tt.device), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.device.ToGPUMode())
		})
	}
}

func TestShape(t *testing.T) {
	s := NewShape(2, 196, 1024)
	assert.Equal(t, "[2 196 1024]", s.String())
	assert.Equal(t, []int{2, 196, 1024}, s.ValuesInt())
}

func TestEncoderOutputBatchLen(t *testing.T) {
	var nilOut *EncoderOutput
	assert.Equal(t, 0, nilOut.BatchLen())

	out := &EncoderOutput{Shape: [3]int{4, 196, 1024}}
	assert.Equal(t, 4, out.BatchLen())
}

func TestDefaultConfigs(t *testing.T) {
	img := DefaultImageConfig()
	assert.Equal(t, 3, img.Channels)
	assert.Positive(t, img.Width)
	assert.Positive(t, img.Height)
	assert.InDelta(t, 1.0/255.0, img.RescaleFactor, 1e-9)

	gen := DefaultGenerationConfig()
	assert.Positive(t, gen.MaxNewTokens)
	assert.Positive(t, gen.EncoderChunkDivisor)
	assert.True(t, gen.StaticCache)
}
