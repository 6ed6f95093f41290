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

// Package backends provides the low-level substrate for text-recognition
// inference: session creation over ONNX Runtime, accelerator detection,
// and host/device memory introspection.
//
// Higher-level model types (the recognition model, the decoding engine)
// are built on top of Session in the pipelines and recognition packages.
package backends

import "fmt"

// BackendType identifies the inference backend.
type BackendType string

const (
	// BackendONNX is the ONNX Runtime backend - fast CPU/GPU inference.
	// Requires -tags="onnx,ORT".
	BackendONNX BackendType = "onnx"

	// BackendNone means no accelerated backend is compiled in.
	BackendNone BackendType = "none"
)

// DeviceType identifies the hardware device for inference.
type DeviceType string

const (
	// DeviceAuto auto-detects the best available device (default)
	DeviceAuto DeviceType = "auto"

	// DeviceCUDA uses NVIDIA CUDA GPU
	DeviceCUDA DeviceType = "cuda"

	// DeviceCoreML uses Apple CoreML (macOS only)
	DeviceCoreML DeviceType = "coreml"

	// DeviceTPU uses Google TPU
	DeviceTPU DeviceType = "tpu"

	// DeviceCPU forces CPU-only inference
	DeviceCPU DeviceType = "cpu"
)

// GPUMode controls how GPU acceleration is enabled.
type GPUMode string

const (
	GPUModeAuto   GPUMode = "auto"   // Auto-detect GPU availability
	GPUModeTpu    GPUMode = "tpu"    // Force TPU
	GPUModeCuda   GPUMode = "cuda"   // Force CUDA
	GPUModeCoreML GPUMode = "coreml" // Force CoreML (macOS only)
	GPUModeOff    GPUMode = "off"    // CPU only
)

// ToGPUMode converts DeviceType to GPUMode.
func (d DeviceType) ToGPUMode() GPUMode {
	switch d {
	case DeviceAuto:
		return GPUModeAuto
	case DeviceCUDA:
		return GPUModeCuda
	case DeviceCoreML:
		return GPUModeCoreML
	case DeviceTPU:
		return GPUModeTpu
	case DeviceCPU:
		return GPUModeOff
	default:
		return GPUModeAuto
	}
}

// GPUInfo contains information about the detected accelerator.
type GPUInfo struct {
	Available   bool   `json:"available"`
	Type        string `json:"type"` // "cuda", "coreml", "tpu", "none"
	DeviceName  string `json:"device_name,omitempty"`
	DriverVer   string `json:"driver_version,omitempty"`
	CUDAVersion string `json:"cuda_version,omitempty"`
}

// Shape represents tensor dimensions.
type Shape []int64

// String returns a string representation of the shape.
func (s Shape) String() string {
	return fmt.Sprintf("%v", []int64(s))
}

// ValuesInt converts the shape to an int slice.
func (s Shape) ValuesInt() []int {
	result := make([]int, len(s))
	for i, d := range s {
		result[i] = int(d)
	}
	return result
}

// NewShape returns a Shape with the given dimensions.
func NewShape(dimensions ...int64) Shape {
	return dimensions
}

// EncoderOutput holds the output of a vision or text-context encoder.
type EncoderOutput struct {
	// HiddenStates are the encoder's hidden states, flattened.
	// For vision encoders: [batch, num_patches, hidden]
	// For text-context encoders: [batch, query_tokens, hidden]
	HiddenStates []float32
	// Shape holds the tensor dimensions [batch, seq, hidden].
	Shape [3]int
}

// BatchLen returns the batch-axis length.
func (o *EncoderOutput) BatchLen() int {
	if o == nil {
		return 0
	}
	return o.Shape[0]
}

// DecoderConfig holds decoder configuration for generation.
type DecoderConfig struct {
	// VocabSize is the size of the vocabulary.
	VocabSize int
	// MaxLength is the maximum generation length.
	MaxLength int
	// EOSTokenID is the end-of-sequence token ID.
	EOSTokenID int32
	// PadTokenID is the padding token ID.
	PadTokenID int32
	// DecoderStartTokenID is the token ID to start decoding with.
	DecoderStartTokenID int32
	// NumLayers is the number of decoder layers.
	NumLayers int
	// NumHeads is the number of attention heads per layer.
	NumHeads int
	// HeadDim is the dimension of each attention head.
	HeadDim int
}

// ImageConfig holds configuration for image preprocessing.
type ImageConfig struct {
	// Width is the target image width.
	Width int
	// Height is the target image height.
	Height int
	// Channels is the number of color channels (typically 3 for RGB).
	Channels int
	// Mean is the per-channel mean for normalization.
	Mean [3]float32
	// Std is the per-channel standard deviation for normalization.
	Std [3]float32
	// RescaleFactor scales pixel values (e.g., 1/255 to convert 0-255 to 0-1).
	RescaleFactor float32
}

// DefaultImageConfig returns sensible defaults for recognition encoders.
func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		Width:         896,
		Height:        196,
		Channels:      3,
		Mean:          [3]float32{0.5, 0.5, 0.5},
		Std:           [3]float32{0.5, 0.5, 0.5},
		RescaleFactor: 1.0 / 255.0,
	}
}

// GenerationConfig holds parameters for the decoding loop.
type GenerationConfig struct {
	// MaxNewTokens is the token budget per batch. A batch that exhausts the
	// budget before every sample emits eos/pad is truncated, not failed.
	MaxNewTokens int
	// EncoderChunkDivisor bounds peak memory during encoding: the encoder
	// runs over sub-chunks of batchSize/EncoderChunkDivisor + 1 images.
	EncoderChunkDivisor int
	// StaticCache indicates the model's cache has a fixed batch capacity,
	// requiring inputs to be padded up to that capacity on every step.
	StaticCache bool
}

// DefaultGenerationConfig returns sensible defaults for recognition.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		MaxNewTokens:        175,
		EncoderChunkDivisor: 2,
		StaticCache:         true,
	}
}
