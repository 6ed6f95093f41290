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
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

var (
	gpuAvailable     bool
	gpuAvailableOnce sync.Once
	gpuInfo          GPUInfo
)

// DetectGPU checks if GPU acceleration is available.
// Results are cached after the first call.
func DetectGPU() GPUInfo {
	gpuAvailableOnce.Do(func() {
		gpuInfo = detectGPUImpl()
		gpuAvailable = gpuInfo.Available
	})
	return gpuInfo
}

// IsGPUAvailable returns true if GPU acceleration is available.
func IsGPUAvailable() bool {
	DetectGPU()
	return gpuAvailable
}

// detectGPUImpl performs actual GPU detection based on platform.
func detectGPUImpl() GPUInfo {
	// Check for TPU first (GKE TPU nodes)
	if tpuInfo := detectTPU(); tpuInfo.Available {
		return tpuInfo
	}

	switch runtime.GOOS {
	case "darwin":
		// macOS always has CoreML available (Apple Silicon or Intel with ANE)
		return GPUInfo{
			Available: true,
			Type:      "coreml",
		}
	case "linux", "windows":
		return detectCUDA()
	default:
		return GPUInfo{Available: false, Type: "none"}
	}
}

// detectTPU checks for Google Cloud TPU availability.
func detectTPU() GPUInfo {
	info := GPUInfo{Type: "none"}

	if backend := os.Getenv("GOMLX_BACKEND"); strings.Contains(strings.ToLower(backend), "tpu") {
		info.Available = true
		info.Type = "tpu"
		info.DeviceName = "TPU (via GOMLX_BACKEND)"
		return info
	}

	if tpuLibsExist() {
		info.Available = true
		info.Type = "tpu"
		info.DeviceName = "TPU (libtpu.so detected)"
		return info
	}

	// GKE TPU nodes have /dev/accel* devices
	if matches, _ := filepath.Glob("/dev/accel*"); len(matches) > 0 {
		info.Available = true
		info.Type = "tpu"
		info.DeviceName = "TPU (GKE TPU node)"
		return info
	}

	return info
}

// tpuLibsExist checks if TPU libraries are present.
func tpuLibsExist() bool {
	tpuPaths := []string{
		"/usr/local/lib",
		"/usr/lib",
	}

	if pjrtPath := os.Getenv("PJRT_PLUGIN_LIBRARY_PATH"); pjrtPath != "" {
		tpuPaths = append([]string{pjrtPath}, tpuPaths...)
	}
	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		tpuPaths = append(strings.Split(ldPath, ":"), tpuPaths...)
	}

	for _, dir := range tpuPaths {
		if matches, _ := filepath.Glob(filepath.Join(dir, "libtpu.so*")); len(matches) > 0 {
			return true
		}
	}

	return false
}

// detectCUDA checks for NVIDIA CUDA availability.
func detectCUDA() GPUInfo {
	info := GPUInfo{Type: "none"}

	if nvidiaInfo := tryNvidiaSMI(); nvidiaInfo.Available {
		return nvidiaInfo
	}

	if cudaLibsExist() {
		info.Available = true
		info.Type = "cuda"
		info.DeviceName = "CUDA (libraries detected)"
		return info
	}

	return info
}

// tryNvidiaSMI attempts to run nvidia-smi to detect GPU.
func tryNvidiaSMI() GPUInfo {
	info := GPUInfo{Type: "none"}

	nvidiaSMI, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return info
	}

	cmd := exec.Command(nvidiaSMI, "--query-gpu=name,driver_version", "--format=csv,noheader,nounits") //nolint:gosec // G204: nvidiaSMI path comes from LookPath("nvidia-smi")
	output, err := cmd.Output()
	if err != nil {
		return info
	}

	// Parse output (format: "GPU Name, Driver Version")
	parts := strings.Split(strings.TrimSpace(string(output)), ", ")
	info.Available = true
	info.Type = "cuda"
	if len(parts) >= 1 {
		info.DeviceName = strings.TrimSpace(parts[0])
	}
	if len(parts) >= 2 {
		info.DriverVer = strings.TrimSpace(parts[1])
	}

	cmd = exec.Command(nvidiaSMI, "--query-gpu=compute_cap", "--format=csv,noheader,nounits") //nolint:gosec // G204: nvidiaSMI path comes from LookPath("nvidia-smi")
	if output, err := cmd.Output(); err == nil {
		info.CUDAVersion = strings.TrimSpace(string(output))
	}

	return info
}

// cudaFreeMemoryBytes queries the free memory of the first CUDA device.
// Returns 0 if the query fails.
func cudaFreeMemoryBytes() uint64 {
	nvidiaSMI, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return 0
	}

	cmd := exec.Command(nvidiaSMI, "--query-gpu=memory.free", "--format=csv,noheader,nounits") //nolint:gosec // G204: nvidiaSMI path comes from LookPath("nvidia-smi")
	output, err := cmd.Output()
	if err != nil {
		return 0
	}

	// First line is device 0; value is in MiB.
	line := strings.TrimSpace(strings.SplitN(string(output), "\n", 2)[0])
	mib, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0
	}
	return mib << 20
}

// cudaLibsExist checks if CUDA libraries are present.
func cudaLibsExist() bool {
	cudaPaths := []string{
		"/usr/local/cuda/lib64",
		"/usr/lib/x86_64-linux-gnu",
		"/usr/lib64",
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		cudaPaths = append(strings.Split(ldPath, ":"), cudaPaths...)
	}

	for _, dir := range cudaPaths {
		matches, _ := filepath.Glob(filepath.Join(dir, "libcudart.so*"))
		if len(matches) > 0 {
			return true
		}
	}

	return false
}

// ShouldUseGPU determines if GPU should be used based on mode and availability.
func ShouldUseGPU(mode GPUMode) bool {
	switch mode {
	case GPUModeOff:
		return false
	case GPUModeTpu, GPUModeCuda, GPUModeCoreML:
		return true // Force specific accelerator, will fail at runtime if unavailable
	case GPUModeAuto, "":
		return IsGPUAvailable()
	default:
		return IsGPUAvailable()
	}
}
