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
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// MemoryReader reports available host and accelerator memory. It exists as
// an interface so batch sizing can be driven by stubbed readings in tests
// instead of sampling a real, uncontrolled system.
type MemoryReader interface {
	// HostAvailableBytes returns the available system memory in bytes,
	// or 0 if it cannot be determined.
	HostAvailableBytes() uint64

	// DeviceFreeBytes returns the free memory of the given accelerator in
	// bytes, or 0 if it cannot be determined. CoreML-class devices do not
	// expose memory info; they are estimated as a fraction of host memory.
	DeviceFreeBytes(device DeviceType) uint64
}

// coreMLHostFraction estimates usable unified memory on Apple devices,
// which expose no accelerator memory counters.
const coreMLHostFraction = 0.7

// systemMemoryReader reads live memory state from the OS.
type systemMemoryReader struct{}

// SystemMemory returns a MemoryReader backed by the running system.
func SystemMemory() MemoryReader {
	return systemMemoryReader{}
}

func (systemMemoryReader) HostAvailableBytes() uint64 {
	if runtime.GOOS == "linux" {
		return linuxAvailableBytes()
	}
	// No portable "available" counter elsewhere; callers degrade to their
	// minimum batch size when this returns 0.
	return 0
}

func (r systemMemoryReader) DeviceFreeBytes(device DeviceType) uint64 {
	switch device {
	case DeviceCUDA:
		return cudaFreeMemoryBytes()
	case DeviceCoreML:
		host := r.HostAvailableBytes()
		return uint64(float64(host) * coreMLHostFraction)
	default:
		return 0
	}
}

// linuxAvailableBytes parses MemAvailable from /proc/meminfo.
func linuxAvailableBytes() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb << 10
	}
	return 0
}

// DetectDevice maps the detected accelerator to a DeviceType.
func DetectDevice() DeviceType {
	info := DetectGPU()
	if !info.Available {
		return DeviceCPU
	}
	switch info.Type {
	case "cuda":
		return DeviceCUDA
	case "coreml":
		return DeviceCoreML
	case "tpu":
		return DeviceTPU
	default:
		return DeviceCPU
	}
}
