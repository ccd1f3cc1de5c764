// Package devicesched selects a CPU or GPU device per stage per a
// configured policy, with GPU availability driven by a placeholder
// environment probe.
package devicesched

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Policy is the device-selection policy a pipeline run is configured with.
type Policy string

// Supported policies.
const (
	PolicyAuto         Policy = "auto"
	PolicyCPUOnly      Policy = "cpu_only"
	PolicyGPUPreferred Policy = "gpu_preferred"
)

// Device is the concrete device a stage is asked to run on.
type Device string

// Supported devices.
const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// Scheduler selects a device for a named stage given a configured policy and
// detected GPU availability.
type Scheduler struct {
	policy      Policy
	gpuDetected bool
	logger      *slog.Logger
}

// New builds a Scheduler for the given policy, detecting GPU availability
// once at construction time.
func New(policy Policy, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		policy:      policy,
		gpuDetected: detectGPU(),
		logger:      logger,
	}
}

// GPUAvailable reports whether a GPU was detected available.
func (s *Scheduler) GPUAvailable() bool {
	return s.gpuDetected
}

// SelectDevice returns the requested device for stageName under the
// scheduler's policy. stageName is accepted for symmetry with a possible
// future per-stage affinity policy (see the design note below) but is not
// currently consulted.
//
// Design note: a "promote to GPU" branch that would retry a stage on GPU
// after starting it on CPU is deliberately not present here. In the
// reference implementation that branch already cannot be reached, since
// SelectDevice returns GPU whenever one is available; either remove the
// concept entirely or give policies real per-stage affinity. See
// SPEC_FULL.md §9.
func (s *Scheduler) SelectDevice(stageName string) Device {
	switch s.policy {
	case PolicyCPUOnly:
		return DeviceCPU
	case PolicyGPUPreferred, PolicyAuto:
		if s.gpuDetected {
			return DeviceGPU
		}
		if counts, err := cpu.Counts(true); err == nil {
			s.logger.Debug("falling back to cpu device",
				slog.String("stage", stageName),
				slog.Int("logical_cpus", counts),
			)
		}
		return DeviceCPU
	default:
		return DeviceCPU
	}
}

// detectGPU is a placeholder heuristic; a real implementation would query
// CUDA/Metal/Vulkan. BUNKER_FORCE_GPU=1 (or a case-insensitive "true")
// forces GPU-available.
func detectGPU() bool {
	v, ok := os.LookupEnv("BUNKER_FORCE_GPU")
	if !ok {
		return false
	}
	return v == "1" || strings.EqualFold(v, "true")
}

// SupportsDevice is a predicate helper shared by stages that only support a
// fixed subset of devices.
func SupportsDevice(supported []Device, d Device) bool {
	for _, sd := range supported {
		if sd == d {
			return true
		}
	}
	return false
}
