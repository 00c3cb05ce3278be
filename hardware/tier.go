package hardware

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// Tier buckets the host into a capability class that fixes the default
// model and worker concurrency for the process lifetime.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
	TierUltra  Tier = "ultra"
)

// DecodeParams are the transcription decoding knobs derived from the
// tier. Beam size stays at 1 on every tier: speed over accuracy.
type DecodeParams struct {
	BeamSize int
	Threads  int
}

// Profile is the immutable hardware configuration computed once at
// startup.
type Profile struct {
	Tier         Tier
	DefaultModel string
	MaxWorkers   int
	Decode       DecodeParams
	HasAccel     bool
	MemoryGB     float64
	Cores        int
}

// Detect inspects the host and derives the profile. Measurement failures
// fall through to the lowest tier; there is no error path.
func Detect() Profile {
	memGB := totalMemoryGB()
	cores := runtime.NumCPU()
	return Resolve(memGB, cores, hasAccelerator())
}

// Resolve maps measured resources to a profile. Split out from Detect so
// the threshold table is testable without the host probes.
func Resolve(memGB float64, cores int, accel bool) Profile {
	if cores < 1 {
		cores = 1
	}

	p := Profile{
		HasAccel: accel,
		MemoryGB: memGB,
		Cores:    cores,
	}

	switch {
	case memGB <= 4:
		p.Tier, p.DefaultModel, p.MaxWorkers = TierLow, "tiny", 1
	case memGB <= 8:
		p.Tier, p.DefaultModel, p.MaxWorkers = TierMedium, "base", min(2, cores)
	case memGB <= 16:
		p.Tier, p.DefaultModel, p.MaxWorkers = TierHigh, "small", min(4, cores)
	default:
		p.Tier, p.DefaultModel, p.MaxWorkers = TierUltra, "medium", min(8, cores)
	}

	threads := cores / 2
	if threads < 1 {
		threads = 1
	}
	p.Decode = DecodeParams{BeamSize: 1, Threads: threads}
	return p
}

// Recommended returns the model suggestion for a tier, used by the
// models endpoint.
func Recommended(t Tier) []string {
	switch t {
	case TierLow:
		return []string{"tiny"}
	case TierMedium:
		return []string{"base"}
	case TierHigh:
		return []string{"small"}
	case TierUltra:
		return []string{"medium"}
	default:
		return []string{"small"}
	}
}

// totalMemoryGB reads total RAM via sysinfo. Returns 0 on failure, which
// Resolve treats as the lowest tier.
func totalMemoryGB() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return float64(info.Totalram) * float64(info.Unit) / (1 << 30)
}

// hasAccelerator reports whether an NVIDIA GPU is visible. Best-effort:
// any failure means no accelerator.
func hasAccelerator() bool {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, path, "-L").Run() == nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
