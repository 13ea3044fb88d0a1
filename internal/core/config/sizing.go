package config

// =============================================================================
// Fargate Task Sizes
// =============================================================================

// SizeTier is a CPU setting and the memory range Fargate accepts with it.
type SizeTier struct {
	CPUUnits     int `json:"cpu_units"`
	MinMemoryMiB int `json:"min_memory_mib"`
	MaxMemoryMiB int `json:"max_memory_mib"`
	StepMiB      int `json:"step_mib"`
}

// Accepts reports whether memoryMiB is a valid pairing for this tier.
func (t SizeTier) Accepts(memoryMiB int) bool {
	if memoryMiB < t.MinMemoryMiB || memoryMiB > t.MaxMemoryMiB {
		return false
	}
	return (memoryMiB-t.MinMemoryMiB)%t.StepMiB == 0
}

// MemoryOptions lists every memory value the tier accepts.
func (t SizeTier) MemoryOptions() []int {
	var out []int
	for m := t.MinMemoryMiB; m <= t.MaxMemoryMiB; m += t.StepMiB {
		out = append(out, m)
	}
	return out
}

// SizeTiers returns the Fargate CPU/memory combinations for Linux tasks.
func SizeTiers() []SizeTier {
	return []SizeTier{
		{CPUUnits: 256, MinMemoryMiB: 512, MaxMemoryMiB: 2048, StepMiB: 512},
		{CPUUnits: 512, MinMemoryMiB: 1024, MaxMemoryMiB: 4096, StepMiB: 1024},
		{CPUUnits: 1024, MinMemoryMiB: 2048, MaxMemoryMiB: 8192, StepMiB: 1024},
		{CPUUnits: 2048, MinMemoryMiB: 4096, MaxMemoryMiB: 16384, StepMiB: 1024},
		{CPUUnits: 4096, MinMemoryMiB: 8192, MaxMemoryMiB: 30720, StepMiB: 1024},
		{CPUUnits: 8192, MinMemoryMiB: 16384, MaxMemoryMiB: 61440, StepMiB: 4096},
		{CPUUnits: 16384, MinMemoryMiB: 32768, MaxMemoryMiB: 122880, StepMiB: 8192},
	}
}

// LookupTier returns the tier for a CPU setting, or nil if Fargate has none.
func LookupTier(cpuUnits int) *SizeTier {
	for _, t := range SizeTiers() {
		if t.CPUUnits == cpuUnits {
			return &t
		}
	}
	return nil
}

// ValidSize reports whether cpuUnits/memoryMiB is an accepted pairing.
func ValidSize(cpuUnits, memoryMiB int) bool {
	tier := LookupTier(cpuUnits)
	return tier != nil && tier.Accepts(memoryMiB)
}
