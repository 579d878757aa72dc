package metrics

import (
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

// StorageReadiness is the minimal signal readiness reporting needs from
// the storage engine, expressed as an interface so this package doesn't
// need to import pkg/storage directly.
type StorageReadiness interface {
	IsStorageReady() bool
}

// Health is the body of a verbose /healthz response.
type Health struct {
	Ready         bool    `json:"ready"`
	LoadAverage1m float64 `json:"loadAverage1m"`
	MemoryUsedPct float64 `json:"memoryUsedPercent"`
	MemoryTotalMB uint64  `json:"memoryTotalMb"`
}

// Collect gathers verbose health diagnostics. Failures reading host stats
// are non-fatal: a Pository instance running in a minimal container
// without /proc access should still report readiness based on storage
// alone.
func Collect(storage StorageReadiness) Health {
	h := Health{Ready: storage.IsStorageReady()}

	if avg, err := load.Avg(); err == nil {
		h.LoadAverage1m = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemoryUsedPct = vm.UsedPercent
		h.MemoryTotalMB = vm.Total / (1024 * 1024)
	}
	return h
}
