package runner

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// SysInfo is the host snapshot stored next to every run.
type SysInfo struct {
	Arch     string  `json:"arch"`
	Hostname string  `json:"hostname"`
	Platform string  `json:"platform"`
	Kernel   string  `json:"kernel"`
	CPUCount int     `json:"cpu_count"`
	CPUModel string  `json:"cpu_model"`
	CPUFreq  float64 `json:"cpu_freq"`
	RAM      float64 `json:"ram"`
	RAMFree  float64 `json:"ram_free"`
}

func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
		info.Kernel = hostStat.KernelVersion
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUCount = len(cpuStat)
		info.CPUModel = cpuStat[0].ModelName
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
		info.RAMFree = float64(vmStat.Available) / 1024 / 1024 / 1024
	}
	return info
}
