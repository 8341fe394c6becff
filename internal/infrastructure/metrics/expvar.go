package metrics

import (
	"expvar"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// PublishExpvars exposes runtime, process and engine gauges on /debug/vars.
// It must be called once per process; expvar names are global.
func PublishExpvars(sessions, rooms func() int) {
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("sessions", expvar.Func(func() any {
		return sessions()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return rooms()
	}))
	expvar.Publish("process", expvar.Func(processStats))
}

func processStats() any {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return map[string]any{"error": err.Error()}
	}

	stats := make(map[string]any, 3)
	if cpu, err := p.CPUPercent(); err == nil {
		stats["cpu_percent"] = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil {
		stats["rss_bytes"] = mem.RSS
	}
	if fds, err := p.NumFDs(); err == nil {
		stats["open_fds"] = fds
	}
	return stats
}
