package metrics

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegisterHostGauges adds gauges describing the host the control plane runs
// on: process uptime, free space below dataDir and the 1-minute load average.
// Go runtime figures come from the default registry's Go collector.
func RegisterHostGauges(reg prometheus.Registerer, startTime time.Time, dataDir string) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the control plane started",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "data_disk_available_bytes",
		Help:      "Bytes available on the filesystem holding the data directory",
	}, func() float64 {
		avail, _ := diskAvailable(dataDir)
		return float64(avail)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "system_load_average_1m",
		Help:      "One-minute system load average (Linux only)",
	}, func() float64 {
		load, _ := loadAverage()
		return load
	})
}

// diskAvailable uses statfs, which only exists on Unix.
func diskAvailable(path string) (uint64, bool) {
	if runtime.GOOS == "windows" {
		return 0, false
	}
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, false
	}
	return fs.Bavail * uint64(fs.Bsize), true
}

func loadAverage() (float64, bool) {
	if runtime.GOOS != "linux" {
		return 0, false
	}
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return load, true
}
