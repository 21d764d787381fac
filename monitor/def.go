package monitor

import (
	"math"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

type Recorder struct {
	registry   *prometheus.Registry
	pid        *process.Process
	memUsage   prometheus.Gauge
	cpuUsage   prometheus.Gauge
	stageTime  *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	classIndex prometheus.Gauge
	confidence prometheus.Gauge
}

// New 创建独立的 registry，单次运行结束时写出
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	r.cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	r.stageTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imagenet_console_stage_duration_seconds",
		Help:    "Duration of each classification stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"stage"})
	r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "imagenet_console_failures_total",
		Help: "Failures by stage",
	}, []string{"stage"})
	r.classIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "imagenet_console_class_index",
		Help: "Top predicted class index",
	})
	r.confidence = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "imagenet_console_confidence",
		Help: "Confidence of the top predicted class",
	})
	r.registry.MustRegister(r.memUsage, r.cpuUsage, r.stageTime, r.failures, r.classIndex, r.confidence)

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		r.pid = p
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageTime.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) Failure(stage string) {
	r.failures.WithLabelValues(stage).Inc()
}

func (r *Recorder) Result(index int, confidence float32) {
	r.classIndex.Set(float64(index))
	r.confidence.Set(float64(confidence))
}

func (r *Recorder) CheckProcessInfo() {
	if r.pid == nil {
		return
	}
	if memInfo, err := r.pid.MemoryInfo(); err == nil {
		r.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := r.pid.CPUPercent(); err == nil {
		r.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// WriteTextfile 以 node_exporter textfile 格式写出
func (r *Recorder) WriteTextfile(path string) error {
	r.CheckProcessInfo()
	return prometheus.WriteToTextfile(path, r.registry)
}
