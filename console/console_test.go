package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	iface "ImagenetConsole/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockBuffer struct{ closed bool }

func (b *MockBuffer) Close() error {
	b.closed = true
	return nil
}

type MockClassifier struct {
	index      int
	confidence float32
	labels     []string
	destroyed  bool
	gotWidth   int
	gotHeight  int
	gotBuf     iface.DeviceBuffer
}

func (m *MockClassifier) Classify(buf iface.DeviceBuffer, width, height int) (int, float32) {
	m.gotBuf = buf
	m.gotWidth = width
	m.gotHeight = height
	return m.index, m.confidence
}

func (m *MockClassifier) ClassDesc(index int) string {
	if index < 0 || index >= len(m.labels) {
		return ""
	}
	return m.labels[index]
}

func (m *MockClassifier) Destroy() { m.destroyed = true }

func (m *MockClassifier) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{UseBackend: "mock", NumClasses: len(m.labels)}
}

type MockLoader struct {
	img    *iface.Image
	err    error
	called bool
	path   string
}

func (l *MockLoader) LoadImageRGBA(path string) (*iface.Image, error) {
	l.called = true
	l.path = path
	return l.img, l.err
}

type MockMetrics struct {
	stages   []string
	failures []string
	results  int
}

func (m *MockMetrics) ObserveStage(stage string, d time.Duration) { m.stages = append(m.stages, stage) }
func (m *MockMetrics) Failure(stage string)                      { m.failures = append(m.failures, stage) }
func (m *MockMetrics) Result(index int, confidence float32)      { m.results++ }

type MockReporter struct {
	sent []Result
	err  error
}

func (r *MockReporter) Send(ctx context.Context, res Result) error {
	r.sent = append(r.sent, res)
	return r.err
}

type fixture struct {
	driver     *Driver
	classifier *MockClassifier
	loader     *MockLoader
	buffer     *MockBuffer
	metrics    *MockMetrics
	stderr     *bytes.Buffer
	gotPaths   iface.ModelPaths
	logs       *observer.ObservedLogs
}

func newFixture(index int, confidence float32) *fixture {
	f := &fixture{
		classifier: &MockClassifier{index: index, confidence: confidence, labels: []string{"tench", "goldfish", "great white shark"}},
		buffer:     &MockBuffer{},
		metrics:    &MockMetrics{},
		stderr:     &bytes.Buffer{},
	}
	f.loader = &MockLoader{img: &iface.Image{Host: make([]float32, 4*3*2), Device: f.buffer, Width: 3, Height: 2}}
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	f.driver = &Driver{
		NewClassifier: func(paths iface.ModelPaths) (iface.Classifier, error) {
			f.gotPaths = paths
			return f.classifier, nil
		},
		Loader:  f.loader,
		Stderr:  f.stderr,
		Log:     zap.New(core),
		Metrics: f.metrics,
	}
	return f
}

func TestModelPaths(t *testing.T) {
	p := ModelPaths("")
	assert.Equal(t, "models/resnet_50/deploy.prototxt", p.Prototxt)
	assert.Equal(t, "models/resnet_50/model_iter_70000.caffemodel", p.Model)
	assert.Equal(t, "models/resnet_50/corresp.txt", p.Labels)
	assert.Equal(t, "", p.MeanBinary)

	// 直接拼接，不补分隔符
	p = ModelPaths("/opt/net")
	assert.Equal(t, "/opt/netmodels/resnet_50/deploy.prototxt", p.Prototxt)
	p = ModelPaths("/opt/net/")
	assert.Equal(t, "/opt/net/models/resnet_50/corresp.txt", p.Labels)
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "imagenet-console: cat.jpg -> 87.5 class #281 (tabby cat)\n", FormatResult("cat.jpg", 281, 0.875, "tabby cat"))
	assert.Equal(t, "imagenet-console: a.png -> 100 class #0 (x)\n", FormatResult("a.png", 0, 1, "x"))
	assert.Equal(t, "imagenet-console: a.png -> 0 class #3 (y)\n", FormatResult("a.png", 3, 0, "y"))
	assert.Equal(t, "imagenet-console: a.png -> 12.3457 class #1 (z)\n", FormatResult("a.png", 1, 0.123456789, "z"))
}

func TestRun_SuccessToStderr(t *testing.T) {
	f := newFixture(1, 0.5)
	f.driver.Run(Options{ModelDir: "/m/", Img: "fish.jpg"})

	assert.Equal(t, "imagenet-console: fish.jpg -> 50 class #1 (goldfish)\n", f.stderr.String())
	assert.Equal(t, "/m/models/resnet_50/deploy.prototxt", f.gotPaths.Prototxt)
	assert.Equal(t, "fish.jpg", f.loader.path)
	assert.Same(t, f.buffer, f.classifier.gotBuf)
	assert.Equal(t, 3, f.classifier.gotWidth)
	assert.Equal(t, 2, f.classifier.gotHeight)
	assert.True(t, f.classifier.destroyed)
	assert.Nil(t, f.loader.img.Host)
	// 设备缓冲区不由驱动释放
	assert.False(t, f.buffer.closed)
	assert.Equal(t, []string{StageCreate, StageLoad, StageClassify}, f.metrics.stages)
	assert.Empty(t, f.metrics.failures)
	assert.Equal(t, 1, f.metrics.results)

	ready := f.logs.FilterMessage("classifier ready").All()
	require.Len(t, ready, 1)
	assert.Equal(t, "mock", ready[0].ContextMap()["backend"])
	assert.Equal(t, int64(3), ready[0].ContextMap()["classes"])
}

func TestRun_SuccessToFile(t *testing.T) {
	f := newFixture(2, 0.25)
	out := filepath.Join(t.TempDir(), "result.txt")
	require.NoError(t, os.WriteFile(out, []byte("stale content that should be truncated\n"), 0o644))

	f.driver.Run(Options{Img: "shark.jpg", OutputFile: out})

	assert.Empty(t, f.stderr.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "imagenet-console: shark.jpg -> 25 class #2 (great white shark)\n", string(data))
	assert.True(t, f.classifier.destroyed)
	assert.Contains(t, f.metrics.stages, StageOutput)
}

func TestRun_UnwritableOutputFile(t *testing.T) {
	f := newFixture(0, 0.9)
	out := filepath.Join(t.TempDir(), "missing-dir", "result.txt")

	f.driver.Run(Options{Img: "tench.jpg", OutputFile: out})

	assert.Equal(t, "failed to write to output file "+out+"\n", f.stderr.String())
	assert.NoFileExists(t, out)
	assert.Equal(t, []string{StageOutput}, f.metrics.failures)
	assert.True(t, f.classifier.destroyed)
}

func TestRun_ClassifyFailure(t *testing.T) {
	f := newFixture(-3, 0.7)
	out := filepath.Join(t.TempDir(), "result.txt")

	f.driver.Run(Options{Img: "noise.jpg", OutputFile: out})

	assert.Equal(t, "imagenet-console:  failed to classify noise.jpg(result=-3)\n", f.stderr.String())
	assert.NoFileExists(t, out)
	assert.Equal(t, []string{StageClassify}, f.metrics.failures)
	assert.Equal(t, 0, f.metrics.results)
	assert.True(t, f.classifier.destroyed)
}

func TestRun_CreateFailure(t *testing.T) {
	f := newFixture(0, 1)
	f.driver.NewClassifier = func(paths iface.ModelPaths) (iface.Classifier, error) {
		return nil, errors.New("no such prototxt")
	}

	f.driver.Run(Options{ModelDir: "/bad/", Img: "x.jpg"})

	assert.Equal(t, "imagenet-console:   failed to initialize imageNet\n", f.stderr.String())
	assert.False(t, f.loader.called)
	assert.Equal(t, []string{StageCreate}, f.metrics.failures)
	entries := f.logs.FilterMessage("classifier construction failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "no such prototxt", entries[0].ContextMap()["error"])
	// 失败原因只在 info 级别记录，stderr 上只保留固定文本行
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Zero(t, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestRun_LoadFailureLeaksClassifier(t *testing.T) {
	f := newFixture(0, 1)
	f.loader.img = nil
	f.loader.err = errors.New("decode failed")

	f.driver.Run(Options{Img: "missing.jpg"})

	assert.Equal(t, "failed to load image missing.jpg\n", f.stderr.String())
	assert.True(t, f.loader.called)
	// 此路径不销毁分类器，由进程退出回收
	assert.False(t, f.classifier.destroyed)
	assert.Equal(t, []string{StageLoad}, f.metrics.failures)
	for _, e := range f.logs.All() {
		assert.Less(t, e.Level, zapcore.WarnLevel, e.Message)
	}
}

func TestRun_Reporter(t *testing.T) {
	f := newFixture(1, 0.5)
	rep := &MockReporter{err: errors.New("collector down")}
	f.driver.Reporter = rep

	f.driver.Run(Options{Img: "fish.jpg"})

	require.Len(t, rep.sent, 1)
	assert.Equal(t, Result{Image: "fish.jpg", ClassIndex: 1, Confidence: 0.5, Label: "goldfish"}, rep.sent[0])
	// 上报失败只记录日志，不影响结果输出
	assert.Equal(t, "imagenet-console: fish.jpg -> 50 class #1 (goldfish)\n", f.stderr.String())
	assert.Equal(t, 1, f.logs.FilterMessage("failed to report result").Len())

	f = newFixture(-1, 0)
	rep = &MockReporter{}
	f.driver.Reporter = rep
	f.driver.Run(Options{Img: "bad.jpg"})
	require.Len(t, rep.sent, 1)
	assert.Equal(t, -1, rep.sent[0].ClassIndex)
}

func TestRun_NilCollaboratorsDefaults(t *testing.T) {
	f := newFixture(0, 0.5)
	f.driver.Log = nil
	f.driver.Metrics = nil
	out := filepath.Join(t.TempDir(), "r.txt")

	f.driver.Run(Options{Img: "a.jpg", OutputFile: out})

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "class #0 (tench)")
}
