// Package console runs a single image through the classifier and reports the
// top class. Every failure is reported as text; none of them is returned to
// the caller, so the process exit status stays zero. Failure causes are
// logged at info level only, the fixed text line is the report.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	iface "ImagenetConsole/interface"

	"go.uber.org/zap"
)

// One architecture per build; switching networks means recompiling.
const (
	modelSubdir  = "models/resnet_50/"
	prototxtFile = modelSubdir + "deploy.prototxt"
	modelFile    = modelSubdir + "model_iter_70000.caffemodel"
	labelsFile   = modelSubdir + "corresp.txt"
	logPrefix    = "imagenet-console:"
)

const (
	StageCreate   = "create"
	StageLoad     = "load_image"
	StageClassify = "classify"
	StageOutput   = "output"
)

type Options struct {
	ModelDir   string
	Img        string
	OutputFile string
}

type ClassifierFactory func(paths iface.ModelPaths) (iface.Classifier, error)

type Metrics interface {
	ObserveStage(stage string, d time.Duration)
	Failure(stage string)
	Result(index int, confidence float32)
}

type Result struct {
	Image      string
	ClassIndex int
	Confidence float32
	Label      string
}

type Reporter interface {
	Send(ctx context.Context, r Result) error
}

type Driver struct {
	NewClassifier ClassifierFactory
	Loader        iface.ImageLoader
	Stderr        io.Writer
	Log           *zap.Logger
	Metrics       Metrics
	Reporter      Reporter
}

// ModelPaths 模型目录与固定子路径直接拼接，不插入分隔符
func ModelPaths(modelDir string) iface.ModelPaths {
	return iface.ModelPaths{
		Prototxt:   modelDir + prototxtFile,
		Model:      modelDir + modelFile,
		MeanBinary: "",
		Labels:     modelDir + labelsFile,
	}
}

// FormatResult renders the confidence the way a default C++ ostream would.
func FormatResult(img string, index int, confidence float32, label string) string {
	pct := confidence * 100
	return fmt.Sprintf("%s %s -> %.6g class #%d (%s)\n", logPrefix, img, pct, index, label)
}

func (d *Driver) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func (d *Driver) stderr() io.Writer {
	if d.Stderr == nil {
		return os.Stderr
	}
	return d.Stderr
}

func (d *Driver) observe(stage string, start time.Time) {
	if d.Metrics != nil {
		d.Metrics.ObserveStage(stage, time.Since(start))
	}
}

func (d *Driver) fail(stage string) {
	if d.Metrics != nil {
		d.Metrics.Failure(stage)
	}
}

func (d *Driver) report(r Result) {
	if d.Reporter == nil {
		return
	}
	if err := d.Reporter.Send(context.Background(), r); err != nil {
		d.log().Info("failed to report result", zap.String("image", r.Image), zap.Error(err))
	}
}

// Run performs one classification end to end.
func (d *Driver) Run(opts Options) {
	log := d.log()
	stderr := d.stderr()

	paths := ModelPaths(opts.ModelDir)
	log.Info("creating classifier",
		zap.String("prototxt", paths.Prototxt),
		zap.String("model", paths.Model),
		zap.String("labels", paths.Labels))

	start := time.Now()
	net, err := d.NewClassifier(paths)
	d.observe(StageCreate, start)
	if err != nil || net == nil {
		d.fail(StageCreate)
		log.Info("classifier construction failed", zap.Error(err))
		fmt.Fprintf(stderr, "%s   failed to initialize imageNet\n", logPrefix)
		return
	}
	engineCfg := net.CheckConfig()
	log.Info("classifier ready",
		zap.String("backend", engineCfg.UseBackend),
		zap.Int("input_size", engineCfg.InputSize),
		zap.Int("classes", engineCfg.NumClasses))

	start = time.Now()
	img, err := d.Loader.LoadImageRGBA(opts.Img)
	d.observe(StageLoad, start)
	if err != nil || img == nil {
		// net is intentionally not destroyed here; process exit reclaims it.
		d.fail(StageLoad)
		log.Info("image load failed", zap.String("image", opts.Img), zap.Error(err))
		fmt.Fprintf(stderr, "failed to load image %s\n", opts.Img)
		return
	}
	log.Info("image loaded", zap.String("image", opts.Img), zap.Int("width", img.Width), zap.Int("height", img.Height))

	start = time.Now()
	index, confidence := net.Classify(img.Device, img.Width, img.Height)
	d.observe(StageClassify, start)

	if index < 0 {
		d.fail(StageClassify)
		fmt.Fprintf(stderr, "%s  failed to classify %s(result=%d)\n", logPrefix, opts.Img, index)
		d.report(Result{Image: opts.Img, ClassIndex: index})
	} else {
		label := net.ClassDesc(index)
		line := FormatResult(opts.Img, index, confidence, label)
		if d.Metrics != nil {
			d.Metrics.Result(index, confidence)
		}
		d.emit(opts, line)
		d.report(Result{Image: opts.Img, ClassIndex: index, Confidence: confidence, Label: label})
	}

	img.FreeHost()
	net.Destroy()
}

func (d *Driver) emit(opts Options, line string) {
	stderr := d.stderr()
	if opts.OutputFile == "" {
		fmt.Fprint(stderr, line)
		return
	}
	start := time.Now()
	defer d.observe(StageOutput, start)
	f, err := os.Create(opts.OutputFile)
	if err != nil {
		d.fail(StageOutput)
		d.log().Info("open output file", zap.String("path", opts.OutputFile), zap.Error(err))
		fmt.Fprintf(stderr, "failed to write to output file %s\n", opts.OutputFile)
		return
	}
	defer f.Close()
	if _, err := io.WriteString(f, line); err != nil {
		d.fail(StageOutput)
		d.log().Info("write output file", zap.String("path", opts.OutputFile), zap.Error(err))
	}
}
