package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"ImagenetConsole/console"
	"ImagenetConsole/engine"
	iface "ImagenetConsole/interface"
	"ImagenetConsole/logger"
	"ImagenetConsole/monitor"
	"ImagenetConsole/report"

	"go.uber.org/zap"
)

// The exit status is always zero. Callers must parse the output to tell
// success from failure.
func main() {
	run(os.Args[1:], os.Stderr)
}

func newClassifier(backend engine.BackendConfig) console.ClassifierFactory {
	return func(paths iface.ModelPaths) (iface.Classifier, error) {
		c, err := engine.Create(paths, backend)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func run(args []string, stderr io.Writer) {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return
	}
	config, err := loadConfig(f.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "imagenet-console: %v, using defaults\n", err)
	}
	err = logger.Init(logger.Options{
		Level:       config.LogLevel,
		File:        config.LogFile,
		Development: config.Development,
	})
	if err != nil {
		fmt.Fprintf(stderr, "imagenet-console: failed to init logger: %v\n", err)
	}
	defer logger.Sync()

	// GPU 上下文与线程绑定
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	recorder := monitor.New()
	driver := &console.Driver{
		NewClassifier: newClassifier(config.Backend),
		Loader:        engine.ImageLoader{},
		Stderr:        stderr,
		Log:           logger.Log(),
		Metrics:       recorder,
	}
	if config.ReportURL != "" {
		reporter := report.New(config.ReportURL, time.Duration(config.ReportTimeoutSeconds)*time.Second)
		logger.Log().Debug("reporting enabled", zap.String("url", config.ReportURL), zap.String("run_id", reporter.RunID()))
		driver.Reporter = reporter
	}
	logger.Log().Debug("starting classification",
		zap.String("img", f.Img),
		zap.String("model_dir", f.ModelDir),
		zap.String("backend", config.Backend.UseBackend))

	driver.Run(f.Options)

	if config.MetricsFile != "" {
		if err := recorder.WriteTextfile(config.MetricsFile); err != nil {
			logger.Log().Info("failed to write metrics", zap.String("path", config.MetricsFile), zap.Error(err))
		}
	}
}
