package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"ImagenetConsole/console"
	"ImagenetConsole/engine"

	"gopkg.in/yaml.v3"
)

type configStruct struct {
	LogLevel             string               `yaml:"logLevel"`
	LogFile              string               `yaml:"logFile"`
	Development          bool                 `yaml:"development"`
	MetricsFile          string               `yaml:"metricsFile"`
	ReportURL            string               `yaml:"reportURL"`
	ReportTimeoutSeconds int                  `yaml:"reportTimeoutSeconds"`
	Backend              engine.BackendConfig `yaml:"backend"`
}

func defaultConfig() configStruct {
	return configStruct{
		LogLevel:             "warn",
		ReportTimeoutSeconds: 5,
		Backend:              engine.DefaultBackendConfig(),
	}
}

type flags struct {
	console.Options
	ConfigPath string
}

func parseFlags(args []string, output io.Writer) (flags, error) {
	var f flags
	set := flag.NewFlagSet("imagenet-console", flag.ContinueOnError)
	set.SetOutput(output)
	set.StringVar(&f.ModelDir, "model_dir", "", "directory that contains the model files")
	set.StringVar(&f.Img, "img", "", "input image file")
	set.StringVar(&f.OutputFile, "output_file", "", "output file, otherwise classification output is reported in console")
	set.StringVar(&f.ConfigPath, "config", "config.yaml", "optional yaml file with logging, metrics and backend settings")
	err := set.Parse(args)
	return f, err
}

// loadConfig 配置文件不存在时返回默认值
func loadConfig(path string) (configStruct, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	configData, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(configData, &config); err != nil {
		return defaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	backend, err := config.Backend.Normalize()
	if err != nil {
		return defaultConfig(), fmt.Errorf("config %s: %w", path, err)
	}
	config.Backend = backend
	if config.ReportTimeoutSeconds <= 0 {
		config.ReportTimeoutSeconds = 5
	}
	return config, nil
}
