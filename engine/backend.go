package engine

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

const (
	BackendCUDA     = "cuda"
	BackendCUDAFp16 = "cuda_fp16"
	BackendOpenCL   = "opencl"
	BackendCPU      = "cpu"
)

type BackendConfig struct {
	UseBackend string    `yaml:"useBackend"`
	InputSize  int       `yaml:"inputSize"`
	Scale      float64   `yaml:"scale"`
	Mean       []float64 `yaml:"mean"`
	SwapRB     bool      `yaml:"swapRB"`
}

// DefaultBackendConfig ResNet-50 的 ImageNet 预处理参数，默认走 GPU
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		UseBackend: BackendCUDA,
		InputSize:  224,
		Scale:      1.0,
		Mean:       []float64{104, 117, 123},
		SwapRB:     false,
	}
}

// Normalize 用默认值补齐缺省字段
func (c BackendConfig) Normalize() (BackendConfig, error) {
	def := DefaultBackendConfig()
	c.UseBackend = strings.ToLower(strings.TrimSpace(c.UseBackend))
	if c.UseBackend == "" {
		c.UseBackend = def.UseBackend
	}
	if c.InputSize <= 0 {
		c.InputSize = def.InputSize
	}
	if c.Scale == 0 {
		c.Scale = def.Scale
	}
	if len(c.Mean) == 0 {
		c.Mean = def.Mean
	}
	if len(c.Mean) != 3 {
		return c, fmt.Errorf("mean must have 3 channels, got %d", len(c.Mean))
	}
	if _, _, err := netTarget(c.UseBackend); err != nil {
		return c, err
	}
	return c, nil
}

func (c BackendConfig) meanScalar() gocv.Scalar {
	return gocv.NewScalar(c.Mean[0], c.Mean[1], c.Mean[2], 0)
}

func netTarget(useBackend string) (gocv.NetBackendType, gocv.NetTargetType, error) {
	switch useBackend {
	case BackendCUDA:
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA, nil
	case BackendCUDAFp16:
		return gocv.NetBackendCUDA, gocv.NetTargetCUDAFP16, nil
	case BackendOpenCL:
		return gocv.NetBackendDefault, gocv.NetTargetFP32, nil
	case BackendCPU:
		return gocv.NetBackendDefault, gocv.NetTargetCPU, nil
	default:
		return 0, 0, fmt.Errorf("unsupported backend: %s", useBackend)
	}
}
