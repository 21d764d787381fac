package engine

import (
	"errors"
	"fmt"
	"image"

	iface "ImagenetConsole/interface"

	"gocv.io/x/gocv"
)

type Classifier struct {
	Paths   iface.ModelPaths
	Backend BackendConfig
	State   int
	classes []ClassInfo
	net     *gocv.Net
}

// Create 加载 Caffe 网络和类别标签，失败时返回 nil
func Create(paths iface.ModelPaths, backend BackendConfig) (*Classifier, error) {
	c := &Classifier{}
	c.New()
	if err := c.LoadModel(paths, backend); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *Classifier) New() bool {
	c.State = REGISTERED
	return true
}

func (c *Classifier) LoadModel(paths iface.ModelPaths, backend BackendConfig) error {
	if c.State != REGISTERED {
		return errors.New("classifier not registered")
	}
	backend, err := backend.Normalize()
	if err != nil {
		return err
	}
	if paths.MeanBinary != "" {
		return fmt.Errorf("mean binary %s is not supported, configure per-channel mean instead", paths.MeanBinary)
	}
	classes, err := LoadClassInfo(paths.Labels)
	if err != nil {
		return err
	}
	net := gocv.ReadNetFromCaffe(paths.Prototxt, paths.Model)
	if net.Empty() {
		_ = net.Close()
		return fmt.Errorf("failed to load network from %s and %s", paths.Prototxt, paths.Model)
	}
	b, t, _ := netTarget(backend.UseBackend)
	if err := net.SetPreferableBackend(b); err != nil {
		_ = net.Close()
		return fmt.Errorf("set backend %s: %w", backend.UseBackend, err)
	}
	if err := net.SetPreferableTarget(t); err != nil {
		_ = net.Close()
		return fmt.Errorf("set target %s: %w", backend.UseBackend, err)
	}

	c.Paths = paths
	c.Backend = backend
	c.classes = classes
	c.net = &net
	c.State = IDLE
	return nil
}

func (c *Classifier) Destroy() {
	if c.net != nil {
		_ = c.net.Close()
	}
	c.net = nil
	c.Paths = iface.ModelPaths{}
	c.classes = nil
	c.State = UNREGISTERED
}

func (c *Classifier) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		UseBackend: c.Backend.UseBackend,
		Paths:      c.Paths,
		InputSize:  c.Backend.InputSize,
		NumClasses: c.NumClasses(),
	}
}

func (c *Classifier) NumClasses() int {
	return len(c.classes)
}

func (c *Classifier) ClassDesc(index int) string {
	if index < 0 || index >= len(c.classes) {
		return ""
	}
	return c.classes[index].Desc
}

// deviceMat 校验输入缓冲区类型与尺寸
func deviceMat(buf iface.DeviceBuffer, width, height int) (*DeviceMat, error) {
	dm, ok := buf.(*DeviceMat)
	if !ok || dm == nil {
		return nil, fmt.Errorf("unsupported device buffer %T", buf)
	}
	if dm.Mat.Empty() {
		return nil, errors.New("device buffer is empty")
	}
	if dm.Mat.Cols() != width || dm.Mat.Rows() != height {
		return nil, fmt.Errorf("device buffer is %dx%d, expected %dx%d", dm.Mat.Cols(), dm.Mat.Rows(), width, height)
	}
	return dm, nil
}

func (c *Classifier) Classify(buf iface.DeviceBuffer, width, height int) (int, float32) {
	if c.State != IDLE {
		return -1, 0
	}
	dm, err := deviceMat(buf, width, height)
	if err != nil || c.net == nil {
		return -1, 0
	}
	c.State = BUSY
	defer func() { c.State = IDLE }()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(dm.Mat, &bgr, gocv.ColorRGBAToBGR)

	size := image.Pt(c.Backend.InputSize, c.Backend.InputSize)
	blob := gocv.BlobFromImage(bgr, c.Backend.Scale, size, c.Backend.meanScalar(), c.Backend.SwapRB, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	prob := c.net.Forward("")
	defer prob.Close()
	if prob.Empty() {
		return -1, 0
	}
	flat := prob.Reshape(1, 1)
	defer flat.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(flat)
	if maxLoc.X < 0 || maxLoc.X >= len(c.classes) {
		return -1, 0
	}
	return maxLoc.X, maxVal
}
