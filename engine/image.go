package engine

import (
	"errors"
	"fmt"

	iface "ImagenetConsole/interface"

	"gocv.io/x/gocv"
)

// DeviceMat 持有 CV_32FC4 的 RGBA 图像，作为分类输入
type DeviceMat struct {
	Mat gocv.Mat
}

func (d *DeviceMat) Close() error {
	return d.Mat.Close()
}

type ImageLoader struct{}

// LoadImageRGBA 读取磁盘图像，转换为 float RGBA，同时返回主机和设备缓冲区
func (ImageLoader) LoadImageRGBA(path string) (*iface.Image, error) {
	if path == "" {
		return nil, errors.New("image path is empty")
	}
	src := gocv.IMRead(path, gocv.IMReadColor)
	defer src.Close()
	if src.Empty() {
		// IMRead 返回空 Mat 表示读取或解码失败
		return nil, fmt.Errorf("failed to decode image %s", path)
	}
	return MatToRGBA(src)
}

// MatToRGBA 将 8 位 BGR 图像转换为 float RGBA，像素值保持 0..255
func MatToRGBA(src gocv.Mat) (*iface.Image, error) {
	rgba := gocv.NewMat()
	defer rgba.Close()
	gocv.CvtColor(src, &rgba, gocv.ColorBGRToRGBA)

	device := gocv.NewMat()
	rgba.ConvertTo(&device, gocv.MatTypeCV32FC4)
	if device.Empty() {
		_ = device.Close()
		return nil, errors.New("converted image is empty")
	}

	data, err := device.DataPtrFloat32()
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("read float pixels: %w", err)
	}
	host := append([]float32(nil), data...)

	return &iface.Image{
		Host:   host,
		Device: &DeviceMat{Mat: device},
		Width:  device.Cols(),
		Height: device.Rows(),
	}, nil
}
