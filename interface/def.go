package iface

// ModelPaths 分类网络所需的模型文件路径
type ModelPaths struct {
	Prototxt   string
	Model      string
	MeanBinary string
	Labels     string
}

// EngineConfig 引擎当前配置的快照
type EngineConfig struct {
	UseBackend string
	Paths      ModelPaths
	InputSize  int
	NumClasses int
}

// DeviceBuffer 加速器侧的图像缓冲区，分类器只借用不持有
type DeviceBuffer interface {
	Close() error
}

// Image 解码后的图像：主机缓冲区 + 设备缓冲区
type Image struct {
	Host   []float32
	Device DeviceBuffer
	Width  int
	Height int
}

// FreeHost 释放主机侧缓冲区，设备缓冲区不在此释放
func (img *Image) FreeHost() {
	img.Host = nil
}
