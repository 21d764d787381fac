package iface

type Classifier interface {
	// Classify 返回类别索引与置信度，索引为负表示失败
	Classify(buf DeviceBuffer, width, height int) (int, float32)
	ClassDesc(index int) string
	Destroy()
	CheckConfig() EngineConfig
}

type ImageLoader interface {
	LoadImageRGBA(path string) (*Image, error)
}
