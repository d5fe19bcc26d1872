package segment

import (
	"errors"
	"fmt"

	"github.com/chaos-io/playabooth/composite"
	"github.com/chaos-io/playabooth/config"
)

// New 按配置创建分割模型，kind 为 none、remote 或 onnx
func New(cfg config.SegmenterConfig) (composite.Segmenter, error) {
	switch cfg.Kind {
	case "", "none":
		return None{}, nil
	case "remote":
		if cfg.URL == "" {
			return nil, errors.New("remote segmenter requires a url")
		}
		return NewRemote(cfg.URL, cfg.Timeout), nil
	case "onnx":
		model, err := NewONNX(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			InputWidth:  cfg.InputWidth,
			InputHeight: cfg.InputHeight,
			InputName:   cfg.InputName,
			OutputName:  cfg.OutputName,
		})
		if err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unknown segmenter kind %q", cfg.Kind)
	}
}
