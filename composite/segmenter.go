package composite

import (
	"context"
	"errors"
	"image"
)

var ErrSegmentation = errors.New("segmentation failed")

// Segmenter 外部分割模型，返回前景置信度掩码
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*Mask, error)
}

// BackgroundSource 按索引提供缩放到指定尺寸的背景图
type BackgroundSource interface {
	Get(index, width, height int) *image.RGBA
}
