package segment

import (
	"context"
	"errors"
	"image"

	"github.com/chaos-io/playabooth/composite"
)

var ErrNoProvider = errors.New("no segmentation provider configured")

// None 没有可用的分割模型，总是失败，由 Pipeline 回退到原图
type None struct{}

func (None) Segment(context.Context, image.Image) (*composite.Mask, error) {
	return nil, ErrNoProvider
}

// Func 把普通函数适配为 composite.Segmenter
type Func func(ctx context.Context, img image.Image) (*composite.Mask, error)

func (f Func) Segment(ctx context.Context, img image.Image) (*composite.Mask, error) {
	return f(ctx, img)
}

var (
	_ composite.Segmenter = None{}
	_ composite.Segmenter = Func(nil)
	_ composite.Segmenter = (*Remote)(nil)
	_ composite.Segmenter = (*ONNX)(nil)
)
