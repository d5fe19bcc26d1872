package composite

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// Polarity 置信度与前景的对应关系
type Polarity int

const (
	// ForegroundAbove 置信度 > 阈值 为前景
	ForegroundAbove Polarity = iota
	// ForegroundBelow 置信度 < 阈值 为前景
	ForegroundBelow
)

// ParsePolarity 解析 "above" / "below"
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "above", "":
		return ForegroundAbove, nil
	case "below":
		return ForegroundBelow, nil
	default:
		return ForegroundAbove, fmt.Errorf("unknown polarity %q", s)
	}
}

const DefaultThreshold float32 = 0.5

// LegacyByteThreshold 字节掩码 > 155 判为人像时对应的归一化阈值
const LegacyByteThreshold float32 = 155.0 / 255.0

type Compositor struct {
	Threshold float32
	Polarity  Polarity
	// Workers 并行处理的行带数，<= 0 时取 GOMAXPROCS
	Workers int
}

func NewCompositor(threshold float32, polarity Polarity) *Compositor {
	return &Compositor{Threshold: threshold, Polarity: polarity}
}

// IsForeground 判断置信度是否属于前景，NaN 永远是背景
func (c *Compositor) IsForeground(conf float32) bool {
	if c.Polarity == ForegroundBelow {
		return conf < c.Threshold
	}
	return conf > c.Threshold
}

// Blend 逐像素合成：前景取原图，背景取背景图，返回新图像，不修改输入
func (c *Compositor) Blend(original, background image.Image, grid *Grid) (*image.RGBA, error) {
	if original == nil || background == nil || grid == nil {
		return nil, fmt.Errorf("%w: nil input", ErrDimensionMismatch)
	}

	w, h := original.Bounds().Dx(), original.Bounds().Dy()
	bw, bh := background.Bounds().Dx(), background.Bounds().Dy()
	if bw != w || bh != h {
		return nil, fmt.Errorf("%w: background %dx%d, original %dx%d", ErrDimensionMismatch, bw, bh, w, h)
	}
	if grid.Width != w || grid.Height != h || len(grid.Values) != w*h {
		return nil, fmt.Errorf("%w: confidence %dx%d (%d values), original %dx%d",
			ErrDimensionMismatch, grid.Width, grid.Height, len(grid.Values), w, h)
	}

	src := toRGBA(original)
	bg := toRGBA(background)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out, nil
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	band := (h + workers - 1) / workers

	var g errgroup.Group
	for y0 := 0; y0 < h; y0 += band {
		y1 := min(y0+band, h)
		g.Go(func() (err error) {
			// recover 只对本 goroutine 生效，panic 转成错误交给调用方回退
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("blend rows %d-%d: panic: %v", y0, y1, r)
				}
			}()
			c.blendRows(out, src, bg, grid, y0, y1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Compositor) blendRows(out, src, bg *image.RGBA, grid *Grid, y0, y1 int) {
	w := grid.Width
	for y := y0; y < y1; y++ {
		outRow := y * out.Stride
		srcRow := y * src.Stride
		bgRow := y * bg.Stride
		for x := 0; x < w; x++ {
			o := outRow + x*4
			if c.IsForeground(grid.At(x, y)) {
				copy(out.Pix[o:o+4], src.Pix[srcRow+x*4:srcRow+x*4+4])
			} else {
				copy(out.Pix[o:o+4], bg.Pix[bgRow+x*4:bgRow+x*4+4])
			}
		}
	}
}
