package composite

import (
	"fmt"

	"github.com/chaos-io/playabooth/util"
	"go.uber.org/zap"
)

// Sampling 掩码分辨率与目标分辨率不一致时的重采样方式
type Sampling int

const (
	Nearest Sampling = iota
	Bilinear
)

func (s Sampling) String() string {
	if s == Bilinear {
		return "bilinear"
	}
	return "nearest"
}

// ParseSampling 解析 "nearest" / "bilinear"
func ParseSampling(s string) (Sampling, error) {
	switch s {
	case "nearest", "":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unknown sampling %q", s)
	}
}

// Grid 与目标图像同尺寸的逐像素置信度，行优先
type Grid struct {
	Width  int
	Height int
	Values []float32
}

func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Values: make([]float32, width*height)}
}

// At 返回 (x, y) 处的置信度，越界返回 0
func (g *Grid) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	i := y*g.Width + x
	if i >= len(g.Values) {
		return 0
	}
	return g.Values[i]
}

type Sampler struct {
	Mode Sampling
}

func NewSampler(mode Sampling) *Sampler {
	return &Sampler{Mode: mode}
}

// Sample 把掩码映射到 targetW x targetH 的置信度网格
//
// 尺寸一致且缓冲区长度恰好匹配时逐像素直接取值，否则按 Mode 统一重采样。
// 字节掩码归一化为 v/255，浮点掩码原样使用（不做截断）。
// 缓冲区短于声明尺寸时整张掩码视为背景。
func (s *Sampler) Sample(m *Mask, targetW, targetH int) (*Grid, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, targetW, targetH)
	}

	grid := NewGrid(targetW, targetH)

	if m.truncated() {
		util.Logger.Warn("mask buffer shorter than declared size, treating as background",
			zap.Int("mask_width", m.Width),
			zap.Int("mask_height", m.Height),
			zap.String("encoding", m.Encoding.String()),
			zap.Int("buffer_len", len(m.Data)),
			zap.Int("expected_len", m.expectedLen()))
		return grid, nil
	}

	if m.Width == targetW && m.Height == targetH && len(m.Data) == m.expectedLen() {
		for i := range grid.Values {
			grid.Values[i] = m.at(i)
		}
		return grid, nil
	}

	if s.Mode == Bilinear {
		sampleBilinear(m, grid)
	} else {
		sampleNearest(m, grid)
	}
	return grid, nil
}

func sampleNearest(m *Mask, grid *Grid) {
	for y := 0; y < grid.Height; y++ {
		srcY := y * m.Height / grid.Height
		row := y * grid.Width
		for x := 0; x < grid.Width; x++ {
			srcX := x * m.Width / grid.Width
			grid.Values[row+x] = m.at(srcY*m.Width + srcX)
		}
	}
}

func sampleBilinear(m *Mask, grid *Grid) {
	xRatio := float32(m.Width) / float32(grid.Width)
	yRatio := float32(m.Height) / float32(grid.Height)

	for y := 0; y < grid.Height; y++ {
		srcYf := float32(y) * yRatio
		y0 := int(srcYf)
		y1 := min(y0+1, m.Height-1)
		yWeight := srcYf - float32(y0)

		row := y * grid.Width
		for x := 0; x < grid.Width; x++ {
			srcXf := float32(x) * xRatio
			x0 := int(srcXf)
			x1 := min(x0+1, m.Width-1)
			xWeight := srcXf - float32(x0)

			c00 := m.at(y0*m.Width + x0)
			c10 := m.at(y0*m.Width + x1)
			c01 := m.at(y1*m.Width + x0)
			c11 := m.at(y1*m.Width + x1)

			top := c00*(1-xWeight) + c10*xWeight
			bottom := c01*(1-xWeight) + c11*xWeight
			grid.Values[row+x] = top*(1-yWeight) + bottom*yWeight
		}
	}
}
