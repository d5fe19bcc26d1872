package composite

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrMalformedMask = errors.New("malformed mask")
	ErrInvalidTarget = errors.New("invalid target size")
)

// Encoding 分割模型输出的掩码格式
type Encoding int

const (
	// ByteGrid 每个采样 1 字节，0-255
	ByteGrid Encoding = iota
	// FloatGrid 每个采样 4 字节，小端 float32，0.0-1.0
	FloatGrid
)

func (e Encoding) String() string {
	switch e {
	case ByteGrid:
		return "byte"
	case FloatGrid:
		return "float"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding 解析 "byte" / "float"
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "byte", "bytes", "":
		return ByteGrid, nil
	case "float", "float32":
		return FloatGrid, nil
	default:
		return 0, fmt.Errorf("%w: unknown encoding %q", ErrMalformedMask, s)
	}
}

func (e Encoding) bytesPerSample() int {
	switch e {
	case ByteGrid:
		return 1
	case FloatGrid:
		return 4
	default:
		return 0
	}
}

// Mask 前景置信度掩码，Width/Height 可以与原图不同
type Mask struct {
	Width    int
	Height   int
	Encoding Encoding
	Data     []byte
}

func NewByteMask(width, height int, data []byte) *Mask {
	return &Mask{Width: width, Height: height, Encoding: ByteGrid, Data: data}
}

func NewFloatMask(width, height int, values []float32) *Mask {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &Mask{Width: width, Height: height, Encoding: FloatGrid, Data: data}
}

func (m *Mask) validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrMalformedMask)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrMalformedMask, m.Width, m.Height)
	}
	if m.Encoding.bytesPerSample() == 0 {
		return fmt.Errorf("%w: %s", ErrMalformedMask, m.Encoding)
	}
	return nil
}

// expectedLen 声明尺寸对应的缓冲区长度
func (m *Mask) expectedLen() int {
	return m.Width * m.Height * m.Encoding.bytesPerSample()
}

// truncated 缓冲区比声明尺寸短，整张掩码视为未知
func (m *Mask) truncated() bool {
	return len(m.Data) < m.expectedLen()
}

// at 返回第 i 个采样的置信度，越界返回 0
func (m *Mask) at(i int) float32 {
	if i < 0 {
		return 0
	}
	switch m.Encoding {
	case ByteGrid:
		if i >= len(m.Data) {
			return 0
		}
		return float32(m.Data[i]) / 255
	case FloatGrid:
		off := i * 4
		if off+4 > len(m.Data) {
			return 0
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(m.Data[off:]))
	default:
		return 0
	}
}
