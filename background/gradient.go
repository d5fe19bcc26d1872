package background

import (
	"image"
	"math"

	"github.com/gogpu/gg"
)

// 沙黄 -> 橙 -> 棕，模拟沙尘和日落
var (
	sandy  = gg.RGB(255/255.0, 218/255.0, 142/255.0)
	orange = gg.RGB(255/255.0, 165/255.0, 79/255.0)
	brown  = gg.RGB(139/255.0, 69/255.0, 19/255.0)
)

// Default 生成竖直三段渐变背景，只依赖宽高
func Default(width, height int) *image.RGBA {
	width, height = max(width, 1), max(height, 1)

	brush := gg.NewLinearGradientBrush(0, 0, 0, float64(height)).
		AddColorStop(0, sandy).
		AddColorStop(0.5, orange).
		AddColorStop(1, brown)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		c := brush.ColorAt(0, float64(y)+0.5)
		r, g, b := to8(c.R), to8(c.G), to8(c.B)

		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = r, g, b, 255
		}
	}
	return img
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}
