package composite

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// toRGBA 转为原点在 (0,0) 的 RGBA，已是该格式时直接返回（只读使用）
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Mirror 前置摄像头画面水平翻转
func Mirror(img image.Image) *image.RGBA {
	return toRGBA(imaging.FlipH(img))
}
