package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/chaos-io/playabooth/util"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrAssetLoad = errors.New("background asset load failed")

// DefaultPattern 匹配 bg1.png、bg02.jpg 这类素材文件
const DefaultPattern = `(?i)^bg\d+\.(png|jpe?g|webp|bmp)$`

// LoadResult 单个素材的加载结果，Err 非空时 Image 为 nil
type LoadResult struct {
	Name  string
	Image image.Image
	Err   error
}

// LoadDir 按文件名排序加载 dir 中匹配 pattern 的素材
//
// 目录不存在或不可读时返回错误；单个文件失败记录在对应的 LoadResult 中。
func LoadDir(ctx context.Context, dir, pattern string, maxEdge int) ([]LoadResult, error) {
	defer util.Trace("LoadDir")()

	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid background pattern %q: %w", pattern, err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", ErrAssetLoad, dir, err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !re.MatchString(f.Name()) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	results := make([]LoadResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		img, err := util.OpenImage(filepath.Join(dir, name))
		if err != nil {
			util.Logger.Warn("failed to open background", zap.String("file", name), zap.Error(err))
			results = append(results, LoadResult{Name: name, Err: fmt.Errorf("%w: %s: %w", ErrAssetLoad, name, err)})
			continue
		}
		results = append(results, LoadResult{Name: name, Image: resizeWithinMax(img, maxEdge)})
	}
	return results, nil
}

// LoadURLs 依次下载远程素材
func LoadURLs(ctx context.Context, urls []string, maxEdge int) []LoadResult {
	defer util.Trace("LoadURLs")()

	results := make([]LoadResult, 0, len(urls))
	for _, raw := range urls {
		name := raw
		if u, err := url.Parse(raw); err == nil && u.Path != "" {
			name = path.Base(u.Path)
		}

		img, err := util.DownloadImage(ctx, raw)
		if err != nil {
			util.Logger.Warn("failed to download background", zap.String("url", raw), zap.Error(err))
			results = append(results, LoadResult{Name: name, Err: fmt.Errorf("%w: %s: %w", ErrAssetLoad, raw, err)})
			continue
		}
		results = append(results, LoadResult{Name: name, Image: resizeWithinMax(img, maxEdge)})
	}
	return results
}

// resizeWithinMax 缩放（最长边 <= maxEdge），maxEdge <= 0 时不缩放
func resizeWithinMax(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)
	if longest <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(longest)
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	return resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
}
