package gallery

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/chaos-io/playabooth/util"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const DefaultQuality = 90

var (
	ErrNoImage = errors.New("no image to save")

	photoPattern = regexp.MustCompile(`^playa_photo_(\d+)\.jpg$`)

	// 同一毫秒内的多次保存依次顺延文件名
	saveMu sync.Mutex
)

// Photo 相册中的一张照片
type Photo struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Save 以 JPEG 格式保存到 dir，文件名为 playa_photo_<毫秒时间戳>.jpg
func Save(img image.Image, dir string, quality int) (string, error) {
	if img == nil {
		return "", ErrNoImage
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create gallery dir: %w", err)
	}

	saveMu.Lock()
	defer saveMu.Unlock()

	ms := time.Now().UnixMilli()
	path := filepath.Join(dir, fileName(ms))
	for exists(path) {
		ms++
		path = filepath.Join(dir, fileName(ms))
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}

	util.Logger.Info("photo saved", zap.String("path", path))
	return path, nil
}

// List 返回 dir 中的照片，最新的在前；目录不存在时返回空列表
func List(dir string) ([]Photo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read gallery dir: %w", err)
	}

	var photos []Photo
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := photoPattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}

		info, err := f.Info()
		if err != nil {
			continue
		}
		photos = append(photos, Photo{
			Name:      f.Name(),
			Path:      filepath.Join(dir, f.Name()),
			Size:      info.Size(),
			CreatedAt: time.UnixMilli(ms),
		})
	}

	sort.Slice(photos, func(i, j int) bool {
		return photos[i].CreatedAt.After(photos[j].CreatedAt)
	})
	return photos, nil
}

// Prune 删除早于 now-olderThan 的照片，返回删除数量
func Prune(dir string, olderThan time.Duration, now time.Time) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}

	photos, err := List(dir)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-olderThan)
	removed := 0
	var errs []error
	for _, p := range photos {
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(p.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		util.Logger.Info("gallery pruned", zap.String("dir", dir), zap.Int("removed", removed))
	}
	return removed, errors.Join(errs...)
}

func fileName(ms int64) string {
	return fmt.Sprintf("playa_photo_%d.jpg", ms)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
