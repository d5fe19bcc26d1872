package background

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/chaos-io/playabooth/util"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

var names = []string{"Playa Dust", "The Burn", "OMG MUD", "Poop Today"}

// Entry 背景集合中的一项，Image 创建后不再修改
type Entry struct {
	Name   string
	Source string
	Image  image.Image

	procedural bool
}

// Collection 有序、非空的背景集合，第 0 项永远是程序生成的渐变
type Collection struct {
	mu         sync.RWMutex
	entries    []Entry
	generation int

	cache         *ScaledCache
	defaultWidth  int
	defaultHeight int
}

type Option func(*Collection)

func WithCache(c *ScaledCache) Option {
	return func(col *Collection) {
		col.cache = c
	}
}

// WithDefaultSize 设置默认渐变的预渲染尺寸
func WithDefaultSize(width, height int) Option {
	return func(col *Collection) {
		if width > 0 && height > 0 {
			col.defaultWidth, col.defaultHeight = width, height
		}
	}
}

// NewCollection 先放入默认渐变，再追加加载成功的素材，失败的素材只记录日志
func NewCollection(results []LoadResult, opts ...Option) *Collection {
	c := &Collection{
		defaultWidth:  DefaultWidth,
		defaultHeight: DefaultHeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = c.buildEntries(results)
	return c
}

func (c *Collection) buildEntries(results []LoadResult) []Entry {
	entries := []Entry{{
		Name:       nameFor(0),
		Source:     "default",
		Image:      Default(c.defaultWidth, c.defaultHeight),
		procedural: true,
	}}

	for _, r := range results {
		if r.Err != nil || r.Image == nil {
			util.Logger.Warn("skip background", zap.String("name", r.Name), zap.Error(r.Err))
			continue
		}
		entries = append(entries, Entry{
			Name:   nameFor(len(entries)),
			Source: r.Name,
			Image:  r.Image,
		})
		b := r.Image.Bounds()
		util.Logger.Debug("loaded background",
			zap.String("name", r.Name),
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()))
	}

	util.Logger.Info("backgrounds loaded", zap.Int("count", len(entries)))
	return entries
}

// Reload 替换素材列表，默认渐变保持在第 0 项
func (c *Collection) Reload(results []LoadResult) {
	entries := c.buildEntries(results)

	c.mu.Lock()
	c.entries = entries
	c.generation++
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.clear(context.Background())
	}
}

func (c *Collection) snapshot() ([]Entry, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.entries) == 0 {
		panic("background: empty collection")
	}
	return c.entries, c.generation
}

func (c *Collection) Count() int {
	entries, _ := c.snapshot()
	return len(entries)
}

// Entries 返回当前集合的副本
func (c *Collection) Entries() []Entry {
	entries, _ := c.snapshot()
	return append([]Entry(nil), entries...)
}

func (c *Collection) Name(index int) string {
	entries, _ := c.snapshot()
	if index >= 0 && index < len(entries) {
		return entries[index].Name
	}
	return nameFor(index)
}

// Get 返回第 index 个背景，双线性缩放到 width x height
//
// index 越界时返回默认渐变；与 WithDefaultSize 尺寸一致时复用预渲染的渐变。返回的图像可能被缓存共享，调用方不得修改。
func (c *Collection) Get(index, width, height int) *image.RGBA {
	width, height = max(width, 1), max(height, 1)

	entries, gen := c.snapshot()
	if index < 0 || index >= len(entries) {
		return defaultAt(entries[0], width, height)
	}

	entry := entries[index]
	if entry.procedural {
		return defaultAt(entry, width, height)
	}

	ctx := context.Background()
	key := fmt.Sprintf("%d:%d:%dx%d", gen, index, width, height)
	if c.cache != nil {
		if img, ok := c.cache.get(ctx, key); ok {
			return img
		}
	}

	img := scale(entry.Image, width, height)
	if c.cache != nil {
		c.cache.set(ctx, key, img)
	}
	return img
}

// NewCursor 创建一个会话级的选择游标
func (c *Collection) NewCursor() *Cursor {
	return newCursor(c.Count)
}

// defaultAt 请求尺寸等于预渲染尺寸时直接复用，否则按目标尺寸重新生成
func defaultAt(entry Entry, width, height int) *image.RGBA {
	if img, ok := entry.Image.(*image.RGBA); ok && entry.procedural &&
		img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img
	}
	return Default(width, height)
}

func scale(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func nameFor(index int) string {
	if index >= 0 && index < len(names) {
		return names[index]
	}
	return fmt.Sprintf("Background %d", index+1)
}
