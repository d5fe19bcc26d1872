package background

import (
	"context"
	"fmt"
	"image"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// ScaledCache 缓存缩放后的背景，按像素字节数计费
type ScaledCache struct {
	cache *cache.Cache[*image.RGBA]
}

func NewScaledCache(maxBytes int64) (*ScaledCache, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)
	return &ScaledCache{cache: cache.New[*image.RGBA](ristrettoStore)}, nil
}

func (s *ScaledCache) get(ctx context.Context, key string) (*image.RGBA, bool) {
	img, err := s.cache.Get(ctx, key)
	if err != nil || img == nil {
		return nil, false
	}
	return img, true
}

func (s *ScaledCache) set(ctx context.Context, key string, img *image.RGBA) {
	_ = s.cache.Set(ctx, key, img, store.WithCost(int64(len(img.Pix))))
}

func (s *ScaledCache) clear(ctx context.Context) {
	_ = s.cache.Clear(ctx)
}
