package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/chaos-io/playabooth/util"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

var ErrNoImage = errors.New("no captured image")

// Request 一次拍照的合成请求
type Request struct {
	ID              string
	Original        image.Image
	BackgroundIndex int
}

// Result 合成结果；Fallback 为 true 时 Image 是未修改的原图，Err 记录原因
type Result struct {
	ID       string
	Image    image.Image
	Fallback bool
	Err      error
	Duration time.Duration
}

// Pipeline 分割 + 采样 + 合成，任何失败都退回原图
type Pipeline struct {
	Segmenter   Segmenter
	Backgrounds BackgroundSource
	Sampler     *Sampler
	Compositor  *Compositor
}

func NewPipeline(segmenter Segmenter, backgrounds BackgroundSource, sampler *Sampler, compositor *Compositor) *Pipeline {
	if sampler == nil {
		sampler = NewSampler(Nearest)
	}
	if compositor == nil {
		compositor = NewCompositor(DefaultThreshold, ForegroundAbove)
	}
	return &Pipeline{
		Segmenter:   segmenter,
		Backgrounds: backgrounds,
		Sampler:     sampler,
		Compositor:  compositor,
	}
}

type maskFunc func(ctx context.Context, img image.Image) (*Mask, error)

// Process 调用分割模型后合成
func (p *Pipeline) Process(ctx context.Context, req Request) Result {
	return p.run(ctx, req, p.segment)
}

// Compose 使用外部提供的掩码合成，不调用分割模型
func (p *Pipeline) Compose(ctx context.Context, req Request, mask *Mask) Result {
	return p.run(ctx, req, func(context.Context, image.Image) (*Mask, error) {
		return mask, nil
	})
}

func (p *Pipeline) segment(ctx context.Context, img image.Image) (*Mask, error) {
	if p.Segmenter == nil {
		return nil, fmt.Errorf("%w: no segmenter configured", ErrSegmentation)
	}
	mask, err := p.Segmenter.Segment(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSegmentation, err)
	}
	return mask, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, maskFn maskFunc) (res Result) {
	if req.ID == "" {
		req.ID = ksuid.New().String()
	}
	start := time.Now()

	if req.Original == nil {
		return p.fallback(Request{ID: req.ID, Original: image.NewRGBA(image.Rect(0, 0, 1, 1))}, ErrNoImage, start)
	}

	defer func() {
		if r := recover(); r != nil {
			res = p.fallback(req, fmt.Errorf("panic: %v", r), start)
		}
	}()

	out, err := p.compose(ctx, req, maskFn)
	if err != nil {
		return p.fallback(req, err, start)
	}

	res = Result{ID: req.ID, Image: out, Duration: time.Since(start)}
	util.Logger.Info("composite done",
		zap.String("request_id", req.ID),
		zap.Int("background", req.BackgroundIndex),
		zap.Duration("duration", res.Duration))
	return res
}

func (p *Pipeline) compose(ctx context.Context, req Request, maskFn maskFunc) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := req.Original.Bounds()
	width, height := b.Dx(), b.Dy()

	mask, err := maskFn(ctx, req.Original)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grid, err := p.Sampler.Sample(mask, width, height)
	if err != nil {
		return nil, err
	}

	util.Logger.Debug("mask sampled",
		zap.String("request_id", req.ID),
		zap.Int("mask_width", mask.Width),
		zap.Int("mask_height", mask.Height),
		zap.Int("image_width", width),
		zap.Int("image_height", height),
		zap.Stringer("sampling", p.Sampler.Mode))

	if p.Backgrounds == nil {
		return nil, errors.New("no background source configured")
	}
	background := p.Backgrounds.Get(req.BackgroundIndex, width, height)

	out, err := p.Compositor.Blend(req.Original, background, grid)
	if err != nil {
		return nil, err
	}

	// 用户已取消，丢弃结果
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) fallback(req Request, cause error, start time.Time) Result {
	util.Logger.Warn("composite failed, returning original image",
		zap.String("request_id", req.ID),
		zap.Int("background", req.BackgroundIndex),
		zap.Error(cause))
	return Result{
		ID:       req.ID,
		Image:    req.Original,
		Fallback: true,
		Err:      cause,
		Duration: time.Since(start),
	}
}
