package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/chaos-io/playabooth/composite"
	"github.com/chaos-io/playabooth/util"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

var ErrModelClosed = errors.New("onnx model closed")

// ONNXConfig 端侧人像分割模型配置，默认对应 256x256 NHWC 的自拍分割模型
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string
	InputWidth  int
	InputHeight int
	InputName   string
	OutputName  string
}

func (c *ONNXConfig) withDefaults() {
	if c.InputWidth <= 0 {
		c.InputWidth = 256
	}
	if c.InputHeight <= 0 {
		c.InputHeight = 256
	}
	if c.InputName == "" {
		c.InputName = "input_1"
	}
	if c.OutputName == "" {
		c.OutputName = "activation_10"
	}
}

// ONNX 使用 onnxruntime 在本地推理，输出模型分辨率的浮点掩码
type ONNX struct {
	mu     sync.Mutex
	cfg    ONNXConfig
	closed bool

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	cfg.withDefaults()

	if cfg.LibraryPath != "" {
		// 必须在 InitializeEnvironment 之前设置
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}

	w, h := int64(cfg.InputWidth), int64(cfg.InputHeight)
	input, err := ort.NewTensor(ort.NewShape(1, h, w, 3), make([]float32, h*w*3))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewTensor(ort.NewShape(1, h, w, 1), make([]float32, h*w))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	util.Logger.Info("onnx segmenter ready",
		zap.String("model", cfg.ModelPath),
		zap.Int("input_width", cfg.InputWidth),
		zap.Int("input_height", cfg.InputHeight))

	return &ONNX{cfg: cfg, session: session, input: input, output: output}, nil
}

func (o *ONNX) Segment(ctx context.Context, img image.Image) (*composite.Mask, error) {
	defer util.Trace("ONNX.Segment")()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrModelClosed
	}

	fillNHWC(o.input.GetData(), img, o.cfg.InputWidth, o.cfg.InputHeight)
	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	// 会话返回后推理结果已无意义
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]float32, len(o.output.GetData()))
	copy(values, o.output.GetData())
	return composite.NewFloatMask(o.cfg.InputWidth, o.cfg.InputHeight, values), nil
}

// Close 释放会话和张量，可重复调用
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	return errors.Join(o.session.Destroy(), o.input.Destroy(), o.output.Destroy())
}

// fillNHWC 把 img 缩放到 w x h 并按 NHWC 写入 [0,1] 的 RGB 值
func fillNHWC(dst []float32, img image.Image, w, h int) {
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	i := 0
	for p := 0; p < len(scaled.Pix) && i+2 < len(dst); p += 4 {
		dst[i] = float32(scaled.Pix[p]) / 255
		dst[i+1] = float32(scaled.Pix[p+1]) / 255
		dst[i+2] = float32(scaled.Pix[p+2]) / 255
		i += 3
	}
}
