package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/chaos-io/playabooth/background"
	"github.com/chaos-io/playabooth/composite"
	"github.com/chaos-io/playabooth/config"
	"github.com/chaos-io/playabooth/gallery"
	"github.com/chaos-io/playabooth/util"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	headerFallback  = "X-Composite-Fallback"
	headerRequestID = "X-Request-Id"
	headerPhoto     = "X-Photo-Name"

	maxPreviewEdge = 4096
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type BackgroundItem struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

type Handler struct {
	cfg         *config.Config
	pipeline    *composite.Pipeline
	backgrounds *background.Collection
	cursor      *background.Cursor
	cache       ResultCache
}

func NewHandler(cfg *config.Config, pipeline *composite.Pipeline, backgrounds *background.Collection, cache ResultCache) *Handler {
	if cache == nil {
		cache = NopCache{}
	}
	return &Handler{
		cfg:         cfg,
		pipeline:    pipeline,
		backgrounds: backgrounds,
		cursor:      backgrounds.NewCursor(),
		cache:       cache,
	}
}

func badRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

// ListBackgrounds 返回全部背景和当前选中的索引
func (h *Handler) ListBackgrounds(c *gin.Context) {
	entries := h.backgrounds.Entries()
	items := make([]BackgroundItem, 0, len(entries))
	for i, e := range entries {
		items = append(items, BackgroundItem{Index: i, Name: e.Name, Source: e.Source})
	}

	c.JSON(http.StatusOK, gin.H{
		"current": h.cursor.Current(),
		"items":   items,
	})
}

func (h *Handler) NextBackground(c *gin.Context) {
	h.respondSelection(c, h.cursor.Next())
}

func (h *Handler) PreviousBackground(c *gin.Context) {
	h.respondSelection(c, h.cursor.Previous())
}

func (h *Handler) SelectBackground(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid background index", err)
		return
	}
	if err := h.cursor.Set(index); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: err.Error()})
		return
	}
	h.respondSelection(c, index)
}

func (h *Handler) respondSelection(c *gin.Context, index int) {
	c.JSON(http.StatusOK, gin.H{
		"index": index,
		"name":  h.backgrounds.Name(index),
	})
}

// PreviewBackground 按请求尺寸返回 PNG 预览，越界索引返回默认渐变
func (h *Handler) PreviewBackground(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid background index", err)
		return
	}

	width, err := queryInt(c, "width", h.cfg.Background.DefaultWidth)
	if err != nil {
		badRequest(c, "invalid width", err)
		return
	}
	height, err := queryInt(c, "height", h.cfg.Background.DefaultHeight)
	if err != nil {
		badRequest(c, "invalid height", err)
		return
	}
	if width <= 0 || height <= 0 || width > maxPreviewEdge || height > maxPreviewEdge {
		badRequest(c, fmt.Sprintf("preview size must be within 1..%d", maxPreviewEdge), nil)
		return
	}

	img := h.backgrounds.Get(index, width, height)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		util.Logger.Error("failed to encode preview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "encode preview failed", Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// Composite 合成上传的照片；携带 mask 文件时跳过分割模型
func (h *Handler) Composite(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required", err)
		return
	}
	if file.Size > h.cfg.Upload.MaxSize {
		badRequest(c, fmt.Sprintf("file exceeds size limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)), nil)
		return
	}
	if !h.isAllowedType(file.Header.Get("Content-Type")) {
		badRequest(c, "unsupported file type, only JPEG/PNG are accepted", nil)
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		badRequest(c, "failed to read image", err)
		return
	}
	original, err := util.DecodeImage(data)
	if err != nil {
		badRequest(c, "failed to decode image", err)
		return
	}
	if h.cfg.Composite.Mirror {
		original = composite.Mirror(original)
	}

	bg := h.cursor.Current()
	if v := c.PostForm("background"); v != "" {
		if bg, err = strconv.Atoi(v); err != nil {
			badRequest(c, "invalid background index", err)
			return
		}
	}

	mask, err := h.formMask(c)
	if err != nil {
		badRequest(c, "invalid mask", err)
		return
	}

	ctx := c.Request.Context()
	req := composite.Request{ID: ksuid.New().String(), Original: original, BackgroundIndex: bg}

	// 只缓存走分割模型的结果，外部掩码每次都不同
	cacheKey := ""
	if mask == nil {
		cacheKey = resultKey(util.BytesMD5(data), bg)
		cached, err := h.cache.Get(ctx, cacheKey)
		if err != nil {
			util.Logger.Warn("failed to get cache", zap.Error(err))
		}
		if cached != nil {
			util.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
			if c.PostForm("save") == "true" {
				img, err := util.DecodeImage(cached)
				if err != nil {
					util.Logger.Warn("failed to decode cached result", zap.Error(err))
					img = original
				}
				if !h.save(c, img) {
					return
				}
			}
			h.writeJPEG(c, req.ID, false, cached)
			return
		}
	}

	var res composite.Result
	if mask != nil {
		res = h.pipeline.Compose(ctx, req, mask)
	} else {
		res = h.pipeline.Process(ctx, req)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, res.Image, imaging.JPEG, imaging.JPEGQuality(h.cfg.Gallery.JPEGQuality)); err != nil {
		util.Logger.Error("failed to encode result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "encode result failed", Error: err.Error()})
		return
	}

	if cacheKey != "" && !res.Fallback {
		if err := h.cache.Set(ctx, cacheKey, buf.Bytes()); err != nil {
			util.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}

	if !h.save(c, res.Image) {
		return
	}
	h.writeJPEG(c, res.ID, res.Fallback, buf.Bytes())
}

// save 在请求带 save=true 时写入相册，失败时已写出错误响应并返回 false
func (h *Handler) save(c *gin.Context, img image.Image) bool {
	if c.PostForm("save") != "true" {
		return true
	}

	path, err := gallery.Save(img, h.cfg.Gallery.Dir, h.cfg.Gallery.JPEGQuality)
	if err != nil {
		util.Logger.Error("failed to save photo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "save photo failed", Error: err.Error()})
		return false
	}
	c.Header(headerPhoto, filepath.Base(path))
	return true
}

func (h *Handler) writeJPEG(c *gin.Context, id string, fallback bool, data []byte) {
	c.Header(headerRequestID, id)
	c.Header(headerFallback, strconv.FormatBool(fallback))
	c.Data(http.StatusOK, "image/jpeg", data)
}

// ListPhotos 列出相册，最新的在前
func (h *Handler) ListPhotos(c *gin.Context) {
	photos, err := gallery.List(h.cfg.Gallery.Dir)
	if err != nil {
		util.Logger.Error("failed to list photos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "list photos failed", Error: err.Error()})
		return
	}
	if photos == nil {
		photos = []gallery.Photo{}
	}
	c.JSON(http.StatusOK, gin.H{"items": photos})
}

// formMask 解析可选的 mask 文件，未提供时返回 nil
func (h *Handler) formMask(c *gin.Context) (*composite.Mask, error) {
	file, err := c.FormFile("mask")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}

	width, err := strconv.Atoi(c.PostForm("mask_width"))
	if err != nil {
		return nil, fmt.Errorf("mask_width: %w", err)
	}
	height, err := strconv.Atoi(c.PostForm("mask_height"))
	if err != nil {
		return nil, fmt.Errorf("mask_height: %w", err)
	}
	encoding, err := composite.ParseEncoding(c.PostForm("mask_encoding"))
	if err != nil {
		return nil, err
	}

	data, err := readFormFile(file)
	if err != nil {
		return nil, err
	}
	return &composite.Mask{Width: width, Height: height, Encoding: encoding, Data: data}, nil
}

func (h *Handler) isAllowedType(contentType string) bool {
	for _, t := range h.cfg.Upload.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
