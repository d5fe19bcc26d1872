package segment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/chaos-io/playabooth/composite"
	"github.com/chaos-io/playabooth/util"
	nhttp "github.com/chaos-io/playabooth/util/http"
	"go.uber.org/zap"
)

// Remote 通过 HTTP 调用外部分割服务
type Remote struct {
	url     string
	timeout time.Duration
	cli     nhttp.IClient
}

func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url:     url,
		timeout: timeout,
		cli:     nhttp.NewHTTPClient(),
	}
}

// maskResponse 分割服务的返回，Data 为 base64 编码的掩码
type maskResponse struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

/*
	curl -X POST "$SEGMENT_URL" -F "image=@capture.png"

{"width": 256, "height": 256, "encoding": "byte", "data": "AAAA..."}
*/
func (r *Remote) Segment(ctx context.Context, img image.Image) (*composite.Mask, error) {
	defer util.Trace("Remote.Segment")()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	b := img.Bounds()

	resp := &maskResponse{}
	reqParam := &nhttp.RequestParam{
		RequestURI: r.url,
		Method:     http.MethodPost,
		Form: &nhttp.MultipartForm{
			Fields: map[string]string{
				"width":  strconv.Itoa(b.Dx()),
				"height": strconv.Itoa(b.Dy()),
			},
			Files: []nhttp.FormFile{{Field: "image", FileName: "capture.png", Content: buf.Bytes()}},
		},
		Response: resp,
		Timeout:  r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	encoding, err := composite.ParseEncoding(resp.Encoding)
	if err != nil {
		return nil, err
	}

	util.Logger.Debug("got remote mask",
		zap.Int("width", resp.Width),
		zap.Int("height", resp.Height),
		zap.String("encoding", encoding.String()),
		zap.Int("bytes", len(resp.Data)))

	return &composite.Mask{
		Width:    resp.Width,
		Height:   resp.Height,
		Encoding: encoding,
		Data:     resp.Data,
	}, nil
}
