package officialaccount

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/ShinyNito/wxcred/core"
)

const getMediaPath = "/cgi-bin/media/get"

// Media 临时素材内容
type Media struct {
	ContentType string `json:"-"`
	Filename    string `json:"-"`
	Data        []byte `json:"-"`
	// VideoURL 视频素材返回下载地址而不是文件内容
	VideoURL string `json:"video_url"`
}

// GetTemporaryMedia 获取临时素材
//
// 成功时微信直接返回文件内容；失败或视频素材时返回 JSON
func (c *Client) GetTemporaryMedia(ctx context.Context, mediaID string) (*Media, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, fmt.Errorf("media_id is required")
	}

	resp, err := c.apiClient.Request().
		Path(getMediaPath).
		Query("media_id", mediaID).
		Kind(core.ErrorKindGetTemporaryMedia).
		Get(ctx)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if isJSONContent(contentType) || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.Decode[*Media](core.ErrorKindGetTemporaryMedia, core.FormatJSON, resp.StatusCode, resp.Body)
	}

	media := &Media{
		ContentType: contentType,
		Data:        resp.Body,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		media.Filename = params["filename"]
	}
	return media, nil
}

func isJSONContent(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json") ||
		strings.HasPrefix(strings.ToLower(contentType), "text/plain")
}
