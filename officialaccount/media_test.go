package officialaccount

import (
	"context"
	"net/http"
	"testing"

	"github.com/ShinyNito/wxcred/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTemporaryMedia(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantData  string
		wantName  string
		wantVideo string
		wantErr   bool
	}{
		{
			name: "图片文件",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "MEDIA", r.URL.Query().Get("media_id"))
				w.Header().Set("Content-Type", "image/jpeg")
				w.Header().Set("Content-Disposition", `attachment; filename="MEDIA.jpg"`)
				_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
			},
			wantData: "\xff\xd8\xff",
			wantName: "MEDIA.jpg",
		},
		{
			name: "视频返回下载地址",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"video_url": "http://video.example/v.mp4"})
			},
			wantVideo: "http://video.example/v.mp4",
		},
		{
			name: "素材不存在",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write([]byte(`{"errcode":40007,"errmsg":"invalid media_id"}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeWechat(t)
			f.handle(getMediaPath, tt.handler)
			c := f.newClient()

			media, err := c.GetTemporaryMedia(context.Background(), "MEDIA")
			if tt.wantErr {
				assert.Equal(t, core.ErrorKindGetTemporaryMedia, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, string(media.Data))
			assert.Equal(t, tt.wantName, media.Filename)
			assert.Equal(t, tt.wantVideo, media.VideoURL)
		})
	}
}

func TestGetTemporaryMedia_EmptyID(t *testing.T) {
	c, err := New(Config{AppID: "appid", AppSecret: "secret"})
	require.NoError(t, err)

	_, err = c.GetTemporaryMedia(context.Background(), "")
	require.Error(t, err)
}
