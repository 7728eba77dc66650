package officialaccount

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/ShinyNito/wxcred/core"
)

// 消息类型
const (
	MsgTypeText       = "text"
	MsgTypeImage      = "image"
	MsgTypeVoice      = "voice"
	MsgTypeVideo      = "video"
	MsgTypeShortVideo = "shortvideo"
	MsgTypeLocation   = "location"
	MsgTypeLink       = "link"
	MsgTypeMusic      = "music"
	MsgTypeNews       = "news"
	MsgTypeEvent      = "event"
)

// 事件类型
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventScan        = "SCAN"
	EventLocation    = "LOCATION"
	EventClick       = "CLICK"
	EventView        = "VIEW"
)

// MaxReplyArticles 被动回复图文消息的条数上限
const MaxReplyArticles = 8

// Message 微信推送到服务器的普通消息或事件，不同类型只填充各自的字段
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/Message_Management/Receiving_standard_messages.html
type Message struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	MsgID        int64    `xml:"MsgId"`

	Content string `xml:"Content"`

	PicURL       string `xml:"PicUrl"`
	MediaID      string `xml:"MediaId"`
	Format       string `xml:"Format"`
	Recognition  string `xml:"Recognition"`
	ThumbMediaID string `xml:"ThumbMediaId"`

	LocationX float64 `xml:"Location_X"`
	LocationY float64 `xml:"Location_Y"`
	Scale     int     `xml:"Scale"`
	Label     string  `xml:"Label"`

	Title       string `xml:"Title"`
	Description string `xml:"Description"`
	URL         string `xml:"Url"`

	Event     string  `xml:"Event"`
	EventKey  string  `xml:"EventKey"`
	Ticket    string  `xml:"Ticket"`
	Latitude  float64 `xml:"Latitude"`
	Longitude float64 `xml:"Longitude"`
	Precision float64 `xml:"Precision"`
}

// IsEvent 是否为事件推送
func (m *Message) IsEvent() bool {
	return m.MsgType == MsgTypeEvent
}

// ParseMessage 解析明文模式下的消息推送
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := xml.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if msg.MsgType == "" || msg.FromUserName == "" {
		return nil, errors.New("parse message: missing MsgType or FromUserName")
	}
	return &msg, nil
}

// Article 图文消息中的一条
type Article struct {
	Title       string
	Description string
	PicURL      string
	URL         string
}

type Video struct {
	MediaID     string
	Title       string
	Description string
}

type Music struct {
	Title        string
	Description  string
	MusicURL     string
	HQMusicURL   string
	ThumbMediaID string
}

// Reply 被动回复消息，由 Render 按收到的消息填充收发双方
type Reply struct {
	msgType  string
	content  string
	mediaID  string
	video    Video
	music    Music
	articles []Article
}

func TextReply(content string) *Reply {
	return &Reply{msgType: MsgTypeText, content: content}
}

// ImageReply mediaID 来自素材管理接口
func ImageReply(mediaID string) *Reply {
	return &Reply{msgType: MsgTypeImage, mediaID: mediaID}
}

func VoiceReply(mediaID string) *Reply {
	return &Reply{msgType: MsgTypeVoice, mediaID: mediaID}
}

func VideoReply(video Video) *Reply {
	return &Reply{msgType: MsgTypeVideo, video: video}
}

func MusicReply(music Music) *Reply {
	return &Reply{msgType: MsgTypeMusic, music: music}
}

// NewsReply 第一条图文显示为大图
func NewsReply(articles ...Article) *Reply {
	return &Reply{msgType: MsgTypeNews, articles: articles}
}

// MsgType 返回回复的消息类型
func (r *Reply) MsgType() string {
	return r.msgType
}

type replyXML struct {
	XMLName      xml.Name     `xml:"xml"`
	ToUserName   core.CDATA   `xml:"ToUserName"`
	FromUserName core.CDATA   `xml:"FromUserName"`
	CreateTime   int64        `xml:"CreateTime"`
	MsgType      core.CDATA   `xml:"MsgType"`
	Content      *core.CDATA  `xml:"Content,omitempty"`
	Image        *mediaXML    `xml:"Image,omitempty"`
	Voice        *mediaXML    `xml:"Voice,omitempty"`
	Video        *videoXML    `xml:"Video,omitempty"`
	Music        *musicXML    `xml:"Music,omitempty"`
	ArticleCount int          `xml:"ArticleCount,omitempty"`
	Articles     *articlesXML `xml:"Articles,omitempty"`
}

type mediaXML struct {
	MediaID core.CDATA `xml:"MediaId"`
}

type videoXML struct {
	MediaID     core.CDATA  `xml:"MediaId"`
	Title       *core.CDATA `xml:"Title,omitempty"`
	Description *core.CDATA `xml:"Description,omitempty"`
}

type musicXML struct {
	Title        *core.CDATA `xml:"Title,omitempty"`
	Description  *core.CDATA `xml:"Description,omitempty"`
	MusicURL     *core.CDATA `xml:"MusicUrl,omitempty"`
	HQMusicURL   *core.CDATA `xml:"HQMusicUrl,omitempty"`
	ThumbMediaID core.CDATA  `xml:"ThumbMediaId"`
}

type articlesXML struct {
	Items []articleXML `xml:"item"`
}

type articleXML struct {
	Title       core.CDATA `xml:"Title"`
	Description core.CDATA `xml:"Description"`
	PicURL      core.CDATA `xml:"PicUrl"`
	URL         core.CDATA `xml:"Url"`
}

func optionalCDATA(s string) *core.CDATA {
	if s == "" {
		return nil
	}
	return &core.CDATA{Value: s}
}

// Render 生成对 msg 的被动回复报文，收发双方与 msg 相反
func (r *Reply) Render(msg *Message, now time.Time) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("render reply: message is nil")
	}

	out := replyXML{
		ToUserName:   core.CDATA{Value: msg.FromUserName},
		FromUserName: core.CDATA{Value: msg.ToUserName},
		CreateTime:   now.Unix(),
		MsgType:      core.CDATA{Value: r.msgType},
	}

	switch r.msgType {
	case MsgTypeText:
		out.Content = &core.CDATA{Value: r.content}
	case MsgTypeImage, MsgTypeVoice:
		if r.mediaID == "" {
			return nil, fmt.Errorf("render %s reply: media id is required", r.msgType)
		}
		media := &mediaXML{MediaID: core.CDATA{Value: r.mediaID}}
		if r.msgType == MsgTypeImage {
			out.Image = media
		} else {
			out.Voice = media
		}
	case MsgTypeVideo:
		if r.video.MediaID == "" {
			return nil, errors.New("render video reply: media id is required")
		}
		out.Video = &videoXML{
			MediaID:     core.CDATA{Value: r.video.MediaID},
			Title:       optionalCDATA(r.video.Title),
			Description: optionalCDATA(r.video.Description),
		}
	case MsgTypeMusic:
		if r.music.ThumbMediaID == "" {
			return nil, errors.New("render music reply: thumb media id is required")
		}
		out.Music = &musicXML{
			Title:        optionalCDATA(r.music.Title),
			Description:  optionalCDATA(r.music.Description),
			MusicURL:     optionalCDATA(r.music.MusicURL),
			HQMusicURL:   optionalCDATA(r.music.HQMusicURL),
			ThumbMediaID: core.CDATA{Value: r.music.ThumbMediaID},
		}
	case MsgTypeNews:
		if len(r.articles) == 0 || len(r.articles) > MaxReplyArticles {
			return nil, fmt.Errorf("render news reply: need 1 to %d articles, got %d", MaxReplyArticles, len(r.articles))
		}
		items := make([]articleXML, 0, len(r.articles))
		for _, a := range r.articles {
			items = append(items, articleXML{
				Title:       core.CDATA{Value: a.Title},
				Description: core.CDATA{Value: a.Description},
				PicURL:      core.CDATA{Value: a.PicURL},
				URL:         core.CDATA{Value: a.URL},
			})
		}
		out.ArticleCount = len(items)
		out.Articles = &articlesXML{Items: items}
	default:
		return nil, fmt.Errorf("render reply: unsupported msg type %q", r.msgType)
	}

	return xml.Marshal(out)
}
