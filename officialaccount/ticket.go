package officialaccount

import (
	"context"

	"github.com/ShinyNito/wxcred/core"
)

const (
	accessTokenPath = "/cgi-bin/token"
	getTicketPath   = "/cgi-bin/ticket/getticket"
)

type TicketType string

const (
	TicketTypeJSAPI  TicketType = "jsapi"
	TicketTypeWxCard TicketType = "wx_card"
)

// AccessTokenResponse 获取 access_token 的响应
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TicketResponse 获取 ticket 的响应
type TicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// FetchAccessToken 向微信拉取一次 access_token，不写入仓库、不重试
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/Basic_Information/Get_access_token.html
func (c *Client) FetchAccessToken(ctx context.Context) (*AccessTokenResponse, error) {
	resp, err := core.NewTypedRequest[AccessTokenResponse](c.tokenClient).
		Path(accessTokenPath).
		Query("grant_type", "client_credential").
		Query("appid", c.cfg.AppID).
		Query("secret", c.cfg.AppSecret).
		Kind(core.ErrorKindGetAccessToken).
		WithoutToken().
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchJSAPITicket 向微信拉取一次 jsapi_ticket，依赖可用的 access_token
func (c *Client) FetchJSAPITicket(ctx context.Context) (*TicketResponse, error) {
	return c.FetchTicket(ctx, TicketTypeJSAPI)
}

// FetchTicket 拉取指定类型的 ticket，ticketType 为空时取 jsapi
func (c *Client) FetchTicket(ctx context.Context, ticketType TicketType) (*TicketResponse, error) {
	if ticketType == "" {
		ticketType = TicketTypeJSAPI
	}

	resp, err := Request[TicketResponse](c).
		Path(getTicketPath).
		Query("type", string(ticketType)).
		Kind(core.ErrorKindGetJSAPITicket).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) accessTokenFetcher(ctx context.Context) (core.FetchResult, error) {
	resp, err := c.FetchAccessToken(ctx)
	if err != nil {
		return core.FetchResult{}, err
	}
	return core.FetchResult{Value: resp.AccessToken, ExpiresIn: resp.ExpiresIn}, nil
}

func (c *Client) jsapiTicketFetcher(ctx context.Context) (core.FetchResult, error) {
	resp, err := c.FetchJSAPITicket(ctx)
	if err != nil {
		return core.FetchResult{}, err
	}
	return core.FetchResult{Value: resp.Ticket, ExpiresIn: resp.ExpiresIn}, nil
}
