package officialaccount

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ShinyNito/wxcred/core"
)

const (
	defaultOAuthBaseURL    = "https://open.weixin.qq.com"
	oauthAuthorizePath     = "/connect/oauth2/authorize"
	oauthAccessTokenPath   = "/sns/oauth2/access_token"
	oauthRedirectFragment  = "wechat_redirect"
	ScopeSnsapiBase        = "snsapi_base"
	ScopeSnsapiUserInfo    = "snsapi_userinfo"
	oauthGrantTypeAuthCode = "authorization_code"
)

// OAuthAccessToken 网页授权 access_token，与基础 access_token 不同
type OAuthAccessToken struct {
	AccessToken    string `json:"access_token"`
	ExpiresIn      int    `json:"expires_in"`
	RefreshToken   string `json:"refresh_token"`
	OpenID         string `json:"openid"`
	Scope          string `json:"scope"`
	UnionID        string `json:"unionid,omitempty"`
	IsSnapshotUser int    `json:"is_snapshotuser,omitempty"`
}

// OAuthCodeURL 生成网页授权跳转地址
// scope 为空时使用 snsapi_base
func (c *Client) OAuthCodeURL(redirectURI, scope, state string) string {
	if scope == "" {
		scope = ScopeSnsapiBase
	}

	// 微信要求参数顺序固定，不能用 url.Values.Encode 排序
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(c.cfg.OAuthBaseURL, "/"))
	sb.WriteString(oauthAuthorizePath)
	sb.WriteString("?appid=")
	sb.WriteString(url.QueryEscape(c.cfg.AppID))
	sb.WriteString("&redirect_uri=")
	sb.WriteString(url.QueryEscape(redirectURI))
	sb.WriteString("&response_type=code&scope=")
	sb.WriteString(url.QueryEscape(scope))
	sb.WriteString("&state=")
	sb.WriteString(url.QueryEscape(state))
	sb.WriteString("#")
	sb.WriteString(oauthRedirectFragment)
	return sb.String()
}

// ExchangeOAuthCode 通过网页授权 code 换取 access_token 与 openid
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/OA_Web_Apps/Wechat_webpage_authorization.html
func (c *Client) ExchangeOAuthCode(ctx context.Context, code string) (*OAuthAccessToken, error) {
	if strings.TrimSpace(code) == "" {
		return nil, core.NewWechatError(core.ErrorKindGetOAuthCode, core.SystemErrorCode, "code is empty")
	}

	resp, err := core.NewTypedRequest[OAuthAccessToken](c.tokenClient).
		Path(oauthAccessTokenPath).
		Query("appid", c.cfg.AppID).
		Query("secret", c.cfg.AppSecret).
		Query("code", code).
		Query("grant_type", oauthGrantTypeAuthCode).
		Kind(core.ErrorKindGetOAuthAccessToken).
		WithoutToken().
		Get(ctx)
	if err != nil {
		return nil, err
	}
	if resp.OpenID == "" {
		return nil, core.NewSystemError(core.ErrorKindGetOAuthAccessToken, fmt.Errorf("openid missing in response"))
	}
	return &resp, nil
}

// GetOAuthOpenID 通过网页授权 code 获取 openid
func (c *Client) GetOAuthOpenID(ctx context.Context, code string) (string, error) {
	token, err := c.ExchangeOAuthCode(ctx, code)
	if err != nil {
		return "", err
	}
	return token.OpenID, nil
}
