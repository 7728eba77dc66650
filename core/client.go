package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://api.weixin.qq.com"
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

type ClientConfig struct {
	BaseURL       string
	HTTPClient    *http.Client
	TokenProvider AccessTokenProvider
	Logger        *slog.Logger
}

type Client struct {
	httpClient    *http.Client
	baseURL       *url.URL
	tokenProvider AccessTokenProvider
	logger        *slog.Logger
}

// Response 原始 HTTP 响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewHTTPClient 创建带连接/读取超时的 HTTP 客户端
// connectTimeout 或 readTimeout 不大于 0 时使用默认值
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	return &http.Client{
		Transport: transport,
		Timeout:   connectTimeout + readTimeout,
	}
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:    httpClient,
		baseURL:       parsedBaseURL,
		tokenProvider: cfg.TokenProvider,
		logger:        logger,
	}, nil
}

func (c *Client) Logger() *slog.Logger {
	return c.logger
}

func (c *Client) Request() *RequestBuilder {
	return newRequestBuilder(c)
}

func (c *Client) buildURL(path string, query map[string]string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}

	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		values := u.Query()
		for key, value := range query {
			values.Set(key, value)
		}
		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

// buildParams 合并查询参数，需要时注入 access_token
func (c *Client) buildParams(ctx context.Context, query map[string]string, withToken bool) (map[string]string, error) {
	params := make(map[string]string, len(query)+1)
	for key, value := range query {
		params[key] = value
	}
	if !withToken {
		return params, nil
	}
	if c.tokenProvider == nil {
		return nil, fmt.Errorf("access token provider is not configured")
	}

	token, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	params["access_token"] = token
	return params, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query map[string]string, body []byte, contentType string) (*Response, error) {
	reqURL, err := c.buildURL(path, query)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(body) > 0 && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logRequest(ctx, method, reqURL, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logResponse(ctx, resp.StatusCode, resp.Header.Get("Content-Type"), respBody)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) logRequest(ctx context.Context, method, rawURL string, body []byte) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("url", RedactURLQuery(rawURL)),
	}
	if len(body) > 0 {
		attrs = append(attrs, slog.String("body", string(body)))
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "http request", attrs...)
}

func (c *Client) logResponse(ctx context.Context, statusCode int, contentType string, body []byte) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{slog.Int("status", statusCode)}
	if len(body) > 0 {
		if isTextContent(contentType) {
			attrs = append(attrs, slog.String("body", truncateBody(body, 1024)))
		} else {
			attrs = append(attrs, slog.Int("body_size", len(body)))
		}
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "http response", attrs...)
}

func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "json") ||
		strings.Contains(contentType, "xml")
}
