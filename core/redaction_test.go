package core

import (
	"net/url"
	"testing"
)

func TestRedactQueryMap(t *testing.T) {
	in := map[string]string{
		"access_token": "token123",
		"secret":       "secret123",
		"paySign":      "ABCDEF",
		"normal":       "value",
	}

	out := RedactQueryMap(in)

	if out["access_token"] != "***" {
		t.Fatalf("expected access_token to be redacted, got %q", out["access_token"])
	}
	if out["secret"] != "***" {
		t.Fatalf("expected secret to be redacted, got %q", out["secret"])
	}
	if out["paySign"] != "***" {
		t.Fatalf("expected paySign to be redacted, got %q", out["paySign"])
	}
	if out["normal"] != "value" {
		t.Fatalf("expected normal to remain unchanged, got %q", out["normal"])
	}

	// 原始 map 不应被修改
	if in["access_token"] != "token123" {
		t.Fatalf("expected input map unchanged")
	}
}

func TestRedactURLQuery(t *testing.T) {
	raw := "https://api.weixin.qq.com/cgi-bin/ticket/getticket?secret=abc&type=jsapi&access_token=tok"
	redacted := RedactURLQuery(raw)

	parsed, err := url.Parse(redacted)
	if err != nil {
		t.Fatalf("parse redacted url: %v", err)
	}

	if parsed.Query().Get("secret") != "***" {
		t.Fatalf("expected secret to be redacted")
	}
	if parsed.Query().Get("access_token") != "***" {
		t.Fatalf("expected access_token to be redacted")
	}
	if parsed.Query().Get("type") != "jsapi" {
		t.Fatalf("expected type to remain unchanged")
	}
}

func TestRedactValues(t *testing.T) {
	values := url.Values{
		"signature": {"abc"},
		"api_key":   {"k1", "k2"},
		"echostr":   {"hello"},
	}

	out := RedactValues(values)
	if out["api_key"] != "***" {
		t.Fatalf("expected api_key to be redacted, got %q", out["api_key"])
	}
	if out["echostr"] != "hello" || out["signature"] != "abc" {
		t.Fatalf("expected other values to remain unchanged, got %v", out)
	}
	if RedactValues(nil) != nil {
		t.Fatalf("expected nil for empty values")
	}
}
