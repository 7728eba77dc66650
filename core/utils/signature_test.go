package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayKey = "192006250b4c09247ec02edce69f6a2d"

func testPayParams() map[string]string {
	return map[string]string{
		"appid":       "wxd930ea5d5a258f4f",
		"mch_id":      "10000100",
		"device_info": "1000",
		"body":        "test",
		"nonce_str":   "ibuaiVcKdpRxkhJA",
	}
}

func TestSHA1Sign(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		want   string
	}{
		{
			name:   "sorted automatically",
			params: []string{"nonce", "token", "timestamp"},
			want:   "6db4861c77e0633e0105672fcd41c9fc2766e26e",
		},
		{
			name:   "single param",
			params: []string{"abc"},
			want:   "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SHA1Sign(tt.params...))
		})
	}
}

func TestVerifySignature(t *testing.T) {
	assert.True(t, VerifySignature("f43b4a6571a6552356f482636e5a77e7fa33dcc9", "1409304348", "xxxxxx", "token"))
	assert.False(t, VerifySignature("invalid", "1409304348", "xxxxxx", "token"))
}

func TestJSAPISign(t *testing.T) {
	got := JSAPISign(
		"sM4AOVdWfPE4DxkXGEs8VMCPGGVi4C3VM0P37wVUCFvkVAy_90u5h9nbSlYy3-Sl-HhTdfl2fzFy1AOcHKP7qg",
		"Wm3WZYTPz0wzccnW",
		1414587457,
		"http://mp.weixin.qq.com?params=value",
	)
	assert.Equal(t, "0f9de62fce790f9a083d5c99e95740ceb90c27ed", got)
}

func TestSortedQuery(t *testing.T) {
	params := testPayParams()
	params["sign"] = "SHOULD-SKIP"
	params["attach"] = ""

	assert.Equal(t,
		"appid=wxd930ea5d5a258f4f&body=test&device_info=1000&mch_id=10000100&nonce_str=ibuaiVcKdpRxkhJA",
		SortedQuery(params),
	)
	assert.Empty(t, SortedQuery(nil))
}

func TestPaySign(t *testing.T) {
	tests := []struct {
		name     string
		signType string
		want     string
		wantErr  bool
	}{
		{name: "默认MD5", signType: "", want: "9A0A8659F005D6984697E2CA0A9CF3B7"},
		{name: "MD5", signType: SignTypeMD5, want: "9A0A8659F005D6984697E2CA0A9CF3B7"},
		{name: "HMAC-SHA256", signType: SignTypeHMACSHA256, want: "6A9AE1657590FD6257D693A078E1C3E4BB6BA4DC30B23E0EE2496E54170DACD6"},
		{name: "不支持的类型", signType: "RSA", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PaySign(testPayParams(), testPayKey, tt.signType)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyPaySign(t *testing.T) {
	params := testPayParams()
	params["sign"] = "9A0A8659F005D6984697E2CA0A9CF3B7"
	assert.True(t, VerifyPaySign(params, testPayKey, ""))

	assert.False(t, VerifyPaySign(params, testPayKey, SignTypeHMACSHA256))

	params["body"] = "tampered"
	assert.False(t, VerifyPaySign(params, testPayKey, ""))

	delete(params, "sign")
	assert.False(t, VerifyPaySign(params, testPayKey, ""))
}

func TestHMACSHA256(t *testing.T) {
	assert.Equal(t, "9307b3b915efb5171ff14d8cb55fbcc798c6c0ef1456d66ded1a6aa723a58b7b", HMACSHA256("hello", "key"))
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(16)
	require.NoError(t, err)
	assert.Len(t, s, 16)

	_, err = RandomString(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}
