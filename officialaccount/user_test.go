package officialaccount

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/ShinyNito/wxcred/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchUserInfo(t *testing.T) {
	f := newFakeWechat(t)
	f.handle(userInfoPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "o6_bmjrPTlm6_2sgVt7hMZOPfL2M", q.Get("openid"))
		assert.Equal(t, "zh_CN", q.Get("lang"))
		assert.Equal(t, "ACCESS", q.Get("access_token"))
		writeJSON(w, map[string]any{
			"subscribe":      1,
			"openid":         "o6_bmjrPTlm6_2sgVt7hMZOPfL2M",
			"language":       "zh_CN",
			"subscribe_time": 1382694957,
			"unionid":        "o6_bmasdasdsad6_2sgVt7hMZOPfL",
			"remark":         "",
			"groupid":        0,
			"tagid_list":     []int{128, 2},
		})
	})
	c := f.newClient()

	info, err := c.FetchUserInfo(context.Background(), "o6_bmjrPTlm6_2sgVt7hMZOPfL2M")
	require.NoError(t, err)
	assert.True(t, info.IsSubscribed())
	assert.Equal(t, int64(1382694957), info.SubscribeTime)
	assert.Equal(t, []int{128, 2}, info.TagIDList)
}

func TestFetchUserInfo_Errors(t *testing.T) {
	f := newFakeWechat(t)
	f.handleJSON(userInfoPath, map[string]any{"errcode": 40003, "errmsg": "invalid openid"})
	c := f.newClient()

	_, err := c.FetchUserInfo(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, 0, f.callCount(userInfoPath))

	_, err = c.FetchUserInfo(context.Background(), "bad")
	var we *core.WechatError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, core.ErrorKindFetchUserInfo, we.Kind)
	assert.Equal(t, "40003", we.ErrCode)
}

func TestBatchFetchUserInfo(t *testing.T) {
	f := newFakeWechat(t)
	f.handle(batchUserInfoPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body := readJSON(t, r)
		list, ok := body["user_list"].([]any)
		require.True(t, ok)
		require.Len(t, list, 2)
		assert.Equal(t, map[string]any{"openid": "o1", "lang": "zh_CN"}, list[0])
		writeJSON(w, map[string]any{
			"user_info_list": []map[string]any{
				{"subscribe": 1, "openid": "o1", "nickname": "band"},
				{"subscribe": 0, "openid": "o2"},
			},
		})
	})
	c := f.newClient()

	users, err := c.BatchFetchUserInfo(context.Background(), []string{"o1", "o2"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "band", users[0].Nickname)
	assert.False(t, users[1].IsSubscribed())
}

func TestBatchFetchUserInfo_Limits(t *testing.T) {
	f := newFakeWechat(t)
	f.handleJSON(batchUserInfoPath, map[string]any{"user_info_list": []any{}})
	c := f.newClient()
	ctx := context.Background()

	_, err := c.BatchFetchUserInfo(ctx, nil)
	require.Error(t, err)

	ids := make([]string, MaxBatchOpenIDs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("o%d", i)
	}
	_, err = c.BatchFetchUserInfo(ctx, ids)
	require.ErrorIs(t, err, ErrTooManyOpenIDs)
	assert.Equal(t, 0, f.callCount(batchUserInfoPath), "超限时不分批也不发请求")

	_, err = c.BatchFetchUserInfo(ctx, ids[:MaxBatchOpenIDs])
	require.NoError(t, err)
	assert.Equal(t, 1, f.callCount(batchUserInfoPath))
}

func TestBatchFetchUserInfo_ProviderError(t *testing.T) {
	f := newFakeWechat(t)
	f.handleJSON(batchUserInfoPath, map[string]any{"errcode": 40001, "errmsg": "invalid credential"})
	c := f.newClient()

	_, err := c.BatchFetchUserInfo(context.Background(), []string{"o1"})
	assert.Equal(t, core.ErrorKindBatchFetchUserInfo, core.KindOf(err))
}
