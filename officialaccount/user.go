package officialaccount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShinyNito/wxcred/core"
)

const (
	userInfoPath      = "/cgi-bin/user/info"
	batchUserInfoPath = "/cgi-bin/user/info/batchget"

	// MaxBatchOpenIDs 批量获取用户信息单次最多 100 个 openid
	MaxBatchOpenIDs = 100

	LangZhCN = "zh_CN"
)

// ErrTooManyOpenIDs 批量获取的 openid 超过单次上限，需要调用方自行分批
var ErrTooManyOpenIDs = errors.New("too many openids in one batch")

// UserInfo 用户基本信息
type UserInfo struct {
	Subscribe      int    `json:"subscribe"`
	OpenID         string `json:"openid"`
	Nickname       string `json:"nickname,omitempty"`
	Sex            int    `json:"sex,omitempty"`
	Language       string `json:"language,omitempty"`
	City           string `json:"city,omitempty"`
	Province       string `json:"province,omitempty"`
	Country        string `json:"country,omitempty"`
	HeadImgURL     string `json:"headimgurl,omitempty"`
	SubscribeTime  int64  `json:"subscribe_time,omitempty"`
	UnionID        string `json:"unionid,omitempty"`
	Remark         string `json:"remark,omitempty"`
	GroupID        int    `json:"groupid,omitempty"`
	TagIDList      []int  `json:"tagid_list,omitempty"`
	SubscribeScene string `json:"subscribe_scene,omitempty"`
	QRScene        int    `json:"qr_scene,omitempty"`
	QRSceneStr     string `json:"qr_scene_str,omitempty"`
}

// IsSubscribed 是否关注了公众号
func (u *UserInfo) IsSubscribed() bool {
	return u.Subscribe == 1
}

// FetchUserInfo 获取用户基本信息
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/User_Management/Get_users_basic_information_UnionID.html
func (c *Client) FetchUserInfo(ctx context.Context, openID string) (*UserInfo, error) {
	if strings.TrimSpace(openID) == "" {
		return nil, fmt.Errorf("openid is required")
	}

	resp, err := Request[UserInfo](c).
		Path(userInfoPath).
		Query("openid", openID).
		Query("lang", LangZhCN).
		Kind(core.ErrorKindFetchUserInfo).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type batchUserItem struct {
	OpenID string `json:"openid"`
	Lang   string `json:"lang,omitempty"`
}

type batchUserInfoRequest struct {
	UserList []batchUserItem `json:"user_list"`
}

type batchUserInfoResponse struct {
	UserInfoList []UserInfo `json:"user_info_list"`
}

// BatchFetchUserInfo 批量获取用户基本信息，一次请求，不分批
// openIDs 超过 MaxBatchOpenIDs 时返回 ErrTooManyOpenIDs
func (c *Client) BatchFetchUserInfo(ctx context.Context, openIDs []string) ([]UserInfo, error) {
	if len(openIDs) == 0 {
		return nil, fmt.Errorf("openids are required")
	}
	if len(openIDs) > MaxBatchOpenIDs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyOpenIDs, len(openIDs), MaxBatchOpenIDs)
	}

	req := batchUserInfoRequest{UserList: make([]batchUserItem, 0, len(openIDs))}
	for _, id := range openIDs {
		req.UserList = append(req.UserList, batchUserItem{OpenID: id, Lang: LangZhCN})
	}

	resp, err := Request[batchUserInfoResponse](c).
		Path(batchUserInfoPath).
		Body(req).
		Kind(core.ErrorKindBatchFetchUserInfo).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return resp.UserInfoList, nil
}
