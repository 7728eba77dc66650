package officialaccount

import (
	"context"
	"fmt"

	"github.com/ShinyNito/wxcred/core"
)

const (
	createMenuPath = "/cgi-bin/menu/create"
	deleteMenuPath = "/cgi-bin/menu/delete"

	maxTopButtons = 3
	maxSubButtons = 5
)

// 按钮类型
const (
	ButtonTypeClick           = "click"
	ButtonTypeView            = "view"
	ButtonTypeScancodePush    = "scancode_push"
	ButtonTypeScancodeWaitmsg = "scancode_waitmsg"
	ButtonTypePicSysphoto     = "pic_sysphoto"
	ButtonTypePicPhotoOrAlbum = "pic_photo_or_album"
	ButtonTypePicWeixin       = "pic_weixin"
	ButtonTypeLocationSelect  = "location_select"
	ButtonTypeMiniProgram     = "miniprogram"
	ButtonTypeArticleID       = "article_id"
)

// Menu 自定义菜单
type Menu struct {
	Buttons []Button `json:"button"`
}

// Button 菜单按钮，SubButtons 非空时为二级菜单的父按钮
type Button struct {
	Type       string   `json:"type,omitempty"`
	Name       string   `json:"name"`
	Key        string   `json:"key,omitempty"`
	URL        string   `json:"url,omitempty"`
	MediaID    string   `json:"media_id,omitempty"`
	AppID      string   `json:"appid,omitempty"`
	PagePath   string   `json:"pagepath,omitempty"`
	ArticleID  string   `json:"article_id,omitempty"`
	SubButtons []Button `json:"sub_button,omitempty"`
}

// NewCompositeButton 创建带二级菜单的按钮
func NewCompositeButton(name string, subs ...Button) Button {
	return Button{Name: name, SubButtons: subs}
}

// Validate 检查菜单数量限制：一级最多 3 个，二级最多 5 个
func (m *Menu) Validate() error {
	if len(m.Buttons) == 0 {
		return fmt.Errorf("menu has no buttons")
	}
	if len(m.Buttons) > maxTopButtons {
		return fmt.Errorf("menu has %d top buttons, at most %d", len(m.Buttons), maxTopButtons)
	}
	for _, b := range m.Buttons {
		if len(b.SubButtons) > maxSubButtons {
			return fmt.Errorf("button %q has %d sub buttons, at most %d", b.Name, len(b.SubButtons), maxSubButtons)
		}
	}
	return nil
}

// CreateMenu 创建自定义菜单，会覆盖已有菜单
func (c *Client) CreateMenu(ctx context.Context, menu *Menu) error {
	if menu == nil {
		return fmt.Errorf("menu is nil")
	}
	if err := menu.Validate(); err != nil {
		return err
	}

	_, err := Request[struct{}](c).
		Path(createMenuPath).
		Body(menu).
		Kind(core.ErrorKindCreateMenu).
		Post(ctx)
	return err
}

// DeleteMenu 删除当前自定义菜单
func (c *Client) DeleteMenu(ctx context.Context) error {
	_, err := Request[struct{}](c).
		Path(deleteMenuPath).
		Kind(core.ErrorKindDeleteMenu).
		Get(ctx)
	return err
}
