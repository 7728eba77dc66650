package payment

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/clbanning/mxj/v2"
)

// Params 微信支付 XML 报文的平铺键值
type Params map[string]string

// MarshalXML 按 key 排序输出为 <xml><k>v</k>...</xml>，空值跳过
func (p Params) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	root := xml.StartElement{Name: xml.Name{Local: "xml"}}
	if err := e.EncodeToken(root); err != nil {
		return err
	}

	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := e.EncodeElement(p[k], xml.StartElement{Name: xml.Name{Local: k}}); err != nil {
			return err
		}
	}
	if err := e.EncodeToken(root.End()); err != nil {
		return err
	}
	return e.Flush()
}

// ParseParams 将 <xml> 报文解析为平铺键值，签名校验需要报文中的全部字段
func ParseParams(body []byte) (Params, error) {
	mv, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	root, ok := mv["xml"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse xml: missing <xml> root")
	}

	params := make(Params, len(root))
	for k, v := range root {
		switch val := v.(type) {
		case string:
			params[k] = val
		case nil:
			params[k] = ""
		default:
			params[k] = fmt.Sprint(val)
		}
	}
	return params, nil
}
