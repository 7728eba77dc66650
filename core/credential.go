package core

import (
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DocumentedMaxExpiresIn 微信文档给出的 access_token/jsapi_ticket 有效期上限
	DocumentedMaxExpiresIn = 7200 * time.Second
	// DefaultExpiryMargin 相对真实过期时间的提前量，7200 秒时等价于签发后 100 分钟过期
	DefaultExpiryMargin = 20 * time.Minute
)

// CredentialKind 凭证类型
type CredentialKind int

const (
	CredentialAccessToken CredentialKind = iota
	CredentialJSAPITicket
)

func (k CredentialKind) String() string {
	if k == CredentialJSAPITicket {
		return "jsapi_ticket"
	}
	return "access_token"
}

// Credential 某一时刻的凭证快照，写入后不可修改
type Credential struct {
	Value     string    `json:"value"`
	ExpiresIn int       `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired 判断凭证在 now 时刻是否已过计算出的过期时间
func (c *Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ComputeExpiry 计算凭证的本地过期时间
//
// 过期时间 = 签发时间 + min(expiresIn, 7200s) - margin，始终早于真实过期时间。
// expiresIn 不大于 0 时按 7200 秒处理；expiresIn 不大于 margin 时取其一半；
// margin 不大于 0 时使用 DefaultExpiryMargin。
func ComputeExpiry(issuedAt time.Time, expiresIn int, margin time.Duration) time.Time {
	if margin <= 0 {
		margin = DefaultExpiryMargin
	}

	ttl := time.Duration(expiresIn) * time.Second
	if ttl <= 0 {
		ttl = DocumentedMaxExpiresIn
	}
	ttl = min(ttl, DocumentedMaxExpiresIn)

	if ttl <= margin {
		return issuedAt.Add(ttl / 2)
	}
	return issuedAt.Add(ttl - margin)
}

// StoreOption 凭证仓库选项
type StoreOption func(*CredentialStore)

// WithClock 替换时钟，测试时使用
func WithClock(now func() time.Time) StoreOption {
	return func(s *CredentialStore) {
		s.now = now
	}
}

// WithExpiryMargin 设置过期提前量，不大于 0 时保留默认值
func WithExpiryMargin(margin time.Duration) StoreOption {
	return func(s *CredentialStore) {
		if margin > 0 {
			s.margin = margin
		}
	}
}

// CredentialStore 进程内当前 access_token 与 jsapi_ticket 的持有者
//
// 两个凭证相互独立，每次写入都整体替换快照指针，读方不会看到新值与旧过期时间的组合。
type CredentialStore struct {
	token  atomic.Pointer[Credential]
	ticket atomic.Pointer[Credential]
	now    func() time.Time
	margin time.Duration
}

// NewCredentialStore 创建空的凭证仓库
func NewCredentialStore(opts ...StoreOption) *CredentialStore {
	s := &CredentialStore{
		now:    time.Now,
		margin: DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAccessToken 替换当前 access_token 并重新计算过期时间
func (s *CredentialStore) SetAccessToken(token string, expiresIn int, issuedAt time.Time) error {
	return s.Set(CredentialAccessToken, token, expiresIn, issuedAt)
}

// AccessToken 返回当前 access_token，从未写入时返回 ErrUninitializedCredential
func (s *CredentialStore) AccessToken() (string, error) {
	return s.Value(CredentialAccessToken)
}

// IsExpired 判断 access_token 是否已过本地过期时间，未初始化视为过期
func (s *CredentialStore) IsExpired() bool {
	return s.IsKindExpired(CredentialAccessToken)
}

// SetTicket 替换当前 jsapi_ticket
func (s *CredentialStore) SetTicket(ticket string, expiresIn int, issuedAt time.Time) error {
	return s.Set(CredentialJSAPITicket, ticket, expiresIn, issuedAt)
}

// Ticket 返回当前 jsapi_ticket，从未写入时返回 ErrUninitializedCredential
func (s *CredentialStore) Ticket() (string, error) {
	return s.Value(CredentialJSAPITicket)
}

// IsTicketExpired 判断 jsapi_ticket 是否已过本地过期时间
func (s *CredentialStore) IsTicketExpired() bool {
	return s.IsKindExpired(CredentialJSAPITicket)
}

// Set 写入指定类型的凭证
func (s *CredentialStore) Set(kind CredentialKind, value string, expiresIn int, issuedAt time.Time) error {
	if strings.TrimSpace(value) == "" {
		return ErrEmptyCredential
	}
	s.slot(kind).Store(&Credential{
		Value:     value,
		ExpiresIn: expiresIn,
		IssuedAt:  issuedAt,
		ExpiresAt: ComputeExpiry(issuedAt, expiresIn, s.margin),
	})
	return nil
}

// Restore 写入一个已有的快照（例如从共享缓存恢复）
// 快照中的过期时间晚于按签发时间重新计算的结果时，以重新计算的为准。
func (s *CredentialStore) Restore(kind CredentialKind, cred Credential) error {
	if strings.TrimSpace(cred.Value) == "" {
		return ErrEmptyCredential
	}
	cred = s.clampExpiry(cred)
	s.slot(kind).Store(&cred)
	return nil
}

func (s *CredentialStore) clampExpiry(cred Credential) Credential {
	if limit := ComputeExpiry(cred.IssuedAt, cred.ExpiresIn, s.margin); cred.ExpiresAt.IsZero() || cred.ExpiresAt.After(limit) {
		cred.ExpiresAt = limit
	}
	return cred
}

// Snapshot 返回指定类型凭证的快照副本
func (s *CredentialStore) Snapshot(kind CredentialKind) (Credential, error) {
	cred := s.slot(kind).Load()
	if cred == nil {
		return Credential{}, ErrUninitializedCredential
	}
	return *cred, nil
}

// Value 返回指定类型凭证的值
func (s *CredentialStore) Value(kind CredentialKind) (string, error) {
	cred := s.slot(kind).Load()
	if cred == nil {
		return "", ErrUninitializedCredential
	}
	return cred.Value, nil
}

// IsKindExpired 判断指定类型凭证是否已过期
func (s *CredentialStore) IsKindExpired(kind CredentialKind) bool {
	cred := s.slot(kind).Load()
	if cred == nil {
		return true
	}
	return cred.IsExpired(s.now())
}

// Now 返回仓库使用的当前时间
func (s *CredentialStore) Now() time.Time {
	return s.now()
}

func (s *CredentialStore) slot(kind CredentialKind) *atomic.Pointer[Credential] {
	if kind == CredentialJSAPITicket {
		return &s.ticket
	}
	return &s.token
}
