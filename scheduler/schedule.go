package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultTokenOffset access_token 在每小时的第 0 分钟刷新
	DefaultTokenOffset = 0
	// DefaultTicketOffset jsapi_ticket 在每小时的第 30 分钟刷新，与 token 错开
	DefaultTicketOffset = 30 * time.Minute
)

// hourlyAt 每小时整点后固定偏移量触发
type hourlyAt struct {
	offset time.Duration
}

// HourlyAt 返回每小时第 offset 时刻触发的 cron.Schedule
// offset 必须位于 [0, 1h) 内
func HourlyAt(offset time.Duration) (cron.Schedule, error) {
	if offset < 0 || offset >= time.Hour {
		return nil, fmt.Errorf("hourly offset %s out of range [0, 1h)", offset)
	}
	return hourlyAt{offset: offset}, nil
}

// MustHourlyAt 同 HourlyAt，offset 非法时 panic
func MustHourlyAt(offset time.Duration) cron.Schedule {
	s, err := HourlyAt(offset)
	if err != nil {
		panic(err)
	}
	return s
}

// Next 返回严格晚于 t 的下一次触发时间，按 t 所在时区的整点计算
func (h hourlyAt) Next(t time.Time) time.Time {
	hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	next := hour.Add(h.offset)
	if !next.After(t) {
		next = next.Add(time.Hour)
	}
	return next
}

func (h hourlyAt) String() string {
	return fmt.Sprintf("hourly at +%s", h.offset)
}
