package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout 单次任务的执行超时
const DefaultJobTimeout = 30 * time.Second

var (
	// ErrJobNotFound 按名称找不到任务
	ErrJobNotFound = errors.New("scheduler: job not found")
	// ErrDuplicateJob 任务名称重复
	ErrDuplicateJob = errors.New("scheduler: duplicate job")
	// ErrAlreadyStarted 调度器已启动
	ErrAlreadyStarted = errors.New("scheduler: already started")
)

// JobFunc 一次任务执行，只尝试一次，失败时返回错误
type JobFunc func(ctx context.Context) error

// FailureHook 任务失败时的回调，例如发送告警
type FailureHook func(ctx context.Context, job string, err error)

// Refresher 可被定时刷新的凭证，core.CredentialManager 实现了该接口
type Refresher interface {
	RefreshToken(ctx context.Context) (string, error)
}

// RefreshJob 将凭证刷新包装为任务，刷新结果不返回给调度器
func RefreshJob(r Refresher) JobFunc {
	return func(ctx context.Context) error {
		_, err := r.RefreshToken(ctx)
		return err
	}
}

type job struct {
	name     string
	schedule cron.Schedule
	run      JobFunc
	entryID  cron.EntryID
}

// Option 调度器选项
type Option func(*Scheduler)

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailureHook 设置任务失败回调
func WithFailureHook(hook FailureHook) Option {
	return func(s *Scheduler) {
		s.onFailure = hook
	}
}

// WithLocation 设置计算整点所用的时区，默认 time.Local
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithJobTimeout 设置单次任务超时，0 表示不设超时
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = timeout
	}
}

// Scheduler 凭证刷新调度器
//
// 任务按注册顺序保存；同一任务上一次执行未结束时跳过本次触发，panic 会被恢复。
// 任务失败只记录日志并调用 FailureHook，不重试，凭证保持旧值。
type Scheduler struct {
	cron      *cron.Cron
	logger    *slog.Logger
	onFailure FailureHook
	location  *time.Location
	timeout   time.Duration

	mu      sync.Mutex
	jobs    []*job
	byName  map[string]*job
	baseCtx context.Context
	started bool
}

// New 创建调度器
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   slog.Default(),
		location: time.Local,
		timeout:  DefaultJobTimeout,
		byName:   make(map[string]*job),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s
}

// Add 注册任务
func (s *Scheduler) Add(name string, schedule cron.Schedule, run JobFunc) error {
	if name == "" {
		return fmt.Errorf("scheduler: job name is required")
	}
	if schedule == nil || run == nil {
		return fmt.Errorf("scheduler: job %q needs a schedule and a func", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{name: name, schedule: schedule, run: run}
	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		_ = s.execute(s.context(), j)
	}))
	s.jobs = append(s.jobs, j)
	s.byName[name] = j
	return nil
}

// Start 启动定时器
// runOnStart 为 true 时先按注册顺序同步执行一遍全部任务，失败不影响启动
func (s *Scheduler) Start(ctx context.Context, runOnStart bool) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.baseCtx = context.WithoutCancel(ctx)
	jobs := append([]*job(nil), s.jobs...)
	s.mu.Unlock()

	if runOnStart {
		for _, j := range jobs {
			_ = s.execute(ctx, j)
		}
	}

	s.cron.Start()
	for _, j := range jobs {
		s.logger.InfoContext(ctx, "job scheduled",
			slog.String("job", j.name),
			slog.Time("next", s.cron.Entry(j.entryID).Next),
		)
	}
	return nil
}

// Stop 停止定时器并等待正在执行的任务结束，ctx 结束时提前返回
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Trigger 立即同步执行指定任务一次
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j)
}

// Next 返回任务的下一次触发时间，启动前按当前时间计算
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	j, ok := s.byName[name]
	started := s.started
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if started {
		if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
			return next, nil
		}
	}
	return j.schedule.Next(time.Now().In(s.location)), nil
}

// Jobs 按注册顺序返回任务名称
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := j.run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "job failed",
			slog.String("job", j.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		if s.onFailure != nil {
			s.onFailure(ctx, j.name, err)
		}
		return err
	}

	s.logger.InfoContext(ctx, "job succeeded",
		slog.String("job", j.name),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
