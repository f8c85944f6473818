// Package cleanup 定时清理过期文件、过期 session、孤立分享和过期的临时演示账号
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Task string

const (
	TaskAll      Task = "all"
	TaskFiles    Task = "files"
	TaskSessions Task = "sessions"
	TaskShares   Task = "shares"
	TaskDemo     Task = "demo"
)

// ErrUnknownTask 未知的清理任务
var ErrUnknownTask = errors.New("unknown cleanup task")

// ParseTask 空字符串视为 all
func ParseTask(s string) (Task, error) {
	switch t := Task(s); t {
	case "":
		return TaskAll, nil
	case TaskAll, TaskFiles, TaskSessions, TaskShares, TaskDemo:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, s)
	}
}

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshare_cleanup_runs_total",
		Help: "Number of cleanup task runs",
	}, []string{"task"})

	sweepRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshare_cleanup_removed_total",
		Help: "Number of items removed by cleanup tasks",
	}, []string{"task"})

	sweepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshare_cleanup_errors_total",
		Help: "Number of failed cleanup tasks",
	}, []string{"task"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fileshare_cleanup_duration_seconds",
		Help:    "Duration of a cleanup run in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ExpiredFileRemover 删除过期文件(记录、分享和存储)
type ExpiredFileRemover interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type SessionPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type OrphanSharePruner interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

type DemoUserPurger interface {
	PurgeExpiredDemoUsers(ctx context.Context, now time.Time) (int, error)
}

// Report 一次清理的结果
type Report struct {
	Task             Task          `json:"task"`
	ExpiredFiles     int           `json:"expiredFiles"`
	ExpiredSessions  int64         `json:"expiredSessions"`
	OrphanShares     int64         `json:"orphanShares"`
	ExpiredDemoUsers int           `json:"expiredDemoUsers"`
	Errors           []string      `json:"errors"`
	Duration         time.Duration `json:"duration"`
}

type Sweeper struct {
	files    ExpiredFileRemover
	sessions SessionPruner
	shares   OrphanSharePruner
	demo     DemoUserPurger
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu     sync.Mutex // RunOnce 和手动触发不会并行
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(
	files ExpiredFileRemover,
	sessions SessionPruner,
	shares OrphanSharePruner,
	demo DemoUserPurger,
	interval time.Duration,
	now func() time.Time,
) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Sweeper{
		files:    files,
		sessions: sessions,
		shares:   shares,
		demo:     demo,
		interval: interval,
		now:      now,
		log:      logger.Named("cleanup"),
	}
}

// Start 立即执行一次，然后每隔 interval 执行
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	s.log.Info("cleanup sweeper started", zap.Duration("interval", s.interval))
}

// Stop 停止后台循环并等待当前一轮结束
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.log.Info("cleanup sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce 按顺序执行全部清理任务
func (s *Sweeper) RunOnce(ctx context.Context) *Report {
	return s.Run(ctx, TaskAll)
}

// Run 执行指定任务，单个任务失败只记录日志和指标，不影响其他任务
func (s *Sweeper) Run(ctx context.Context, task Task) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.now()
	report := &Report{Task: task, Errors: []string{}}

	if task == TaskAll || task == TaskFiles {
		n, err := s.files.DeleteExpired(ctx, now)
		report.ExpiredFiles = n
		s.record(report, TaskFiles, int64(n), err)
	}
	if task == TaskAll || task == TaskSessions {
		n, err := s.sessions.DeleteExpired(ctx, now)
		report.ExpiredSessions = n
		s.record(report, TaskSessions, n, err)
	}
	if task == TaskAll || task == TaskShares {
		n, err := s.shares.DeleteOrphans(ctx)
		report.OrphanShares = n
		s.record(report, TaskShares, n, err)
	}
	if task == TaskAll || task == TaskDemo {
		n, err := s.demo.PurgeExpiredDemoUsers(ctx, now)
		report.ExpiredDemoUsers = n
		s.record(report, TaskDemo, int64(n), err)
	}

	report.Duration = time.Since(start)
	sweepDurationSeconds.Observe(report.Duration.Seconds())
	s.log.Info("cleanup finished",
		zap.String("task", string(task)),
		zap.Int("expiredFiles", report.ExpiredFiles),
		zap.Int64("expiredSessions", report.ExpiredSessions),
		zap.Int64("orphanShares", report.OrphanShares),
		zap.Int("expiredDemoUsers", report.ExpiredDemoUsers),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))
	return report
}

func (s *Sweeper) record(report *Report, task Task, removed int64, err error) {
	label := string(task)
	sweepRunsTotal.WithLabelValues(label).Inc()
	sweepRemovedTotal.WithLabelValues(label).Add(float64(removed))
	if err != nil {
		sweepErrorsTotal.WithLabelValues(label).Inc()
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", label, err))
		s.log.Error("cleanup task failed", zap.String("task", label), zap.Error(err))
	}
}
