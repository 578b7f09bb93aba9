package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/LJTian/TrendPress/internal/storage"
)

var (
	// ErrAlreadyRunning 表示已有一次运行在进行中
	ErrAlreadyRunning = errors.New("tracker: pipeline already running")
	// ErrNotAvailable 表示还没有可用的运行结果
	ErrNotAvailable = errors.New("tracker: results not available")
)

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Runner 执行一次流水线，成功返回 true
type Runner interface {
	Run(ctx context.Context) bool
}

// ResultsLoader 读取最近一次运行的汇总
type ResultsLoader interface {
	LoadResults() (*storage.RunSummary, error)
}

// Status 是对外暴露的状态快照，未设置的字段序列化为 null
type Status struct {
	IsRunning  bool       `json:"is_running"`
	LastRun    *time.Time `json:"last_run"`
	LastStatus *RunStatus `json:"last_status"`
}

// Tracker 保证同一时刻最多只有一次运行，并记录最近一次运行的状态与结果
type Tracker struct {
	runner Runner
	loader ResultsLoader

	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastStatus RunStatus
	results    *storage.RunSummary

	wg  sync.WaitGroup
	now func() time.Time
}

func New(runner Runner, loader ResultsLoader) *Tracker {
	return &Tracker{
		runner: runner,
		loader: loader,
		now:    time.Now,
	}
}

// Start 在后台启动一次运行并立即返回开始时间；
// 已在运行时返回 ErrAlreadyRunning 以及当前运行的开始时间
func (t *Tracker) Start() (time.Time, error) {
	t.mu.Lock()
	if t.running {
		startedAt := t.lastRun
		t.mu.Unlock()
		return startedAt, ErrAlreadyRunning
	}
	t.running = true
	t.lastRun = t.now()
	startedAt := t.lastRun
	t.wg.Add(1)
	t.mu.Unlock()

	log.Printf("tracker: run started at %s", startedAt.Format(time.RFC3339))
	go t.execute()
	return startedAt, nil
}

func (t *Tracker) execute() {
	defer t.wg.Done()

	ok := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("tracker: run panicked: %v", r)
			}
		}()
		// 运行与触发它的请求解耦，请求结束不影响运行
		ok = t.runner.Run(context.Background())
	}()

	status := RunError
	if ok {
		status = RunSuccess
	}

	// 无论成败都尝试读取磁盘上最近一次的汇总
	var summary *storage.RunSummary
	s, err := t.loader.LoadResults()
	switch {
	case errors.Is(err, storage.ErrNoResults):
	case err != nil:
		log.Printf("tracker: load results: %v", err)
	default:
		summary = s
	}

	t.mu.Lock()
	t.running = false
	t.lastStatus = status
	if summary != nil {
		t.results = summary
	}
	t.mu.Unlock()
	log.Printf("tracker: run finished with status %s", status)
}

// Status 返回当前状态快照，不修改任何状态
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := Status{IsRunning: t.running}
	if !t.lastRun.IsZero() {
		lastRun := t.lastRun
		st.LastRun = &lastRun
	}
	if t.lastStatus != "" {
		lastStatus := t.lastStatus
		st.LastStatus = &lastStatus
	}
	return st
}

// Results 返回最近一次运行结束后载入的汇总
func (t *Tracker) Results() (*storage.RunSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.results == nil {
		return nil, ErrNotAvailable
	}
	return t.results, nil
}

// Wait 阻塞直到后台运行结束，用于优雅退出
func (t *Tracker) Wait() {
	t.wg.Wait()
}
