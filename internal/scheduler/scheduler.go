package scheduler

import (
	"errors"
	"log"
	"time"

	"github.com/LJTian/TrendPress/internal/tracker"
	"github.com/robfig/cron/v3"
)

// Starter 由 tracker.Tracker 实现；定时触发与 HTTP 触发走同一个入口，
// 保证同一时刻最多一次运行
type Starter interface {
	Start() (time.Time, error)
}

type Scheduler struct {
	cron    *cron.Cron
	starter Starter
}

func New(spec string, starter Starter) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		starter: starter,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，不等待已启动的运行结束
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runOnce() {
	startedAt, err := s.starter.Start()
	if errors.Is(err, tracker.ErrAlreadyRunning) {
		log.Printf("scheduler: skip, run in progress since %s", startedAt.Format(time.RFC3339))
		return
	}
	if err != nil {
		log.Printf("scheduler: start run error: %v", err)
		return
	}
	log.Printf("scheduler: run started at %s", startedAt.Format(time.RFC3339))
}
