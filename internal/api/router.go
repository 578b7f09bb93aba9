package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/LJTian/TrendPress/internal/storage"
	"github.com/LJTian/TrendPress/internal/tracker"
	"github.com/gin-gonic/gin"
)

// Tracker 是 HTTP 层依赖的运行跟踪器
type Tracker interface {
	Start() (time.Time, error)
	Status() tracker.Status
	Results() (*storage.RunSummary, error)
}

type Server struct {
	tracker Tracker
	now     func() time.Time
}

func NewServer(t Tracker) *Server {
	return &Server{tracker: t, now: time.Now}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	g := r.Group("/trend-news")
	{
		g.POST("", s.trigger)
		g.GET("/status", s.status)
		g.GET("/results", s.results)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

// trigger 立即返回，流水线在后台执行
func (s *Server) trigger(c *gin.Context) {
	startedAt, err := s.tracker.Start()
	if errors.Is(err, tracker.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{
			"status":     "error",
			"message":    "Processing is already running",
			"started_at": startedAt.Format(time.RFC3339),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "internal server error",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":     "started",
		"message":    "Trend news processing started in background",
		"started_at": startedAt.Format(time.RFC3339),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Status())
}

func (s *Server) results(c *gin.Context) {
	summary, err := s.tracker.Results()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "No results available yet",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
