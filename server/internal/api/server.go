package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"

	"feedlab/server/internal/config"
	"feedlab/server/internal/eventlog"
	"feedlab/server/internal/export"
	"feedlab/server/internal/feed"
	"feedlab/server/internal/gateway"
	"feedlab/server/internal/model"
	"feedlab/server/internal/report"
	"feedlab/server/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Server struct {
	config     *config.Config
	events     *eventlog.Logger
	feed       *feed.Service
	sink       export.Sink
	capability storage.Capability
	logger     *slog.Logger

	connSeq atomic.Int64

	// WebSocket upgrader
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, events *eventlog.Logger, feedService *feed.Service, sink export.Sink, capability storage.Capability, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:     cfg,
		events:     events,
		feed:       feedService,
		sink:       sink,
		capability: capability,
		logger:     logger.With("component", "api"),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowedOrigin(origin)
		},
	}
	return s
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api")
	api.GET("/session", s.handleSession)
	api.GET("/events", s.handleListEvents)
	api.POST("/events", s.handleLogEvent)
	api.DELETE("/events", s.handleClearEvents)
	api.GET("/report", s.handleReport)
	api.GET("/export/:format", s.handleDownload)
	api.POST("/export", s.handleExport)
	api.GET("/stream", s.handleStream)

	api.GET("/posts", s.handlePosts)
	api.POST("/feed/impressions", s.handleImpressions)
	api.POST("/feed/close", s.handleCloseDetail)
	api.POST("/posts/:id/select", s.handleSelectPost)
	api.POST("/posts/:id/like", s.handleToggleLike)
	api.POST("/posts/:id/save", s.handleToggleSave)
	return engine
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": s.capability.String()})
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessionId": s.events.SessionID(c.Request.Context()),
		"storage":   s.capability.String(),
	})
}

// handleListEvents 按插入顺序返回全部事件。
func (s *Server) handleListEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.events.Events())
}

// handleLogEvent 接收调用方的事件载荷；词表外的类型在解码阶段即被拒绝。
func (s *Server) handleLogEvent(c *gin.Context) {
	var payload model.LogEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, model.ErrInvalidEventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	evt, err := s.events.LogEvent(c.Request.Context(), payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, evt)
}

func (s *Server) handleClearEvents(c *gin.Context) {
	s.events.ClearEvents(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReport(c *gin.Context) {
	c.JSON(http.StatusOK, report.Summarize(s.events.Events()))
}

// handleDownload 以附件形式返回导出文件，文件名带会话 ID。
func (s *Server) handleDownload(c *gin.Context) {
	format := report.Format(c.Param("format"))
	body, err := report.Render(s.events.Events(), format)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown export format"})
		return
	}
	name := report.FileName(s.events.SessionID(c.Request.Context()), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, format.ContentType()+"; charset=utf-8", []byte(body))
}

type exportResponse struct {
	SessionID string            `json:"sessionId"`
	Events    int               `json:"events"`
	Locations map[string]string `json:"locations"`
}

// handleExport 把 JSON 与 CSV 两份导出交给配置的落地方式（本地目录或 S3）。
func (s *Server) handleExport(c *gin.Context) {
	ctx := c.Request.Context()
	events := s.events.Events()
	sessionID := s.events.SessionID(ctx)

	resp := exportResponse{SessionID: sessionID, Events: len(events), Locations: map[string]string{}}
	for _, format := range []report.Format{report.FormatJSON, report.FormatCSV} {
		body, err := report.Render(events, format)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "render export failed"})
			return
		}
		location, err := s.sink.Offer(ctx, report.FileName(sessionID, format), format.ContentType(), []byte(body))
		if err != nil {
			// 详细错误只进服务端日志
			s.logger.Error("offer export failed", "format", format, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		resp.Locations[string(format)] = location
	}
	s.logger.Info("events exported", "session_id", sessionID, "events", len(events))
	c.JSON(http.StatusOK, resp)
}

// handleStream 处理 WebSocket 连接，把连接交给 Gateway 直到关闭。
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("upgrade websocket failed", "error", err)
		return
	}

	connID := fmt.Sprintf("ws-%d", s.connSeq.Add(1))
	gw := gateway.New(connID, conn, s.events, gateway.Config{
		PingInterval:  s.config.Stream.PingInterval,
		WriteTimeout:  s.config.Server.WriteTimeout,
		QueueCapacity: s.config.Stream.QueueCapacity,
	}, s.logger)
	if err := gw.Start(c.Request.Context()); err != nil {
		s.logger.Warn("start gateway failed", "conn_id", connID, "error", err)
		_ = gw.Close()
		return
	}

	// 阻塞直到连接关闭
	<-gw.Done()
}

func (s *Server) handlePosts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"posts":        s.feed.Posts(),
		"activePostId": s.feed.ActivePostID(),
	})
}

func (s *Server) handleImpressions(c *gin.Context) {
	n, err := s.feed.LogImpressions(c.Request.Context())
	if err != nil {
		s.feedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": n})
}

func (s *Server) handleSelectPost(c *gin.Context) {
	if err := s.feed.Select(c.Request.Context(), c.Param("id")); err != nil {
		s.feedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activePostId": s.feed.ActivePostID()})
}

func (s *Server) handleCloseDetail(c *gin.Context) {
	if err := s.feed.Close(c.Request.Context()); err != nil {
		s.feedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleToggleLike(c *gin.Context) {
	post, err := s.feed.ToggleLike(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.feedError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleToggleSave(c *gin.Context) {
	post, err := s.feed.ToggleSave(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.feedError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) feedError(c *gin.Context, err error) {
	if errors.Is(err, feed.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	s.logger.Error("feed interaction failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "log event failed"})
}

func (s *Server) allowedOrigin(origin string) bool {
	return slices.Contains(s.config.CORS.AllowedOrigins, origin)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.allowedOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
