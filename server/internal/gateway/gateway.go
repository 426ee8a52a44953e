package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedlab/server/internal/model"

	"github.com/gorilla/websocket"
)

// EventLogger 是网关依赖的 eventlog 能力。
type EventLogger interface {
	LogEvent(ctx context.Context, payload model.LogEventPayload) (model.Event, error)
	Events() []model.Event
	SessionID(ctx context.Context) string
	Subscribe() (<-chan []model.Event, func())
}

// Config 网关配置
type Config struct {
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	QueueCapacity int
}

// Gateway 把一个 WebSocket 连接接到事件日志上：
// 上行 log_event 经 EventQueue 串行写入日志，下行推送日志快照。
type Gateway struct {
	connID string
	conn   *websocket.Conn
	// gorilla/websocket 不支持并发写，所有写操作持锁。
	connLock sync.Mutex

	events EventLogger
	queue  *EventQueue
	config Config
	logger *slog.Logger

	seqCounter int64
	seqLock    sync.Mutex

	closeChan chan struct{}
	closeOnce sync.Once
}

// New 创建网关，调用 Start 后开始收发。
func New(connID string, conn *websocket.Conn, events EventLogger, config Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}
	g := &Gateway{
		connID:    connID,
		conn:      conn,
		events:    events,
		config:    config,
		logger:    logger.With("component", "gateway", "conn_id", connID),
		closeChan: make(chan struct{}),
	}
	g.queue = NewEventQueue(connID, config.QueueCapacity, g.handleClientMessage, logger)
	return g
}

// Start 推送当前日志快照并启动读循环、推送循环与心跳。
func (g *Gateway) Start(ctx context.Context) error {
	updates, unsubscribe := g.events.Subscribe()

	if err := g.sendToClient(&ServerMessage{
		Type:      MessageEvents,
		SessionID: g.events.SessionID(ctx),
		Events:    nonNil(g.events.Events()),
	}); err != nil {
		unsubscribe()
		return fmt.Errorf("send initial snapshot: %w", err)
	}

	go g.readLoop()
	go g.forwardLoop(updates, unsubscribe)
	go g.pingLoop()

	g.logger.Info("gateway started")
	return nil
}

// Done 在连接关闭后返回。
func (g *Gateway) Done() <-chan struct{} {
	return g.closeChan
}

// readLoop 从客户端读取消息并入队
func (g *Gateway) readLoop() {
	defer g.Close()

	// Close 会把 g.conn 置空，读循环持有自己的引用。
	g.connLock.Lock()
	conn := g.conn
	g.connLock.Unlock()
	if conn == nil {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("client read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// 发送错误给客户端，但不断开连接
			g.sendError("", fmt.Sprintf("invalid message: %v", err))
			continue
		}
		if err := g.queue.Enqueue(&msg); err != nil {
			g.sendError(msg.RequestID, err.Error())
		}
	}
}

// handleClientMessage 在队列协程中串行执行
func (g *Gateway) handleClientMessage(ctx context.Context, msg *ClientMessage) error {
	switch msg.Type {
	case MessageLogEvent:
		if msg.Payload == nil {
			err := errors.New("log_event without payload")
			g.sendError(msg.RequestID, err.Error())
			return err
		}
		evt, err := g.events.LogEvent(ctx, *msg.Payload)
		if err != nil {
			g.sendError(msg.RequestID, err.Error())
			return err
		}
		return g.sendToClient(&ServerMessage{Type: MessageAck, RequestID: msg.RequestID, Event: &evt})
	default:
		err := fmt.Errorf("unknown message type %q", msg.Type)
		g.sendError(msg.RequestID, err.Error())
		return err
	}
}

// forwardLoop 把日志变化推送给客户端
func (g *Gateway) forwardLoop(updates <-chan []model.Event, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-g.closeChan:
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := g.sendToClient(&ServerMessage{Type: MessageEvents, Events: nonNil(snapshot)}); err != nil {
				g.logger.Warn("push snapshot failed", "error", err)
				g.Close()
				return
			}
		}
	}
}

// sendToClient 发送消息给客户端
func (g *Gateway) sendToClient(msg *ServerMessage) error {
	g.seqLock.Lock()
	g.seqCounter++
	msg.Seq = g.seqCounter
	g.seqLock.Unlock()

	if msg.ServerTS.IsZero() {
		msg.ServerTS = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal server message: %w", err)
	}

	g.connLock.Lock()
	defer g.connLock.Unlock()

	if g.conn == nil {
		return errors.New("client connection is closed")
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

func (g *Gateway) sendError(requestID, errMsg string) {
	if err := g.sendToClient(&ServerMessage{Type: MessageError, RequestID: requestID, Error: errMsg}); err != nil {
		g.logger.Warn("send error to client failed", "error", err)
	}
}

// pingLoop 定期发送ping保持连接
func (g *Gateway) pingLoop() {
	ticker := time.NewTicker(g.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.closeChan:
			return
		case <-ticker.C:
			g.connLock.Lock()
			if g.conn != nil {
				_ = g.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second))
			}
			g.connLock.Unlock()
		}
	}
}

// Close 关闭网关
func (g *Gateway) Close() error {
	var closeErr error

	g.closeOnce.Do(func() {
		close(g.closeChan)
		g.queue.Close()

		g.connLock.Lock()
		defer g.connLock.Unlock()
		if g.conn == nil {
			return
		}
		_ = g.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		closeErr = g.conn.Close()
		g.conn = nil
		g.logger.Info("gateway closed", "stats", g.queue.Stats())
	})

	return closeErr
}

func nonNil(events []model.Event) []model.Event {
	if events == nil {
		return []model.Event{}
	}
	return events
}
