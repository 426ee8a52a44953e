package gateway

import (
	"context"
	"time"

	"feedlab/server/internal/model"
)

// MessageType 定义了网关收发的消息类型
type MessageType string

const (
	// 客户端 -> 服务端
	MessageLogEvent MessageType = "log_event" // 记录一条交互事件

	// 服务端 -> 客户端
	MessageEvents MessageType = "events" // 日志快照（连接建立时与每次变更后）
	MessageAck    MessageType = "ack"    // log_event 处理成功
	MessageError  MessageType = "error"  // 处理失败，连接保持
)

// ClientMessage 客户端发送给网关的消息（WebSocket文本帧）
type ClientMessage struct {
	Type      MessageType            `json:"type"`
	RequestID string                 `json:"requestId,omitempty"` // 客户端关联 ack 用
	Payload   *model.LogEventPayload `json:"payload,omitempty"`
}

// ServerMessage 网关发送给客户端的消息
type ServerMessage struct {
	Type      MessageType   `json:"type"`
	Seq       int64         `json:"seq"` // 服务端序号
	RequestID string        `json:"requestId,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Event     *model.Event  `json:"event,omitempty"`
	Events    []model.Event `json:"events,omitzero"` // nil 省略；events 帧用 nonNil 保证空日志也输出 []
	ServerTS  time.Time     `json:"serverTs"`
	Error     string        `json:"error,omitempty"`
}

// EventHandler 处理一条客户端消息。
type EventHandler func(ctx context.Context, msg *ClientMessage) error
