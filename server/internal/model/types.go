package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEventType 表示事件类型不在固定词表中。
var ErrInvalidEventType = errors.New("invalid event type")

// EventType 是交互事件类型，取值只能来自固定词表。
type EventType string

const (
	EventFeedImpression EventType = "feed_impression"
	EventCardClick      EventType = "card_click"
	EventOpenDetail     EventType = "open_detail"
	EventCloseDetail    EventType = "close_detail"
	EventLike           EventType = "like"
	EventUnlike         EventType = "unlike"
	EventSave           EventType = "save"
	EventUnsave         EventType = "unsave"
)

// EventTypes 按导出/展示顺序列出全部事件类型。
// 新增交互必须显式扩展这里，不能在运行时推断新值。
var EventTypes = []EventType{
	EventFeedImpression,
	EventCardClick,
	EventOpenDetail,
	EventCloseDetail,
	EventLike,
	EventUnlike,
	EventSave,
	EventUnsave,
}

// Valid 判断事件类型是否属于固定词表。
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEventType 把外部输入转换为 EventType，不认识的值返回 ErrInvalidEventType。
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return t, nil
}

// UnmarshalJSON 在解码边界拒绝词表外的类型，避免把脏数据写进日志。
func (t *EventType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseEventType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PostStateSnapshot 记录事件发生“之后”贴文的互动状态。
type PostStateSnapshot struct {
	Likes      int   `json:"likes"`
	Saves      int   `json:"saves"`
	Liked      bool  `json:"liked"`
	Saved      bool  `json:"saved"`
	DetailOpen *bool `json:"detailOpen,omitempty"`
}

// Clone 深拷贝快照，nil 返回 nil。
func (s *PostStateSnapshot) Clone() *PostStateSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.DetailOpen != nil {
		out.DetailOpen = Bool(*s.DetailOpen)
	}
	return &out
}

// Event 是一条不可变的交互记录。字段名与浏览器端导出格式保持一致。
type Event struct {
	ID        string             `json:"id"`
	SessionID string             `json:"sessionId"`
	PostID    string             `json:"postId,omitempty"`
	EventType EventType          `json:"eventType"`
	Timestamp string             `json:"timestamp"`
	State     *PostStateSnapshot `json:"state,omitempty"`
}

// Clone 返回与原事件不共享任何指针的副本。
func (e Event) Clone() Event {
	e.State = e.State.Clone()
	return e
}

// CloneEvents 深拷贝事件切片，nil 输入返回空切片。
func CloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, evt := range events {
		out[i] = evt.Clone()
	}
	return out
}

// LogEventPayload 是调用方交给 EventLogger 的语义载荷。
// Timestamp 为空时由 logger 用注入的时钟补齐。
type LogEventPayload struct {
	PostID    string             `json:"postId,omitempty"`
	EventType EventType          `json:"eventType"`
	State     *PostStateSnapshot `json:"state,omitempty"`
	Timestamp string             `json:"timestamp,omitempty"`
}

// TimestampLayout 是事件时间戳格式：UTC、毫秒精度的 ISO-8601。
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp 按 TimestampLayout 格式化时间。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Bool 返回指向 b 的指针，便于填写可选的 DetailOpen。
func Bool(b bool) *bool {
	return &b
}
