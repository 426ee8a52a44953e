// Package report 从事件日志派生统计视图与导出格式，全部是无副作用的纯函数。
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"feedlab/server/internal/model"
)

// CSVColumns 是 CSV 导出的固定列。
var CSVColumns = []string{"id", "sessionId", "postId", "eventType", "timestamp", "likes", "saves", "liked", "saved", "detailOpen"}

// CountByType 统计指定类型的事件数。
func CountByType(log []model.Event, t model.EventType) int {
	n := 0
	for _, evt := range log {
		if evt.EventType == t {
			n++
		}
	}
	return n
}

// CountsByType 统计全部类型的事件数，词表里的每个类型都有条目（可能为 0）。
func CountsByType(log []model.Event) map[model.EventType]int {
	counts := make(map[model.EventType]int, len(model.EventTypes))
	for _, t := range model.EventTypes {
		counts[t] = 0
	}
	for _, evt := range log {
		counts[evt.EventType]++
	}
	return counts
}

// ClickSequence 按日志顺序返回所有带 postId 的 card_click 的 postId，用于还原打开顺序。
func ClickSequence(log []model.Event) []string {
	seq := []string{}
	for _, evt := range log {
		if evt.EventType == model.EventCardClick && evt.PostID != "" {
			seq = append(seq, evt.PostID)
		}
	}
	return seq
}

// ToJSON 以两空格缩进输出完整日志；空日志输出 "[]"。
func ToJSON(log []model.Event) (string, error) {
	if log == nil {
		log = []model.Event{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// 与浏览器端 JSON.stringify 一致，不转义 <、>、&。
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ToCSV 输出固定列的 CSV：每个字段都加引号，内部引号写成两个引号，行之间用 "\n"。
// 缺失的可选字段输出为空字符串；空日志只有表头。
func ToCSV(log []model.Event) string {
	var b strings.Builder
	writeRow(&b, CSVColumns)
	for _, evt := range log {
		b.WriteByte('\n')
		writeRow(&b, csvRecord(evt))
	}
	return b.String()
}

func csvRecord(evt model.Event) []string {
	record := []string{evt.ID, evt.SessionID, evt.PostID, string(evt.EventType), evt.Timestamp, "", "", "", "", ""}
	if s := evt.State; s != nil {
		record[5] = strconv.Itoa(s.Likes)
		record[6] = strconv.Itoa(s.Saves)
		record[7] = strconv.FormatBool(s.Liked)
		record[8] = strconv.FormatBool(s.Saved)
		if s.DetailOpen != nil {
			record[9] = strconv.FormatBool(*s.DetailOpen)
		}
	}
	return record
}

func writeRow(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
}

// Format 是导出格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType 返回导出格式对应的 MIME 类型。
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// FileName 返回以会话 ID 命名的导出文件名。
func FileName(sessionID string, f Format) string {
	return fmt.Sprintf("xhs-events-%s.%s", sessionID, f)
}

// Render 按格式序列化日志。
func Render(log []model.Event, f Format) (string, error) {
	switch f {
	case FormatJSON:
		return ToJSON(log)
	case FormatCSV:
		return ToCSV(log), nil
	default:
		return "", fmt.Errorf("unknown export format %q", f)
	}
}
