package report

import "feedlab/server/internal/model"

// Summary 是研究面板展示的汇总视图。
type Summary struct {
	SessionIDs    []string                `json:"sessionIds"`
	Total         int                     `json:"total"`
	CountsByType  map[model.EventType]int `json:"countsByType"`
	ClickSequence []string                `json:"clickSequence"`
	FirstAt       string                  `json:"firstAt,omitempty"`
	LastAt        string                  `json:"lastAt,omitempty"`
}

// Summarize 汇总日志。FirstAt/LastAt 取日志首尾事件的时间戳（插入顺序，而非时间排序）。
func Summarize(log []model.Event) Summary {
	s := Summary{
		SessionIDs:    []string{},
		Total:         len(log),
		CountsByType:  CountsByType(log),
		ClickSequence: ClickSequence(log),
	}
	seen := make(map[string]bool)
	for _, evt := range log {
		if !seen[evt.SessionID] {
			seen[evt.SessionID] = true
			s.SessionIDs = append(s.SessionIDs, evt.SessionID)
		}
	}
	if len(log) > 0 {
		s.FirstAt = log[0].Timestamp
		s.LastAt = log[len(log)-1].Timestamp
	}
	return s
}
