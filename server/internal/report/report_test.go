package report

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"feedlab/server/internal/model"
)

func scenarioLog() []model.Event {
	closed := model.PostState{Likes: 0}
	liked := model.PostState{Likes: 1, Liked: true}
	return []model.Event{
		{ID: "e1", SessionID: "s1", PostID: "post-1", EventType: model.EventCardClick, Timestamp: "2024-01-01T00:00:01.000Z", State: closed.Snapshot(false)},
		{ID: "e2", SessionID: "s1", PostID: "post-1", EventType: model.EventOpenDetail, Timestamp: "2024-01-01T00:00:02.000Z", State: closed.Snapshot(true)},
		{ID: "e3", SessionID: "s1", PostID: "post-1", EventType: model.EventLike, Timestamp: "2024-01-01T00:00:03.000Z", State: liked.Snapshot(true)},
		{ID: "e4", SessionID: "s1", PostID: "post-1", EventType: model.EventCloseDetail, Timestamp: "2024-01-01T00:00:04.000Z", State: liked.Snapshot(false)},
	}
}

// TestScenarioViews 验证典型场景下的统计视图：点击、打开、点赞、关闭。
func TestScenarioViews(t *testing.T) {
	log := scenarioLog()
	if got := CountByType(log, model.EventLike); got != 1 {
		t.Fatalf("expected 1 like, got %d", got)
	}
	seq := ClickSequence(log)
	if len(seq) != 1 || seq[0] != "post-1" {
		t.Fatalf("expected [post-1], got %v", seq)
	}
	counts := CountsByType(log)
	if counts[model.EventSave] != 0 || counts[model.EventOpenDetail] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if len(counts) != len(model.EventTypes) {
		t.Fatalf("expected every event type in counts, got %d entries", len(counts))
	}
}

// TestClickSequenceSkipsMissingPost 验证没有 postId 的点击不进入序列，且保持日志顺序。
func TestClickSequenceSkipsMissingPost(t *testing.T) {
	log := []model.Event{
		{EventType: model.EventCardClick, PostID: "post-2"},
		{EventType: model.EventCardClick},
		{EventType: model.EventOpenDetail, PostID: "post-9"},
		{EventType: model.EventCardClick, PostID: "post-1"},
		{EventType: model.EventCardClick, PostID: "post-2"},
	}
	got := ClickSequence(log)
	want := []string{"post-2", "post-1", "post-2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestEmptyExports 验证空日志导出为只有表头的 CSV 与空 JSON 数组。
func TestEmptyExports(t *testing.T) {
	if got := ToCSV(nil); got != `"id","sessionId","postId","eventType","timestamp","likes","saves","liked","saved","detailOpen"` {
		t.Fatalf("unexpected header-only csv: %s", got)
	}
	js, err := ToJSON(nil)
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if js != "[]" {
		t.Fatalf("expected [], got %s", js)
	}
}

// TestCSVMissingOptionalFields 验证缺失的可选字段输出为空字符串。
func TestCSVMissingOptionalFields(t *testing.T) {
	out := ToCSV([]model.Event{{ID: "e1", SessionID: "s1", EventType: model.EventFeedImpression, Timestamp: "t"}})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1] != `"e1","s1","","feed_impression","t","","","","",""` {
		t.Fatalf("unexpected row %s", lines[1])
	}
}

// TestCSVRoundTrip 验证包含引号、逗号与换行的值经 ToCSV 后可被标准 CSV 解析器还原。
func TestCSVRoundTrip(t *testing.T) {
	tricky := "say \"hi\", then\nleave"
	log := scenarioLog()
	log[0].PostID = tricky
	log[1].SessionID = `a"b,c`

	records, err := csv.NewReader(strings.NewReader(ToCSV(log))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != len(log)+1 {
		t.Fatalf("expected %d records, got %d", len(log)+1, len(records))
	}
	if records[1][2] != tricky {
		t.Fatalf("expected %q, got %q", tricky, records[1][2])
	}
	if records[2][1] != `a"b,c` {
		t.Fatalf("expected session round-trip, got %q", records[2][1])
	}
	if got := records[3][5:]; strings.Join(got, "|") != "1|0|true|false|true" {
		t.Fatalf("unexpected state columns %v", got)
	}
}

// TestToJSONFullFidelity 验证 JSON 导出可以无损解码回原日志。
func TestToJSONFullFidelity(t *testing.T) {
	log := scenarioLog()
	js, err := ToJSON(log)
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if !strings.Contains(js, "\n  {") {
		t.Fatalf("expected pretty printed output, got %s", js)
	}
	var decoded []model.Event
	if err := json.Unmarshal([]byte(js), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 4 || decoded[2].State.Likes != 1 || *decoded[3].State.DetailOpen {
		t.Fatalf("unexpected decoded log %+v", decoded)
	}
}

// TestToJSONKeepsHTMLCharacters 验证 JSON 导出不转义 <、>、&，且没有结尾换行。
func TestToJSONKeepsHTMLCharacters(t *testing.T) {
	js, err := ToJSON([]model.Event{{ID: "e1", SessionID: "s1", PostID: "tips<&>", EventType: model.EventCardClick, Timestamp: "2024-01-01T00:00:00.000Z"}})
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if !strings.Contains(js, `"postId": "tips<&>"`) {
		t.Fatalf("expected raw html characters, got %s", js)
	}
	if strings.HasSuffix(js, "\n") {
		t.Fatalf("expected no trailing newline, got %q", js)
	}
}

func TestSummarize(t *testing.T) {
	log := scenarioLog()
	log = append(log, model.Event{ID: "e5", SessionID: "s2", EventType: model.EventFeedImpression, Timestamp: "2024-01-02T00:00:00.000Z"})
	s := Summarize(log)
	if s.Total != 5 || len(s.SessionIDs) != 2 || s.SessionIDs[1] != "s2" {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.FirstAt != "2024-01-01T00:00:01.000Z" || s.LastAt != "2024-01-02T00:00:00.000Z" {
		t.Fatalf("unexpected range %s..%s", s.FirstAt, s.LastAt)
	}
	if empty := Summarize(nil); empty.Total != 0 || empty.FirstAt != "" {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("abc", FormatCSV); got != "xhs-events-abc.csv" {
		t.Fatalf("unexpected file name %s", got)
	}
}
