package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestEventTypeUnmarshalRejectsUnknown 验证 JSON 解码时拒绝词表外的事件类型。
// 场景：合法类型正常解码；"share" 不在词表中，应返回 ErrInvalidEventType。
func TestEventTypeUnmarshalRejectsUnknown(t *testing.T) {
	var payload LogEventPayload
	if err := json.Unmarshal([]byte(`{"eventType":"card_click","postId":"post-1"}`), &payload); err != nil {
		t.Fatalf("unmarshal valid payload: %v", err)
	}
	if payload.EventType != EventCardClick {
		t.Fatalf("expected card_click, got %q", payload.EventType)
	}

	err := json.Unmarshal([]byte(`{"eventType":"share"}`), &payload)
	if !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}
}

// TestEventJSONFieldNames 验证事件序列化字段名与浏览器端导出格式一致，可选字段缺省时不输出。
func TestEventJSONFieldNames(t *testing.T) {
	evt := Event{ID: "e1", SessionID: "s1", EventType: EventFeedImpression, Timestamp: "2024-01-01T00:00:00.000Z"}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"e1","sessionId":"s1","eventType":"feed_impression","timestamp":"2024-01-01T00:00:00.000Z"}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}

// TestToggleCountersNeverNegative 验证反复点赞/收藏切换时计数不会小于 0。
// 场景：从一个被外部置为 liked=true 但 likes=0 的状态开始反复切换。
func TestToggleCountersNeverNegative(t *testing.T) {
	state := PostState{Liked: true, Saved: true}
	for i := 0; i < 7; i++ {
		state, _ = state.ToggleLike()
		state, _ = state.ToggleSave()
		if state.Likes < 0 || state.Saves < 0 {
			t.Fatalf("counter went negative at step %d: %+v", i, state)
		}
	}
}

// TestToggleLikeEventTypes 验证点赞切换返回的事件类型与计数变化。
func TestToggleLikeEventTypes(t *testing.T) {
	state, evtType := PostState{}.ToggleLike()
	if evtType != EventLike || state.Likes != 1 || !state.Liked {
		t.Fatalf("expected like with 1 like, got %s %+v", evtType, state)
	}
	state, evtType = state.ToggleLike()
	if evtType != EventUnlike || state.Likes != 0 || state.Liked {
		t.Fatalf("expected unlike with 0 likes, got %s %+v", evtType, state)
	}

	saved, evtType := PostState{}.ToggleSave()
	if evtType != EventSave || saved.Saves != 1 {
		t.Fatalf("expected save with 1 save, got %s %+v", evtType, saved)
	}
}

// TestEventCloneIsDeep 验证 Clone 不与原事件共享 State 或 DetailOpen 指针。
func TestEventCloneIsDeep(t *testing.T) {
	orig := Event{ID: "e1", EventType: EventLike, State: &PostStateSnapshot{Likes: 1, DetailOpen: Bool(true)}}
	clone := orig.Clone()
	clone.State.Likes = 5
	*clone.State.DetailOpen = false

	if orig.State.Likes != 1 || !*orig.State.DetailOpen {
		t.Fatalf("expected original untouched, got %+v (detailOpen=%v)", orig.State, *orig.State.DetailOpen)
	}
	if (Event{}).Clone().State != nil {
		t.Fatalf("expected nil state to stay nil")
	}
	if got := CloneEvents(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
