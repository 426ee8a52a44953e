package timeline

import (
	"context"
	"errors"
	"testing"

	"feedlab/server/internal/logging"
	"feedlab/server/internal/model"
	"feedlab/server/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	return NewStore(storage.Available(backend), logging.Discard()), backend
}

// TestStoreAppendKeepsOrderAndPersists 验证 Append 保持插入顺序，并且每次追加都写入持久化镜像。
// 场景：追加两条事件后，新建 Store 从同一后端 Load，应得到相同顺序的两条事件。
func TestStoreAppendKeepsOrderAndPersists(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, model.Event{ID: "e1", EventType: model.EventCardClick})
	log := store.Append(ctx, model.Event{ID: "e2", EventType: model.EventOpenDetail})
	if len(log) != 2 || log[0].ID != "e1" || log[1].ID != "e2" {
		t.Fatalf("expected [e1 e2], got %+v", log)
	}

	reloaded := NewStore(storage.Available(backend), logging.Discard()).Load(ctx)
	if len(reloaded) != 2 || reloaded[0].ID != "e1" || reloaded[1].ID != "e2" {
		t.Fatalf("expected reloaded [e1 e2], got %+v", reloaded)
	}
}

// TestStoreLoadCorrupt 验证持久化内容损坏时 Load 返回空日志且不报错。
func TestStoreLoadCorrupt(t *testing.T) {
	cases := map[string]string{
		"not json":      "not-json",
		"object":        `{"id":"e1"}`,
		"null":          "null",
		"unknown event": `[{"id":"e1","eventType":"share"}]`,
		"empty record":  `[{}]`,
		"null record":   `[null]`,
		"mixed records": `[{"id":"e1","eventType":"like"},{"id":"e2"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			store, backend := newTestStore(t)
			ctx := context.Background()
			if err := backend.Set(ctx, Key, raw); err != nil {
				t.Fatalf("seed: %v", err)
			}
			if got := store.Load(ctx); len(got) != 0 {
				t.Fatalf("expected empty log, got %+v", got)
			}
		})
	}
}

// TestStoreClearRemovesKey 验证 Clear 删除持久化 key，而不是写入空数组。
func TestStoreClearRemovesKey(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, model.Event{ID: "e1", EventType: model.EventLike})
	if got := store.Clear(ctx); len(got) != 0 {
		t.Fatalf("expected empty log after clear, got %+v", got)
	}
	if _, ok, _ := backend.Get(ctx, Key); ok {
		t.Fatalf("expected durable key removed")
	}
	if got := store.Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty log on reload, got %+v", got)
	}
}

// TestStoreListReturnsCopy 验证 List 返回深拷贝，修改副本（包括 State 指针）不影响内部状态。
func TestStoreListReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	state := &model.PostStateSnapshot{Saves: 1, Saved: true, DetailOpen: model.Bool(false)}
	appended := store.Append(ctx, model.Event{ID: "e1", EventType: model.EventSave, State: state})

	// 调用方事后修改自己的快照、Append 的返回值、List 的返回值，都不能影响日志。
	state.Saves = 99
	appended[0].State.Saved = false
	events := store.List()
	events[0].ID = "mutated"
	events[0].State.Likes = 42
	*events[0].State.DetailOpen = true

	again := store.List()
	if again[0].ID != "e1" {
		t.Fatalf("expected internal data unchanged, got %q", again[0].ID)
	}
	got := again[0].State
	if got.Saves != 1 || !got.Saved || got.Likes != 0 || *got.DetailOpen {
		t.Fatalf("expected state {saves:1 saved:true likes:0 detailOpen:false}, got %+v (detailOpen=%v)", got, *got.DetailOpen)
	}
}

// TestStoreUnavailableSkipsWrites 验证没有持久化能力时内存日志仍然可用。
func TestStoreUnavailableSkipsWrites(t *testing.T) {
	store := NewStore(storage.Unavailable(), logging.Discard())
	ctx := context.Background()

	if got := store.Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty load, got %+v", got)
	}
	log := store.Append(ctx, model.Event{ID: "e1", EventType: model.EventLike})
	if len(log) != 1 {
		t.Fatalf("expected in-memory append, got %d events", len(log))
	}
}

type failingBackend struct{ storage.MemoryBackend }

func (*failingBackend) Set(context.Context, string, string) error { return errors.New("disk full") }

// TestStoreAppendSurvivesWriteFailure 验证持久化写入失败时内存日志照常推进。
func TestStoreAppendSurvivesWriteFailure(t *testing.T) {
	store := NewStore(storage.Available(&failingBackend{}), logging.Discard())
	log := store.Append(context.Background(), model.Event{ID: "e1", EventType: model.EventUnsave})
	if len(log) != 1 {
		t.Fatalf("expected 1 event, got %d", len(log))
	}
}
