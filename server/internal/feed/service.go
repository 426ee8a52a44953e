// Package feed 是 feed 页面的交互逻辑：维护贴文的点赞/收藏状态与当前打开的详情，
// 并通过 eventlog 记录每一次交互。渲染由前端负责。
package feed

import (
	"context"
	"errors"
	"sync"

	"feedlab/server/internal/model"
)

var ErrPostNotFound = errors.New("post not found")

// EventLogger 是 feed 记录事件所需的最小接口。
type EventLogger interface {
	LogEvent(ctx context.Context, payload model.LogEventPayload) (model.Event, error)
}

// Service 对应一次 feed 页面挂载：曝光只在第一次调用 LogImpressions 时记录。
type Service struct {
	logger EventLogger

	mu                sync.Mutex
	posts             []model.PostWithState
	activePostID      string
	impressionsLogged bool
}

// NewService 用种子贴文初始化状态，所有计数从 0 开始便于实验采集。
func NewService(posts []model.Post, logger EventLogger) *Service {
	withState := make([]model.PostWithState, len(posts))
	for i, p := range posts {
		withState[i] = model.PostWithState{Post: p}
	}
	return &Service{logger: logger, posts: withState}
}

// Posts 返回贴文及其当前状态的副本。
func (s *Service) Posts() []model.PostWithState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PostWithState, len(s.posts))
	copy(out, s.posts)
	return out
}

// ActivePostID 返回当前打开详情的贴文，没有则为空。
func (s *Service) ActivePostID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePostID
}

// LogImpressions 为每条贴文记录一次 feed_impression；同一 Service 上重复调用不再记录。
// 返回本次记录的事件数。
func (s *Service) LogImpressions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.impressionsLogged {
		return 0, nil
	}
	for _, p := range s.posts {
		if err := s.log(ctx, p.ID, model.EventFeedImpression, p.Snapshot(false)); err != nil {
			return 0, err
		}
	}
	s.impressionsLogged = true
	return len(s.posts), nil
}

// Select 处理点击卡片：先记录 card_click（详情未开），再记录 open_detail（详情已开）。
func (s *Service) Select(ctx context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.find(postID)
	if idx < 0 {
		return ErrPostNotFound
	}
	state := s.posts[idx].PostState
	if err := s.log(ctx, postID, model.EventCardClick, state.Snapshot(false)); err != nil {
		return err
	}
	s.activePostID = postID
	return s.log(ctx, postID, model.EventOpenDetail, state.Snapshot(true))
}

// Close 关闭详情并记录 close_detail；没有打开的详情时不记录。
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.activePostID
	s.activePostID = ""
	if active == "" {
		return nil
	}
	idx := s.find(active)
	if idx < 0 {
		return nil
	}
	return s.log(ctx, active, model.EventCloseDetail, s.posts[idx].Snapshot(false))
}

// ToggleLike 切换点赞并记录 like/unlike，快照是切换之后的状态。
func (s *Service) ToggleLike(ctx context.Context, postID string) (model.PostWithState, error) {
	return s.toggle(ctx, postID, model.PostState.ToggleLike)
}

// ToggleSave 切换收藏并记录 save/unsave，快照是切换之后的状态。
func (s *Service) ToggleSave(ctx context.Context, postID string) (model.PostWithState, error) {
	return s.toggle(ctx, postID, model.PostState.ToggleSave)
}

func (s *Service) toggle(ctx context.Context, postID string, reduce func(model.PostState) (model.PostState, model.EventType)) (model.PostWithState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.find(postID)
	if idx < 0 {
		return model.PostWithState{}, ErrPostNotFound
	}
	next, evtType := reduce(s.posts[idx].PostState)
	s.posts[idx].PostState = next
	if err := s.log(ctx, postID, evtType, next.Snapshot(postID == s.activePostID)); err != nil {
		return model.PostWithState{}, err
	}
	return s.posts[idx], nil
}

func (s *Service) find(postID string) int {
	for i, p := range s.posts {
		if p.ID == postID {
			return i
		}
	}
	return -1
}

func (s *Service) log(ctx context.Context, postID string, evtType model.EventType, state *model.PostStateSnapshot) error {
	_, err := s.logger.LogEvent(ctx, model.LogEventPayload{
		PostID:    postID,
		EventType: evtType,
		State:     state,
	})
	return err
}
