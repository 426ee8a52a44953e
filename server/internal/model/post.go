package model

// Post 是 feed 中一条贴文的静态信息。
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageAlt    string `json:"imageAlt"`
	ImageURL    string `json:"imageUrl"`
	Author      string `json:"author"`
	TimeAgo     string `json:"timeAgo"`
}

// PostState 是贴文的互动计数与开关，计数永远不小于 0。
type PostState struct {
	Likes int  `json:"likes"`
	Saves int  `json:"saves"`
	Liked bool `json:"liked"`
	Saved bool `json:"saved"`
}

// ToggleLike 翻转点赞状态，返回新状态与应记录的事件类型。
func (s PostState) ToggleLike() (PostState, EventType) {
	if s.Liked {
		s.Liked = false
		s.Likes = max(0, s.Likes-1)
		return s, EventUnlike
	}
	s.Liked = true
	s.Likes++
	return s, EventLike
}

// ToggleSave 翻转收藏状态，返回新状态与应记录的事件类型。
func (s PostState) ToggleSave() (PostState, EventType) {
	if s.Saved {
		s.Saved = false
		s.Saves = max(0, s.Saves-1)
		return s, EventUnsave
	}
	s.Saved = true
	s.Saves++
	return s, EventSave
}

// Snapshot 生成事件快照。
func (s PostState) Snapshot(detailOpen bool) *PostStateSnapshot {
	return &PostStateSnapshot{
		Likes:      s.Likes,
		Saves:      s.Saves,
		Liked:      s.Liked,
		Saved:      s.Saved,
		DetailOpen: Bool(detailOpen),
	}
}

// PostWithState 是带互动状态的贴文，供 feed 渲染。
type PostWithState struct {
	Post
	PostState
}
