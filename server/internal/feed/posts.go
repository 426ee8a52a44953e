package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"feedlab/server/internal/model"

	"github.com/tidwall/jsonc"
)

// LoadPosts 从指定路径加载贴文种子数据，文件允许带注释与尾逗号。
func LoadPosts(path string) ([]model.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}
	return ParsePosts(data)
}

// ParsePosts 解析贴文种子数据。
func ParsePosts(data []byte) ([]model.Post, error) {
	var posts []model.Post
	if err := json.Unmarshal(jsonc.ToJSON(data), &posts); err != nil {
		return nil, fmt.Errorf("parse posts: %w", err)
	}
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		if p.ID == "" {
			return nil, fmt.Errorf("parse posts: post without id")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("parse posts: duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return posts, nil
}
