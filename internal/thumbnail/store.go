// Package thumbnail owns cover-art derivation and its persistent cache:
// a durable CacheKey→blob mapping plus the decode→resize→re-encode pipeline
// that fills it lazily on miss.
package thumbnail

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 管理缩略图的持久化读写。磁盘布局遵循：
//
//	<StoragePath>/thumbnails/<sha1(key)>.thumb   # 图片正文
//	<StoragePath>/thumbnails/<sha1(key)>.json    # 元信息边车（key、content type）
//
// 边车格式只做增量演进：新增字段不改变既有 key 的含义。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, key CacheKey) (*ReadResult, error)

	// Put 整体替换 key 对应的记录。实现需通过临时文件 + rename 保证原子性，
	// 并在失败时清理临时文件。正文落盘后边车写入失败时，记录与包装错误
	// 一并返回，调用方可将其视为非致命。
	Put(ctx context.Context, key CacheKey, contentType string, body io.Reader) (*Record, error)

	// Remove 删除记录，用于显式失效。key 不存在时静默成功。
	Remove(ctx context.Context, key CacheKey) error
}

// Record 描述一条缓存记录。记录只会被整体覆盖，从不原地修改，
// 也不会自动过期——生命周期是“直到显式清除”。
type Record struct {
	Key         CacheKey  `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"-"`
	ModTime     time.Time `json:"-"`
	FilePath    string    `json:"-"`
}

// ReadResult 组合 Record 与正文 Reader，便于路由层直接流式返回。
type ReadResult struct {
	Record Record
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("thumbnail not found")
