package thumbnail

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	dir := filepath.Join(abs, "thumbnails")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		dir:   dir,
		locks: make(map[CacheKey]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 key 并发写入；后写者覆盖先写者。
type fileStore struct {
	dir string

	mu    sync.Mutex
	locks map[CacheKey]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Get(ctx context.Context, key CacheKey) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bodyPath, metaPath := s.entryPaths(key)

	info, err := os.Stat(bodyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	record := Record{
		Key:         key,
		ContentType: "image/jpeg",
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime(),
		FilePath:    bodyPath,
	}
	// 边车缺失时退回默认 content type，老条目依旧可读。
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta Record
		if err := json.Unmarshal(raw, &meta); err == nil && meta.ContentType != "" {
			record.ContentType = meta.ContentType
		}
	}

	f, err := os.Open(bodyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Record: record,
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key CacheKey, contentType string, body io.Reader) (*Record, error) {
	unlock := s.lockEntry(key)
	defer unlock()

	bodyPath, metaPath := s.entryPaths(key)

	tempFile, err := os.CreateTemp(s.dir, ".thumb-*")
	if err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, fmt.Errorf("cache write failed: %w", err)
	}

	if err := os.Rename(tempName, bodyPath); err != nil {
		os.Remove(tempName)
		return nil, fmt.Errorf("cache write failed: %w", err)
	}

	record := Record{
		Key:         key,
		ContentType: contentType,
		SizeBytes:   written,
		ModTime:     time.Now().UTC(),
		FilePath:    bodyPath,
	}

	meta, err := json.Marshal(record)
	if err == nil {
		err = os.WriteFile(metaPath, meta, 0o644)
	}
	if err != nil {
		// 正文已落盘，丢失边车只会损失 content type，不影响命中；
		// 连同记录返回包装错误，由调用方决定如何记录。
		return &record, fmt.Errorf("cache metadata write failed: %w", err)
	}
	return &record, nil
}

func (s *fileStore) Remove(ctx context.Context, key CacheKey) error {
	unlock := s.lockEntry(key)
	defer unlock()

	bodyPath, metaPath := s.entryPaths(key)
	if err := os.Remove(bodyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Remove(metaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) lockEntry(key CacheKey) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPaths 将 key 哈希为文件名，避免任何路径穿越或非法字符问题。
func (s *fileStore) entryPaths(key CacheKey) (string, string) {
	sum := sha1.Sum([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name+".thumb"), filepath.Join(s.dir, name+".json")
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
