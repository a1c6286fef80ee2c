package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Cache 分类结果缓存（键为摘要文本的 SHA-256）
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, label string) error
}

// FileCache JSON 文件缓存，启动时整体加载，每次写入后原子替换文件
type FileCache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]string
}

// NewFileCache 加载缓存文件，文件不存在时从空缓存开始
func NewFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read classification cache: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, fmt.Errorf("failed to parse classification cache %s: %w", path, err)
		}
	}
	return c, nil
}

// Get 实现 Cache
func (c *FileCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	label, ok := c.entries[key]
	return label, ok, nil
}

// Set 实现 Cache，写盘完成后才返回；写盘失败时内存中的条目保持原样
func (c *FileCache) Set(_ context.Context, key, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.entries[key]
	c.entries[key] = label
	if err := c.write(); err != nil {
		if had {
			c.entries[key] = prev
		} else {
			delete(c.entries, key)
		}
		return err
	}
	return nil
}

// write 把全部条目写入临时文件后原子替换缓存文件，调用方持有写锁
func (c *FileCache) write() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal classification cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".classification-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Len 缓存条目数
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache Redis hash 缓存，多个实例共享
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache 创建 Redis 缓存，所有条目存放在 hash key 下
func NewRedisCache(client *redis.Client, key string) *RedisCache {
	return &RedisCache{client: client, key: key}
}

// Get 实现 Cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	label, err := c.client.HGet(ctx, c.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read classification cache: %w", err)
	}
	return label, true, nil
}

// Set 实现 Cache
func (c *RedisCache) Set(ctx context.Context, key, label string) error {
	if err := c.client.HSet(ctx, c.key, key, label).Err(); err != nil {
		return fmt.Errorf("failed to write classification cache: %w", err)
	}
	return nil
}
