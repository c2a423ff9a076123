package core

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// cacheEntry 缓存条目
type cacheEntry struct {
	path   string
	hash   string
	report *Report
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits      int `json:"hits"`
	Misses    int `json:"misses"`
	Evictions int `json:"evictions"`
}

// FileCache 按文件内容哈希缓存单文件分析结果（LRU）
// watch 模式下未变化的文件不必重新解析；缓存的报告只读
type FileCache struct {
	mutex   sync.Mutex
	entries map[string]*list.Element
	lruList *list.List
	maxSize int
	stats   CacheStats
}

// NewFileCache 创建缓存；maxSize <= 0 时不限条目数
func NewFileCache(maxSize int) *FileCache {
	return &FileCache{
		entries: make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// ContentHash 源码内容哈希
func ContentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Get 内容未变化时返回缓存的报告
func (fc *FileCache) Get(path string, source []byte) (*Report, bool) {
	if fc == nil {
		return nil, false
	}
	hash := ContentHash(source)

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	elem, ok := fc.entries[path]
	if !ok {
		fc.stats.Misses++
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.hash != hash {
		// 文件已修改
		fc.lruList.Remove(elem)
		delete(fc.entries, path)
		fc.stats.Misses++
		return nil, false
	}
	fc.lruList.MoveToFront(elem)
	fc.stats.Hits++
	return entry.report, true
}

// Put 缓存报告
func (fc *FileCache) Put(path string, source []byte, rep *Report) {
	if fc == nil || rep == nil {
		return
	}
	entry := &cacheEntry{path: path, hash: ContentHash(source), report: rep}

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if elem, ok := fc.entries[path]; ok {
		elem.Value = entry
		fc.lruList.MoveToFront(elem)
		return
	}
	fc.entries[path] = fc.lruList.PushFront(entry)
	fc.evictIfNeeded()
}

// evictIfNeeded 超出容量时驱逐最久未使用的条目
func (fc *FileCache) evictIfNeeded() {
	for fc.maxSize > 0 && fc.lruList.Len() > fc.maxSize {
		last := fc.lruList.Back()
		if last == nil {
			return
		}
		fc.lruList.Remove(last)
		delete(fc.entries, last.Value.(*cacheEntry).path)
		fc.stats.Evictions++
	}
}

// Forget 删除某个文件的缓存（文件被删除或重命名）
func (fc *FileCache) Forget(path string) {
	if fc == nil {
		return
	}
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	if elem, ok := fc.entries[path]; ok {
		fc.lruList.Remove(elem)
		delete(fc.entries, path)
	}
}

// Len 当前条目数
func (fc *FileCache) Len() int {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	return fc.lruList.Len()
}

// GetStats 获取统计信息
func (fc *FileCache) GetStats() map[string]interface{} {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	total := fc.stats.Hits + fc.stats.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(fc.stats.Hits) / float64(total)
	}
	return map[string]interface{}{
		"cache_size": fc.lruList.Len(),
		"hits":       fc.stats.Hits,
		"misses":     fc.stats.Misses,
		"hit_rate":   hitRate,
		"evictions":  fc.stats.Evictions,
	}
}

// Clear 清空缓存
func (fc *FileCache) Clear() {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	fc.entries = make(map[string]*list.Element)
	fc.lruList.Init()
	fc.stats = CacheStats{}
}
