package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

// Key 缓存键：文件路径 + 修改时间 + 大小，文件变化后键随之变化
type Key struct {
	Path    string
	ModTime int64 // UnixNano
	Size    int64
}

// Entry 一次加载的结果：原始表与清洗结果，加载后只读
type Entry struct {
	ID           string
	Key          Key
	LoadedAt     time.Time
	Raw          dataframe.DataFrame
	Result       *processor.Result
	RawDurations []float64 // 未清洗的时长分布，供直方图使用
}

// Reader 读取原始表
type Reader func(path string) (dataframe.DataFrame, error)

// Session 按文件版本缓存清洗结果
type Session struct {
	path    string
	read    Reader
	cleaner *processor.Cleaner
	cache   gcache.Cache
	metrics *Metrics
	logger  logrus.FieldLogger

	mu   sync.Mutex                  // 串行化加载，同一版本只读一次
	keys map[string]map[Key]struct{} // path -> 缓存中的键
}

// New 创建会话，path 为默认数据文件
func New(path string, read Reader, cleaner *processor.Cleaner, size int, metrics *Metrics, logger logrus.FieldLogger) *Session {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	s := &Session{
		path:    path,
		read:    read,
		cleaner: cleaner,
		metrics: metrics,
		logger:  logger,
		keys:    make(map[string]map[Key]struct{}),
	}
	// 容量淘汰、Remove 都会回调，调用时 s.mu 已由 Set/Get/Remove 的调用方持有
	s.cache = gcache.New(size).LRU().EvictedFunc(func(k, _ interface{}) {
		if key, ok := k.(Key); ok {
			s.forgetLocked(key)
		}
	}).Build()
	return s
}

// Path 默认数据文件
func (s *Session) Path() string { return s.path }

// Current 加载默认数据文件
func (s *Session) Current() (*Entry, error) {
	return s.Load(s.path)
}

// Load 返回文件当前版本的缓存结果，没有则读取并清洗
// 同一路径的旧版本在此时一并移除
func (s *Session) Load(path string) (*Entry, error) {
	key, err := statKey(path)
	if err != nil {
		s.metrics.loadFailed()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, err := s.cache.Get(key); err == nil {
		s.metrics.cacheEvent("hit", 1)
		return v.(*Entry), nil
	}
	s.metrics.cacheEvent("miss", 1)
	s.metrics.cacheEvent("invalidate", s.dropLocked(key.Path, func(k Key) bool { return k != key }))

	start := time.Now()
	raw, err := s.read(path)
	if err != nil {
		s.metrics.loadFailed()
		return nil, err
	}
	res, err := s.cleaner.Run(raw)
	if err != nil {
		s.metrics.loadFailed()
		return nil, fmt.Errorf("清洗数据失败: %w", err)
	}

	entry := &Entry{
		ID:           uuid.New().String(),
		Key:          key,
		LoadedAt:     time.Now(),
		Raw:          raw,
		Result:       res,
		RawDurations: processor.RawDurations(raw, s.cleaner.Options().Aliases),
	}
	if err := s.cache.Set(key, entry); err != nil {
		return nil, fmt.Errorf("写入缓存失败: %w", err)
	}
	if s.keys[key.Path] == nil {
		s.keys[key.Path] = make(map[Key]struct{})
	}
	s.keys[key.Path][key] = struct{}{}

	elapsed := time.Since(start)
	s.metrics.observeLoad(elapsed.Seconds(), res.Log)
	s.logger.WithFields(logrus.Fields{
		"load_id": entry.ID,
		"path":    key.Path,
		"raw_n":   res.Log.RawN,
		"clean_n": res.Log.CleanN,
		"elapsed": elapsed.String(),
	}).Info("数据集已加载")
	return entry, nil
}

// Invalidate 移除某个文件的全部缓存
func (s *Session) Invalidate(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.dropLocked(abs, func(Key) bool { return true })
	s.metrics.cacheEvent("invalidate", n)
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"path": abs, "entries": n}).Info("缓存已失效")
	}
	return n
}

// Sweep 移除与磁盘上文件不一致的缓存(文件被修改或删除)
func (s *Session) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for path := range s.keys {
		current, err := statKey(path)
		removed += s.dropLocked(path, func(k Key) bool {
			return err != nil || k != current
		})
	}
	s.metrics.cacheEvent("sweep", removed)
	if removed > 0 {
		s.logger.WithField("entries", removed).Info("巡检移除过期缓存")
	}
	return removed
}

// Purge 清空缓存
func (s *Session) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	s.keys = make(map[string]map[Key]struct{})
}

// Len 缓存中的条目数
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, keys := range s.keys {
		n += len(keys)
	}
	return n
}

// dropLocked 调用方需持有 s.mu
func (s *Session) dropLocked(path string, match func(Key) bool) int {
	n := 0
	for k := range s.keys[path] {
		if !match(k) {
			continue
		}
		if s.cache.Remove(k) {
			n++
		}
		s.forgetLocked(k)
	}
	return n
}

// forgetLocked 调用方需持有 s.mu
func (s *Session) forgetLocked(k Key) {
	delete(s.keys[k.Path], k)
	if len(s.keys[k.Path]) == 0 {
		delete(s.keys, k.Path)
	}
}

func statKey(path string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Key{}, &file.InputError{Path: abs, Err: err}
	}
	return Key{Path: abs, ModTime: info.ModTime().UnixNano(), Size: info.Size()}, nil
}
