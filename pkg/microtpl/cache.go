package microtpl

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// CacheConfig sizes a TemplateCache.
type CacheConfig struct {
	// MaxSize bounds the number of entries. 0 disables caching.
	MaxSize int
	// TTL expires entries this long after they were stored. 0 keeps them
	// until they are evicted.
	TTL time.Duration
}

// CacheStats counts lookups since the cache was created or cleared.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
}

// TemplateCache keeps compiled templates in least-recently-used order.
type TemplateCache struct {
	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front is most recently used
	config CacheConfig
	stats  CacheStats
	now    func() time.Time
}

type cached struct {
	key     string
	tmpl    *Template
	expires time.Time
}

// NewTemplateCache returns a cache sized by the global configuration.
func NewTemplateCache() *TemplateCache {
	cfg := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{MaxSize: cfg.CacheMaxSize, TTL: cfg.CacheTTL})
}

func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		items:  make(map[string]*list.Element),
		order:  list.New(),
		config: config,
		now:    time.Now,
	}
}

// cacheKey identifies a compilation by its text and effective settings.
func cacheKey(text string, s Settings) string {
	h := sha256.New()
	for _, part := range []string{s.Escape, s.Interpolate, s.Evaluate, s.Variable, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// GetOrCompile returns the template cached under key, or calls compile and
// caches what it returns. Failed compilations are not cached.
func (tc *TemplateCache) GetOrCompile(key string, compile func() (*Template, error)) (*Template, error) {
	if tmpl, ok := tc.Get(key); ok {
		return tmpl, nil
	}
	tmpl, err := compile()
	if err != nil {
		return nil, err
	}
	tc.Set(key, tmpl)
	return tmpl, nil
}

func (tc *TemplateCache) Get(key string) (*Template, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	elem, ok := tc.items[key]
	if ok && tc.expiredLocked(elem) {
		tc.dropLocked(elem)
		ok = false
	}
	if !ok {
		tc.stats.Misses++
		return nil, false
	}

	tc.stats.Hits++
	tc.order.MoveToFront(elem)
	if logger := GetLogger(); logger.IsDebugMode() {
		logger.WithField("key", shortKey(key)).Debug("Template cache hit")
	}
	return elem.Value.(*cached).tmpl, true
}

func (tc *TemplateCache) expiredLocked(elem *list.Element) bool {
	exp := elem.Value.(*cached).expires
	return !exp.IsZero() && tc.now().After(exp)
}

// Set stores tmpl under key, evicting the least recently used entries when
// the cache is full.
func (tc *TemplateCache) Set(key string, tmpl *Template) {
	if tc.config.MaxSize <= 0 {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry := &cached{key: key, tmpl: tmpl}
	if tc.config.TTL > 0 {
		entry.expires = tc.now().Add(tc.config.TTL)
	}

	if elem, ok := tc.items[key]; ok {
		elem.Value = entry
		tc.order.MoveToFront(elem)
		return
	}

	for tc.order.Len() >= tc.config.MaxSize {
		tc.dropLocked(tc.order.Back())
		tc.stats.Evictions++
	}
	tc.items[key] = tc.order.PushFront(entry)
}

func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if elem, ok := tc.items[key]; ok {
		tc.dropLocked(elem)
	}
}

func (tc *TemplateCache) dropLocked(elem *list.Element) {
	delete(tc.items, elem.Value.(*cached).key)
	tc.order.Remove(elem)
}

// Clear empties the cache and resets its statistics.
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.items = make(map[string]*list.Element)
	tc.order.Init()
	tc.stats = CacheStats{}
}

func (tc *TemplateCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.order.Len()
}

func (tc *TemplateCache) Stats() CacheStats {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.stats
}
