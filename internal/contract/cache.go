package contract

import (
	"strconv"
	"strings"
	"sync"
)

// CacheStore is the storage behind a PathCache. Implementations must be
// safe for concurrent use.
type CacheStore interface {
	Get(key string) (*Path, bool)
	Put(key string, p *Path)
}

// mapStore is the default in-memory store.
type mapStore struct {
	mu sync.Mutex
	m  map[string]*Path
}

func (s *mapStore) Get(key string) (*Path, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[key]
	return p, ok
}

func (s *mapStore) Put(key string, p *Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = p
}

// PathCache memoizes planned paths across structurally identical problems.
// Two problems hit the same entry exactly when one can be obtained from the
// other by renaming indices, so a served path is always valid for the
// problem that requested it.
type PathCache struct {
	store CacheStore
}

// NewPathCache returns a cache backed by an in-process map.
func NewPathCache() *PathCache {
	return &PathCache{store: &mapStore{m: map[string]*Path{}}}
}

// NewPathCacheWith returns a cache backed by a caller-supplied store.
func NewPathCacheWith(store CacheStore) *PathCache {
	return &PathCache{store: store}
}

func (c *PathCache) get(key string) (*Path, bool) { return c.store.Get(key) }
func (c *PathCache) put(key string, p *Path)      { c.store.Put(key, p) }

// fingerprint canonicalizes a problem by relabeling indices in order of
// first appearance, scanning inputs then output. The relabeling is a
// bijection, and the key records every input's full label list with
// dimensions plus the output list, so equal keys imply problems identical
// up to index names.
func fingerprint(method string, inputs [][]string, output []string, dims map[string]int) string {
	canon := map[string]int{}
	id := func(ind string) int {
		c, ok := canon[ind]
		if !ok {
			c = len(canon)
			canon[ind] = c
		}
		return c
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('|')
	for ti, inds := range inputs {
		if ti > 0 {
			b.WriteByte(';')
		}
		for i, ind := range inds {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(id(ind)))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(dims[ind]))
		}
	}
	b.WriteString("->")
	for i, ind := range output {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id(ind)))
	}
	return b.String()
}
