package transpiler

import (
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

// pathKey identifies a resolved path. The graph generation is part of the
// key, so entries for an old graph are never returned after a rebuild.
type pathKey struct {
	generation uint64
	source     programs.ProgramType
	target     programs.ProgramType
	maxHops    int
	forbidden  string
}

func newPathKey(generation uint64, source, target programs.ProgramType, opts ResolveOptions) pathKey {
	forbidden := make([]string, len(opts.Forbidden))
	for i, f := range opts.Forbidden {
		forbidden[i] = string(f)
	}
	sort.Strings(forbidden)
	return pathKey{
		generation: generation,
		source:     source,
		target:     target,
		maxHops:    opts.MaxHops,
		forbidden:  strings.Join(forbidden, ","),
	}
}

// PathCache is a bounded LRU of resolved paths.
type PathCache struct {
	cache *lru.Cache[pathKey, Path]
}

// NewPathCache creates a cache holding up to size paths.
func NewPathCache(size int) (*PathCache, error) {
	c, err := lru.New[pathKey, Path](size)
	if err != nil {
		return nil, err
	}
	return &PathCache{cache: c}, nil
}

func (c *PathCache) get(key pathKey) (Path, bool) {
	if c == nil {
		return Path{}, false
	}
	return c.cache.Get(key)
}

func (c *PathCache) add(key pathKey, p Path) {
	if c == nil {
		return
	}
	c.cache.Add(key, p)
}

// Len returns the number of cached paths.
func (c *PathCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge empties the cache.
func (c *PathCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}
