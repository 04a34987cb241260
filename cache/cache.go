// Package cache provides a functional model of a set-associative cache with
// least-recently-used replacement.
package cache

import "fmt"

// Outcome classifies a single cache access.
type Outcome int

const (
	// Hit means a valid line in the set held the requested tag.
	Hit Outcome = iota
	// Miss means the block was placed into an empty line.
	Miss
	// MissWithEviction means the block replaced the least recently used
	// line of a full set.
	MissWithEviction
)

// String returns the lowercase outcome name used in verbose traces.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case MissWithEviction:
		return "miss eviction"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// IsMiss reports whether the access missed, with or without eviction.
func (o Outcome) IsMiss() bool {
	return o == Miss || o == MissWithEviction
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Outcome is hit, miss, or miss with eviction.
	Outcome Outcome
	// Address is the decomposed requested address.
	Address Address
	// Way is the slot within the set that was hit or filled.
	Way int
	// EvictedTag is the tag that was replaced. Only meaningful when
	// Outcome is MissWithEviction.
	EvictedTag uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Accesses  uint64 `json:"accesses"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// record folds one outcome into the counters.
func (s *Statistics) record(o Outcome) {
	s.Accesses++
	switch o {
	case Hit:
		s.Hits++
	case Miss:
		s.Misses++
	case MissWithEviction:
		s.Misses++
		s.Evictions++
	}
}

// Model is a cache that can be driven by a trace. Implementations are not
// safe for concurrent use.
type Model interface {
	// Access looks up addr, updating replacement state and statistics.
	Access(addr uint64) AccessResult
	// Stats returns the cumulative statistics.
	Stats() Statistics
	// Geometry returns the shape of the cache.
	Geometry() Geometry
	// Reset invalidates every line and clears statistics.
	Reset()
}

// Line is one cache line. Tag is only meaningful when Valid is set.
type Line struct {
	Valid    bool
	Tag      uint64
	LastUsed uint64
}

// Cache is a set-associative cache with LRU replacement. Recency is kept
// as a logical clock that advances once per access across all sets, so
// eviction choices depend only on the global access order.
type Cache struct {
	geometry Geometry

	// sets[i] holds LinesPerSet lines; nil until the set is first touched.
	sets [][]Line

	clock uint64
	stats Statistics
}

var _ Model = (*Cache)(nil)

// New creates a new cache with the given geometry.
func New(g Geometry) (*Cache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	return &Cache{
		geometry: g,
		sets:     make([][]Line, g.NumSets()),
	}, nil
}

// Geometry returns the cache geometry.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Clock returns the number of accesses the logical clock has counted.
func (c *Cache) Clock() uint64 {
	return c.clock
}

// Reset invalidates all cache lines and clears statistics and the clock.
func (c *Cache) Reset() {
	for i := range c.sets {
		c.sets[i] = nil
	}
	c.clock = 0
	c.stats = Statistics{}
}

// Set returns a copy of the lines of the set at index.
func (c *Cache) Set(index uint64) []Line {
	lines := make([]Line, c.geometry.LinesPerSet)
	copy(lines, c.sets[index])
	return lines
}

// Access performs a lookup of addr. On a miss the block is placed in the
// first empty line of its set, or replaces the least recently used line
// when the set is full. Lookup and victim selection are O(E).
func (c *Cache) Access(addr uint64) AccessResult {
	c.clock++

	a := c.geometry.Decompose(addr)
	lines := c.lines(a.Index)
	result := AccessResult{Address: a}

	if way := findTag(lines, a.Tag); way >= 0 {
		lines[way].LastUsed = c.clock
		result.Outcome = Hit
		result.Way = way
		c.stats.record(Hit)
		return result
	}

	way := findInvalid(lines)
	if way >= 0 {
		result.Outcome = Miss
	} else {
		way = findLRU(lines)
		result.Outcome = MissWithEviction
		result.EvictedTag = lines[way].Tag
	}

	lines[way] = Line{Valid: true, Tag: a.Tag, LastUsed: c.clock}
	result.Way = way
	c.stats.record(result.Outcome)

	return result
}

func (c *Cache) lines(index uint64) []Line {
	if c.sets[index] == nil {
		c.sets[index] = make([]Line, c.geometry.LinesPerSet)
	}
	return c.sets[index]
}

func findTag(lines []Line, tag uint64) int {
	for i := range lines {
		if lines[i].Valid && lines[i].Tag == tag {
			return i
		}
	}
	return -1
}

func findInvalid(lines []Line) int {
	for i := range lines {
		if !lines[i].Valid {
			return i
		}
	}
	return -1
}

// findLRU returns the way with the smallest LastUsed. Ties go to the lowest
// way.
func findLRU(lines []Line) int {
	victim := 0
	for i := 1; i < len(lines); i++ {
		if lines[i].LastUsed < lines[victim].LastUsed {
			victim = i
		}
	}
	return victim
}
