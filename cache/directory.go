package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// MaxDirectoryBlockBits is the largest block offset the Akita directory can
// represent; its block size is a signed int.
const MaxDirectoryBlockBits = 62

// DirectoryCache is a Model that keeps tags and LRU order in an Akita cache
// directory. Akita stores block-aligned addresses as tags; results are
// reported with the same decomposition as Cache.
type DirectoryCache struct {
	geometry Geometry

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats Statistics
}

var _ Model = (*DirectoryCache)(nil)

// NewDirectoryCache creates a directory-backed cache with the given
// geometry.
func NewDirectoryCache(g Geometry) (*DirectoryCache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.BlockOffsetBits > MaxDirectoryBlockBits {
		return nil, fmt.Errorf("%w: directory engine supports block bits <= %d, got %d",
			ErrInvalidGeometry, MaxDirectoryBlockBits, g.BlockOffsetBits)
	}

	return &DirectoryCache{
		geometry: g,
		directory: akitacache.NewDirectory(
			g.NumSets(),
			g.LinesPerSet,
			int(g.BlockSize()),
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Geometry returns the cache geometry.
func (d *DirectoryCache) Geometry() Geometry {
	return d.geometry
}

// Stats returns cache statistics.
func (d *DirectoryCache) Stats() Statistics {
	return d.stats
}

// Reset invalidates all cache lines and clears statistics.
func (d *DirectoryCache) Reset() {
	d.directory.Reset()
	d.stats = Statistics{}
}

// Access performs a lookup of addr.
func (d *DirectoryCache) Access(addr uint64) AccessResult {
	blockAddr := d.geometry.BlockAddress(addr)
	result := AccessResult{Address: d.geometry.Decompose(addr)}

	block := d.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		d.directory.Visit(block)
		result.Outcome = Hit
		result.Way = block.WayID
		d.stats.record(Hit)
		return result
	}

	// The LRU victim finder prefers invalid blocks, in way order, before the
	// head of the LRU queue.
	victim := d.directory.FindVictim(blockAddr)
	if victim.IsValid {
		result.Outcome = MissWithEviction
		result.EvictedTag = d.geometry.Decompose(victim.Tag).Tag
	} else {
		result.Outcome = Miss
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	d.directory.Visit(victim)

	result.Way = victim.WayID
	d.stats.record(result.Outcome)

	return result
}
