package cache

import (
	"errors"
	"fmt"
)

// AddressWidth is the number of bits in a simulated memory address.
const AddressWidth = 64

// MaxSetIndexBits bounds the number of sets a model allocates up front.
const MaxSetIndexBits = 24

// MaxLines bounds the total number of lines (2^S * E) in a cache.
const MaxLines = 1 << 24

// ErrInvalidGeometry is returned when a cache geometry cannot be simulated.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// Geometry describes the shape of a set-associative cache. It is fixed for
// the lifetime of a simulation.
type Geometry struct {
	// SetIndexBits is the number of address bits that select a set (S).
	SetIndexBits uint
	// LinesPerSet is the associativity (E).
	LinesPerSet int
	// BlockOffsetBits is the number of address bits inside a block (B).
	BlockOffsetBits uint
}

// Address is a memory address split into its tag, set index and block
// offset fields.
type Address struct {
	Tag    uint64
	Index  uint64
	Offset uint64
}

// Validate checks that the geometry can be simulated.
func (g Geometry) Validate() error {
	if g.LinesPerSet < 1 {
		return fmt.Errorf("%w: lines per set must be >= 1, got %d",
			ErrInvalidGeometry, g.LinesPerSet)
	}
	if g.SetIndexBits+g.BlockOffsetBits > AddressWidth {
		return fmt.Errorf("%w: set bits (%d) + block bits (%d) exceed address width %d",
			ErrInvalidGeometry, g.SetIndexBits, g.BlockOffsetBits, AddressWidth)
	}
	if g.SetIndexBits > MaxSetIndexBits {
		return fmt.Errorf("%w: set bits must be <= %d, got %d",
			ErrInvalidGeometry, MaxSetIndexBits, g.SetIndexBits)
	}
	if g.LinesPerSet > MaxLines>>g.SetIndexBits {
		return fmt.Errorf("%w: %d sets of %d lines exceed %d lines",
			ErrInvalidGeometry, g.NumSets(), g.LinesPerSet, MaxLines)
	}
	return nil
}

// NumSets returns the number of sets (2^S).
func (g Geometry) NumSets() int {
	return 1 << g.SetIndexBits
}

// BlockSize returns the number of bytes in a block (2^B). It is 0 when B is
// 64, where the block size does not fit in a uint64.
func (g Geometry) BlockSize() uint64 {
	return shiftLeft(1, g.BlockOffsetBits)
}

// BlockSizeString formats the block size for reports, as a power of two
// once it no longer reads well in bytes.
func (g Geometry) BlockSizeString() string {
	if g.BlockOffsetBits >= 63 {
		return fmt.Sprintf("2^%dB", g.BlockOffsetBits)
	}
	return fmt.Sprintf("%dB", g.BlockSize())
}

// TotalLines returns the number of lines in the whole cache.
func (g Geometry) TotalLines() int {
	return g.NumSets() * g.LinesPerSet
}

// Decompose splits addr into tag, set index and block offset.
func (g Geometry) Decompose(addr uint64) Address {
	return Address{
		Tag:    shiftRight(addr, g.SetIndexBits+g.BlockOffsetBits),
		Index:  shiftRight(addr, g.BlockOffsetBits) & lowMask(g.SetIndexBits),
		Offset: addr & lowMask(g.BlockOffsetBits),
	}
}

// Compose is the inverse of Decompose. Field bits that do not fit their
// width are dropped.
func (g Geometry) Compose(a Address) uint64 {
	return shiftLeft(a.Tag, g.SetIndexBits+g.BlockOffsetBits) |
		shiftLeft(a.Index&lowMask(g.SetIndexBits), g.BlockOffsetBits) |
		a.Offset&lowMask(g.BlockOffsetBits)
}

// BlockAddress clears the block offset bits of addr.
func (g Geometry) BlockAddress(addr uint64) uint64 {
	return addr &^ lowMask(g.BlockOffsetBits)
}

// String formats the geometry the way it is given on the command line.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.SetIndexBits, g.LinesPerSet, g.BlockOffsetBits)
}

// shiftLeft and shiftRight saturate to zero for shift counts that reach the
// address width.
func shiftLeft(v uint64, n uint) uint64 {
	if n >= AddressWidth {
		return 0
	}
	return v << n
}

func shiftRight(v uint64, n uint) uint64 {
	if n >= AddressWidth {
		return 0
	}
	return v >> n
}

// lowMask returns a mask with the n least significant bits set.
func lowMask(n uint) uint64 {
	if n >= AddressWidth {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}
