package cache

import "fmt"

// Engine names a Model implementation.
type Engine string

const (
	// EngineLRU selects Cache.
	EngineLRU Engine = "lru"
	// EngineAkita selects DirectoryCache.
	EngineAkita Engine = "akita"
)

// Engines lists the supported engines.
func Engines() []Engine {
	return []Engine{EngineLRU, EngineAkita}
}

// NewModel creates a model of the given engine. An empty engine selects
// EngineLRU.
func NewModel(e Engine, g Geometry) (Model, error) {
	switch e {
	case EngineLRU, "":
		return New(g)
	case EngineAkita:
		return NewDirectoryCache(g)
	default:
		return nil, fmt.Errorf("unknown cache engine %q", e)
	}
}
