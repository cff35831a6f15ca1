package internal

import (
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (record with metadata)
// --------------------------------------------------------------------------

// Entry stores a record together with the write index of its last change
type Entry struct {
	Record record.Record
	Index  uint64 // write index when this entry was created/updated
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
// Each shard has its own concurrent map, xsync locks per bucket inside the map
type Shard struct {
	Data *xsync.MapOf[string, Entry]
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}
