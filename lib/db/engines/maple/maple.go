package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dRL/lib/db/util"
	"github.com/ValentinKolb/dRL/lib/record"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "MAPLEREC" // File format identifier
	mapleVersion = 1          // Snapshot format version
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory record database with sharded data
type mapleImpl struct {
	mu        sync.RWMutex      // guards the shards slice, only Load takes the write lock
	seed      uint64            // Seed for the shard hash
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Highest write index seen
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.RecordDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	return &mapleImpl{
		seed:   util.GenerateSeed(),
		shards: newShards(numShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardFor returns the shard responsible for id
//
// Thread-safety: the caller must hold maple.mu (read or write).
func (maple *mapleImpl) shardFor(id string) *internal.Shard {
	return maple.shards[util.ShardIndex(util.HashString(id, maple.seed), len(maple.shards))]
}

// --------------------------------------------------------------------------
// RecordDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores a new record if no record with the same id exists.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Insert(rec record.Record, writeIdx uint64) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	stored := rec.Clone()
	inserted := false
	maple.shardFor(rec.ID).Data.Compute(rec.ID, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded {
			return old, false
		}
		inserted = true
		return internal.Entry{Record: stored, Index: writeIdx}, false
	})
	return inserted
}

// Update evaluates cond against the stored record and applies assign inside one xsync
// Compute call, so no other write to the same id can interleave.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Update(id string, cond record.Condition, assign record.Assignment, writeIdx uint64) (record.Record, db.UpdateResult) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	var (
		out    record.Record
		result db.UpdateResult
	)
	maple.shardFor(id).Data.Compute(id, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			result = db.UpdateNotFound
			return old, true // delete=true because else the zero entry would be created
		}
		if !cond.Holds(old.Record) {
			result = db.UpdateConditionFailed
			out = old.Record.Clone()
			return old, false
		}

		updated := assign.Apply(old.Record)
		result = db.UpdateApplied
		out = updated.Clone()
		return internal.Entry{Record: updated, Index: writeIdx}, false
	})
	return out, result
}

// Delete removes the record with the given id.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(id string, writeIdx uint64) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	_, deleted := maple.shardFor(id).Data.LoadAndDelete(id)
	return deleted
}

// --------------------------------------------------------------------------
// RecordDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the record with the given id.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(id string) (record.Record, bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	e, ok := maple.shardFor(id).Data.Load(id)
	if !ok {
		return record.Record{}, false
	}
	return e.Record.Clone(), true
}

// Range calls fn with a copy of every record. Records written during the iteration may or
// may not be visited.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Range(fn func(rec record.Record) bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	for _, shard := range maple.shards {
		cont := true
		shard.Data.Range(func(_ string, e internal.Entry) bool {
			cont = fn(e.Record.Clone())
			return cont
		})
		if !cont {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

/*
	Snapshot format (little endian):

	magic (8 bytes) | version (1 byte) | seed (8 bytes) | count (8 bytes) | (index (8 bytes) | len (4 bytes) | record)*

	The record bytes use the record package binary format.
*/

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	type entryToSave struct {
		index uint64
		data  []byte
	}

	// snapshot all shards first so the count in the header is exact
	var entries []entryToSave
	maple.mu.RLock()
	seed := maple.seed
	for _, shard := range maple.shards {
		shard.Data.Range(func(_ string, e internal.Entry) bool {
			entries = append(entries, entryToSave{index: e.Index, data: record.Marshal(e.Record)})
			return true
		})
	}
	maple.mu.RUnlock()

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, seed); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, e.index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.data))); err != nil {
			return err
		}
		if _, err := bw.Write(e.data); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database content with the snapshot read from r
//
// Thread-safety: Load blocks all other operations until it is done.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	// build the new shards aside, a broken snapshot leaves the database untouched
	shards := newShards(len(maple.shards))
	var maxIndex uint64
	for i := uint64(0); i < count; i++ {
		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}
		var size uint32
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return err
		}
		// read through a limit, a corrupt size must not allocate before the bytes exist
		data, err := io.ReadAll(io.LimitReader(br, int64(size)))
		if err != nil {
			return err
		}
		if len(data) != int(size) {
			return fmt.Errorf("entry %d: %w", i, io.ErrUnexpectedEOF)
		}
		rec, err := record.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}

		shard := shards[util.ShardIndex(util.HashString(rec.ID, seed), len(shards))]
		shard.Data.Store(rec.ID, internal.Entry{Record: rec, Index: index})
		maxIndex = max(maxIndex, index)
	}

	maple.shards = shards
	maple.seed = seed
	maple.currIndex.Store(maxIndex)
	return nil
}

// --------------------------------------------------------------------------
// RecordDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	var (
		count      int
		sizeBytes  int
		shardSizes = make([]float64, len(maple.shards))
	)
	for i, shard := range maple.shards {
		shard.Data.Range(func(id string, e internal.Entry) bool {
			// id, timestamps and the lock holder dominate, fields are counted as raw bytes
			sizeBytes += 32 + len(id) + len(e.Record.Lock.LockedBy)
			for k, v := range e.Record.Fields {
				sizeBytes += len(k) + len(v)
			}
			return true
		})
		n := shard.Data.Size()
		shardSizes[i] = float64(n)
		count += n
	}

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Info:              "SizeBytes is an estimate of the payload size.",
	}

	return db.DatabaseInfo{
		SizeBytes:   sizeBytes,
		RecordCount: count,
		DbType:      db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureInsert, db.FeatureUpdate, db.FeatureConditionalUpdate,
			db.FeatureGet, db.FeatureDelete, db.FeatureRange,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific RecordDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureInsert |
		db.FeatureUpdate |
		db.FeatureConditionalUpdate |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureRange |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the database. The in-memory engine holds no external resources.
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
