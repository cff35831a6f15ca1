package db

import (
	"io"

	"github.com/ValentinKolb/dRL/lib/record"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplRedis Implementation = "redis"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert            Feature = 1 << iota // Support for Insert operations
	FeatureUpdate                                // Support for unconditional Update operations
	FeatureConditionalUpdate                     // Support for Update operations with a lock condition
	FeatureGet                                   // Support for Get operations
	FeatureDelete                                // Support for Delete operations
	FeatureRange                                 // Support for Range operations
	FeatureSave                                  // Support for Save operations
	FeatureLoad                                  // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureUpdate:
		return "Update"
	case FeatureConditionalUpdate:
		return "ConditionalUpdate"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureRange:
		return "Range"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

// UpdateResult is the outcome of a conditional update
type UpdateResult int

const (
	UpdateApplied         UpdateResult = iota // the assignment was written
	UpdateNotFound                            // no record with the given id exists
	UpdateConditionFailed                     // the stored record did not satisfy the condition
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateApplied:
		return "Applied"
	case UpdateNotFound:
		return "NotFound"
	case UpdateConditionFailed:
		return "ConditionFailed"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	RecordCount       int            `json:"record_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// RecordDB defines an interface for record database implementations.
// Records are addressed by their id. All changes to an existing record go through Update,
// which evaluates a condition and applies an assignment as one atomic step.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type RecordDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert stores a new record. If a record with the same id already exists, nothing is
	// written and false is returned.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	Insert(rec record.Record, writeIndex uint64) (inserted bool)

	// Update applies assign to the record with the given id if cond holds for the stored record.
	// The check and the write are atomic with respect to all other operations on the same id.
	// The returned record is the stored record after the operation (for UpdateConditionFailed
	// it is the unchanged stored record, for UpdateNotFound it is the zero value).
	Update(id string, cond record.Condition, assign record.Assignment, writeIndex uint64) (rec record.Record, result UpdateResult)

	// Delete removes the record with the given id. Returns false if no such record existed.
	Delete(id string, writeIndex uint64) (deleted bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the record with the given id.
	Get(id string) (rec record.Record, loaded bool)

	// Range calls fn with a copy of every stored record until fn returns false.
	// The iteration order is unspecified.
	Range(fn func(rec record.Record) bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
