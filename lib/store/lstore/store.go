package lstore

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
)

type storeImpl struct {
	db    db.RecordDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// It uses the db created by factory directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Create(rec record.Record) error {
	if !s.db.SupportsFeature(db.FeatureInsert) {
		return store.NewError(store.RetCUnsupportedOperation, "Create operation is not supported")
	}
	if err := store.ValidateCreate(rec); err != nil {
		return err
	}
	if !s.db.Insert(rec, s.incAndGetIndex()) {
		return store.NewError(store.RetCAlreadyExists, fmt.Sprintf("record %q already exists", rec.ID))
	}
	return nil
}

func (s *storeImpl) Get(id string) (record.Record, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return record.Record{}, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	rec, ok := s.db.Get(id)
	return rec, ok, nil
}

func (s *storeImpl) Update(id string, cond record.Condition, assign record.Assignment) (record.Record, error) {
	feature := db.FeatureUpdate
	if cond.Lock != nil {
		feature |= db.FeatureConditionalUpdate
	}
	if !s.db.SupportsFeature(feature) {
		return record.Record{}, store.NewError(store.RetCUnsupportedOperation, "Update operation is not supported")
	}
	if err := store.ValidateUpdate(id, assign); err != nil {
		return record.Record{}, err
	}

	rec, res := s.db.Update(id, cond, assign, s.incAndGetIndex())
	if err := store.ResultToError(id, res); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

func (s *storeImpl) Delete(id string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if !s.db.Delete(id, s.incAndGetIndex()) {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("record %q not found", id))
	}
	return nil
}

func (s *storeImpl) List() ([]record.Record, error) {
	if !s.db.SupportsFeature(db.FeatureRange) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "List operation is not supported")
	}
	var recs []record.Record
	s.db.Range(func(rec record.Record) bool {
		recs = append(recs, rec)
		return true
	})
	return recs, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
