package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
)

// RunRecordDBBenchmarks runs all benchmarks for a record database implementation
func RunRecordDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("AcquireRelease", func(b *testing.B) {
		benchmarkAcquireRelease(b, factory())
	})

	b.Run("GuardedWrite", func(b *testing.B) {
		benchmarkGuardedWrite(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fillDB(database db.RecordDB, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("bench-%d", i)
		database.Insert(record.New(ids[i], map[string]string{"payload": "some value"}, baseTime), uint64(i+1))
	}
	return ids
}

func benchmarkInsert(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.Insert(record.New(fmt.Sprintf("insert-%d", i), nil, baseTime), i)
		}
	})
}

func benchmarkGet(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet)

	ids := fillDB(database, 10_000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Get(ids[r.Intn(len(ids))])
		}
	})
}

func benchmarkAcquireRelease(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureConditionalUpdate)

	ids := fillDB(database, 10_000)
	var idx atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			id := ids[r.Intn(len(ids))]
			held := lockOf("bench", false)
			if _, res := database.Update(id, record.Condition{Lock: unlocked()}, record.Assignment{Lock: held}, idx.Add(1)); res == db.UpdateApplied {
				database.Update(id, record.Condition{Lock: held}, record.Assignment{Lock: unlocked()}, idx.Add(1))
			}
		}
	})
}

func benchmarkGuardedWrite(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureConditionalUpdate)

	ids := fillDB(database, 1_000)
	held := lockOf("bench", false)
	for _, id := range ids {
		database.Update(id, record.Condition{}, record.Assignment{Lock: held}, 0)
	}
	var idx atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Update(ids[r.Intn(len(ids))], record.Condition{Lock: held},
				record.Assignment{Fields: map[string]string{"payload": "changed"}}, idx.Add(1))
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)

	fillDB(database, 50_000)
	var buf bytes.Buffer

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		data := buf.Bytes()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
