// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.RecordDB interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the RecordDB interface contract,
//     including the atomicity of conditional updates under concurrent lock acquisition
//   - benchmark: Performance tests for inserts, reads, acquire/release cycles and snapshots
//
// Example usage:
//
//	factory := func() db.RecordDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunRecordDBTests(t, "MyDatabase", factory)
//	dbtesting.RunRecordDBBenchmarks(b, "MyDatabase", factory)
package testing
