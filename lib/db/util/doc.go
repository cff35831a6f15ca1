// Package util provides small helpers shared by the RecordDB implementations:
// seeded string hashing for shard selection and statistics about the shard distribution.
package util
