package serializer

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/rpc/common"
)

// benchmarkRecord returns an encoded record with n fields
func benchmarkRecord(n int, locked bool) []byte {
	fields := make(map[string]string, n)
	for i := 0; i < n; i++ {
		fields[fmt.Sprintf("field-%03d", i)] = fmt.Sprintf("value of field %d", i)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := record.New("3f1c9a7e-6a44-4d0e-9a3b-2f1e5d1c0b7a", fields, now)
	if locked {
		rec.Lock = record.NewLock(now, "alice", true)
	}
	return record.Marshal(rec)
}

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	recs := make([]record.Record, 0, 100)
	for i := 0; i < 100; i++ {
		rec, _ := record.Unmarshal(benchmarkRecord(4, i%3 == 0))
		rec.ID = fmt.Sprintf("rec-%d", i)
		recs = append(recs, rec)
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"GetRequest": *common.NewGetRequest("3f1c9a7e-6a44-4d0e-9a3b-2f1e5d1c0b7a"),
		"AcquireRequest": *common.NewAcquireRequest(
			"3f1c9a7e-6a44-4d0e-9a3b-2f1e5d1c0b7a", "alice", true,
		),
		"SmallRecord":  *common.NewRecordResponse(common.MsgTLCKAcquire, benchmarkRecord(2, true), nil),
		"MediumRecord": *common.NewGetResponse(benchmarkRecord(32, false), true, nil),
		"LargeRecord":  *common.NewGetResponse(benchmarkRecord(512, true), true, nil),
		"List100":      *common.NewListResponse(common.MsgTRecList, record.MarshalList(recs), nil),
		"ErrorMessage": {
			MsgType: common.MsgTLCKSave,
			ErrCode: common.ErrCHardLockActive,
			Err:     "record \"3f1c9a7e\": lockable: hard lock active (held by \"alice\" since 2024-03-01T12:00:00Z)",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			serializer := factory()
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}

			b.Run(name+"_"+msgName, func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()

				var out common.Message
				for i := 0; i < b.N; i++ {
					if err := serializer.Deserialize(data, &out); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
