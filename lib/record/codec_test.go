package record

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func TestMarshalUnmarshal(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 123456789, time.UTC)

	tests := []struct {
		name string
		rec  Record
	}{
		{name: "empty", rec: Record{ID: "r"}},
		{name: "fields", rec: New("r", map[string]string{"a": "1", "b": ""}, at)},
		{name: "soft lock", rec: Record{ID: "r", ModifiedAt: at, Lock: NewLock(at, "alice", false)}},
		{name: "hard lock", rec: Record{ID: "r", ModifiedAt: at, Lock: NewLock(at, "bob", true),
			Fields: map[string]string{"content": "a little story"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(Marshal(tt.rec))
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.rec) {
				t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, tt.rec)
			}
		})
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	fields := map[string]string{}
	for _, k := range []string{"z", "a", "m", "q", "b"} {
		fields[k] = k
	}
	rec := Record{ID: "r", Fields: fields}
	first := Marshal(rec)
	for i := 0; i < 20; i++ {
		if !bytes.Equal(first, Marshal(rec)) {
			t.Fatalf("encoding differs between runs")
		}
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	data := Marshal(New("record", map[string]string{"k": "v"}, time.Now()))
	for i := 0; i < len(data); i++ {
		if _, err := Unmarshal(data[:i]); err == nil {
			t.Fatalf("expected error for data truncated to %d bytes", i)
		}
	}
}

func TestMarshalUpdate(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	lock := NewLock(at, "alice", true)
	cleared := LockState{}

	tests := []struct {
		name   string
		cond   Condition
		assign Assignment
	}{
		{name: "acquire", cond: Condition{Lock: &cleared}, assign: Assignment{Lock: &lock}},
		{name: "release", assign: Assignment{Lock: &cleared}},
		{name: "save", cond: Condition{Lock: &lock}, assign: Assignment{
			Fields: map[string]string{"title": "x"}, ModifiedAt: at}},
		{name: "empty fields", assign: Assignment{Fields: map[string]string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, assign, err := UnmarshalUpdate(MarshalUpdate(tt.cond, tt.assign))
			if err != nil {
				t.Fatalf("UnmarshalUpdate() error = %v", err)
			}
			if !reflect.DeepEqual(cond, tt.cond) {
				t.Errorf("condition mismatch: got %#v want %#v", cond, tt.cond)
			}
			if !reflect.DeepEqual(assign, tt.assign) {
				t.Errorf("assignment mismatch: got %#v want %#v", assign, tt.assign)
			}
		})
	}
}

func TestMarshalList(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	recs := []Record{
		New("a", nil, at),
		{ID: "b", ModifiedAt: at, Lock: NewLock(at, "alice", false)},
	}
	got, err := UnmarshalList(MarshalList(recs))
	if err != nil {
		t.Fatalf("UnmarshalList() error = %v", err)
	}
	if !reflect.DeepEqual(got, recs) {
		t.Errorf("list mismatch:\n got  %#v\n want %#v", got, recs)
	}
}

func TestUnmarshalHugeCounts(t *testing.T) {
	huge := []byte{0xff, 0xff, 0xff, 0xff}

	if _, err := UnmarshalFields(huge); err == nil {
		t.Error("UnmarshalFields() expected error for oversized count")
	}
	if _, err := UnmarshalList(huge); err == nil {
		t.Error("UnmarshalList() expected error for oversized count")
	}
	if _, _, err := UnmarshalUpdate(append([]byte{hasAssignFields}, huge...)); err == nil {
		t.Error("UnmarshalUpdate() expected error for oversized field count")
	}

	// a record whose field count claims more pairs than bytes remain
	rec := Marshal(Record{ID: "r", Fields: map[string]string{"a": "1"}})
	tail := len(rec) - 4 - 4 - 1 - 4 - 1
	copy(rec[tail:tail+4], huge)
	if _, err := Unmarshal(rec); err == nil {
		t.Error("Unmarshal() expected error for oversized field count")
	}

	// counts that fit the remaining bytes still decode
	fields, err := UnmarshalFields(MarshalFields(map[string]string{"a": "", "b": ""}))
	if err != nil || len(fields) != 2 {
		t.Errorf("UnmarshalFields() = %v, %v, want 2 fields", fields, err)
	}
}
