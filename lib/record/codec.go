package record

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Binary Format
// --------------------------------------------------------------------------

/*
	All integers are big endian. Strings and byte slices are prefixed with a 4 byte length.
	Timestamps are stored as 8 byte unix nanoseconds, 0 encodes the zero time.

	Record:     id | modifiedAt | lockedAt | lockedBy | hardLock (1 byte) | fieldCount (4 bytes) | (key | value)*
	Update:     flags (1 byte) | [cond.lock] | [assign.lock] | [assign.fields] | [assign.modifiedAt]
	List:       count (4 bytes) | (len (4 bytes) | record)*
*/

// Flags for the optional members of an encoded update
const (
	hasCondLock         byte = 1 << 0
	hasAssignLock       byte = 1 << 1
	hasAssignFields     byte = 1 << 2
	hasAssignModifiedAt byte = 1 << 3
)

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Marshal encodes a record into the binary format.
func Marshal(rec Record) []byte {
	e := encoder{buf: make([]byte, 0, 64+len(rec.ID)+16*len(rec.Fields))}
	e.record(rec)
	return e.buf
}

// Unmarshal decodes a record from the binary format.
func Unmarshal(data []byte) (Record, error) {
	d := decoder{data: data}
	rec := d.record()
	if d.err != nil {
		return Record{}, d.err
	}
	return rec, nil
}

// MarshalList encodes a list of records.
func MarshalList(recs []Record) []byte {
	e := encoder{}
	e.uint32(uint32(len(recs)))
	for _, rec := range recs {
		e.bytes(Marshal(rec))
	}
	return e.buf
}

// UnmarshalList decodes a list of records.
func UnmarshalList(data []byte) ([]Record, error) {
	d := decoder{data: data}
	n := d.count(4)
	if d.err != nil {
		return nil, d.err
	}
	recs := make([]Record, 0, n)
	for i := uint32(0); i < n; i++ {
		raw := d.bytes()
		if d.err != nil {
			return nil, d.err
		}
		rec, err := Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// MarshalUpdate encodes the condition and assignment of a conditional update.
func MarshalUpdate(cond Condition, assign Assignment) []byte {
	var flags byte
	if cond.Lock != nil {
		flags |= hasCondLock
	}
	if assign.Lock != nil {
		flags |= hasAssignLock
	}
	if assign.Fields != nil {
		flags |= hasAssignFields
	}
	if !assign.ModifiedAt.IsZero() {
		flags |= hasAssignModifiedAt
	}

	e := encoder{}
	e.buf = append(e.buf, flags)
	if cond.Lock != nil {
		e.lock(*cond.Lock)
	}
	if assign.Lock != nil {
		e.lock(*assign.Lock)
	}
	if assign.Fields != nil {
		e.fields(assign.Fields)
	}
	if !assign.ModifiedAt.IsZero() {
		e.time(assign.ModifiedAt)
	}
	return e.buf
}

// UnmarshalUpdate decodes the condition and assignment of a conditional update.
func UnmarshalUpdate(data []byte) (Condition, Assignment, error) {
	var (
		cond   Condition
		assign Assignment
	)
	if len(data) < 1 {
		return cond, assign, fmt.Errorf("record: update data too short")
	}
	d := decoder{data: data, pos: 1}
	flags := data[0]
	if flags&hasCondLock != 0 {
		l := d.lock()
		cond.Lock = &l
	}
	if flags&hasAssignLock != 0 {
		l := d.lock()
		assign.Lock = &l
	}
	if flags&hasAssignFields != 0 {
		assign.Fields = d.fields()
		if assign.Fields == nil && d.err == nil {
			assign.Fields = map[string]string{}
		}
	}
	if flags&hasAssignModifiedAt != 0 {
		assign.ModifiedAt = d.time()
	}
	return cond, assign, d.err
}

// MarshalFields encodes a field map.
func MarshalFields(fields map[string]string) []byte {
	e := encoder{}
	e.fields(fields)
	return e.buf
}

// UnmarshalFields decodes a field map.
func UnmarshalFields(data []byte) (map[string]string, error) {
	d := decoder{data: data}
	fields := d.fields()
	return fields, d.err
}

// --------------------------------------------------------------------------
// Encoder
// --------------------------------------------------------------------------

type encoder struct {
	buf []byte
}

func (e *encoder) uint32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encoder) bytes(b []byte) {
	e.uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) string(s string) {
	e.uint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) time(t time.Time) {
	var ns int64
	if !t.IsZero() {
		ns = t.UnixNano()
	}
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(ns))
}

func (e *encoder) lock(l LockState) {
	e.time(l.LockedAt)
	e.string(string(l.LockedBy))
	if l.HardLock {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) fields(fields map[string]string) {
	// sort keys so equal records always encode to equal bytes
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.uint32(uint32(len(keys)))
	for _, k := range keys {
		e.string(k)
		e.string(fields[k])
	}
}

func (e *encoder) record(rec Record) {
	e.string(rec.ID)
	e.time(rec.ModifiedAt)
	e.lock(rec.Lock)
	e.fields(rec.Fields)
}

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// decoder reads the binary format. The first error sticks, all later reads return zero values.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || len(d.data)-d.pos < n {
		d.err = fmt.Errorf("record: data too short (need %d bytes at offset %d, have %d)", n, d.pos, len(d.data)-d.pos)
		return false
	}
	return true
}

func (d *decoder) uint32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v
}

// count reads an element count and rejects it if the remaining data cannot hold
// that many elements of at least minSize bytes each.
func (d *decoder) count(minSize int) uint32 {
	n := d.uint32()
	if d.err != nil {
		return 0
	}
	if left := len(d.data) - d.pos; uint64(n)*uint64(minSize) > uint64(left) {
		d.err = fmt.Errorf("record: count %d exceeds remaining %d bytes", n, left)
		return 0
	}
	return n
}

func (d *decoder) bytes() []byte {
	n := int(d.uint32())
	if !d.need(n) {
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) time() time.Time {
	if !d.need(8) {
		return time.Time{}
	}
	ns := int64(binary.BigEndian.Uint64(d.data[d.pos : d.pos+8]))
	d.pos += 8
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (d *decoder) lock() LockState {
	l := LockState{
		LockedAt: d.time(),
		LockedBy: Principal(d.string()),
	}
	if d.need(1) {
		l.HardLock = d.data[d.pos] == 1
		d.pos++
	}
	return l
}

func (d *decoder) fields() map[string]string {
	n := d.count(8)
	if d.err != nil || n == 0 {
		return nil
	}
	fields := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k := d.string()
		v := d.string()
		if d.err != nil {
			return nil
		}
		fields[k] = v
	}
	return fields
}

func (d *decoder) record() Record {
	rec := Record{
		ID:         d.string(),
		ModifiedAt: d.time(),
		Lock:       d.lock(),
		Fields:     d.fields(),
	}
	if d.err == nil && d.pos != len(d.data) {
		d.err = fmt.Errorf("record: %d trailing bytes", len(d.data)-d.pos)
	}
	return rec
}
