package dstore

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var at = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestFSM() *RecordStateMachine {
	factory := CreateStateMachineFactory(func() db.RecordDB {
		return maple.NewMapleDB(nil)
	})
	return factory(1, 1).(*RecordStateMachine)
}

// applyCmds runs the commands through Update with consecutive raft indices starting at 1
func applyCmds(t *testing.T, fsm *RecordStateMachine, cmds ...internal.Command) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i, cmd := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: cmd.Serialize()}
	}
	out, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	results := make([]sm.Result, len(out))
	for i, e := range out {
		results[i] = e.Result
	}
	return results
}

func createCmd(rec record.Record) internal.Command {
	return internal.Command{Type: internal.CommandTCreate, ID: rec.ID, Body: record.Marshal(rec)}
}

func updateCmd(id string, cond record.Condition, assign record.Assignment) internal.Command {
	return internal.Command{Type: internal.CommandTUpdate, ID: id, Body: record.MarshalUpdate(cond, assign)}
}

func TestStateMachineCommands(t *testing.T) {
	fsm := newTestFSM()
	defer fsm.Close()

	alice := record.NewLock(at, "alice", false)
	bob := record.NewLock(at, "bob", true)
	unlocked := record.LockState{}

	results := applyCmds(t, fsm,
		createCmd(record.New("r", map[string]string{"a": "1"}, at)),
		createCmd(record.New("r", nil, at)),
		updateCmd("r", record.Condition{Lock: &unlocked}, record.Assignment{Lock: &alice}),
		updateCmd("r", record.Condition{Lock: &unlocked}, record.Assignment{Lock: &bob}),
		updateCmd("missing", record.Condition{}, record.Assignment{Lock: &unlocked}),
		internal.Command{Type: internal.CommandTDelete, ID: "missing"},
		internal.Command{Type: internal.CommandType(42), ID: "r"},
	)

	want := []store.RetCode{
		store.RetCSuccess,
		store.RetCAlreadyExists,
		store.RetCSuccess,
		store.RetCConditionFailed,
		store.RetCNotFound,
		store.RetCNotFound,
		store.RetCInvalidOperation,
	}
	for i, code := range want {
		if got := store.RetCode(results[i].Value); got != code {
			t.Errorf("command %d: expected %s, got %s (%s)", i, code, got, results[i].Data)
		}
	}

	// the successful update returns the stored record
	rec, err := record.Unmarshal(results[2].Data)
	if err != nil {
		t.Fatalf("invalid update payload: %v", err)
	}
	if !rec.Lock.Equal(alice) || rec.Fields["a"] != "1" {
		t.Errorf("unexpected record in update result: %v", rec)
	}
}

func TestStateMachineRejectsInvalidEntries(t *testing.T) {
	fsm := newTestFSM()
	defer fsm.Close()

	entries := []sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{0, 0}},
		{Index: 3, Cmd: createCmd(record.Record{ID: "r", Lock: record.LockState{LockedBy: "x"}}).Serialize()},
		{Index: 4, Cmd: internal.Command{Type: internal.CommandTCreate, ID: "other", Body: record.Marshal(record.New("r", nil, at))}.Serialize()},
	}
	out, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := []store.RetCode{store.RetCInvalidOperation, store.RetCInternalError, store.RetCInvalidOperation, store.RetCInvalidOperation}
	for i, code := range want {
		if got := store.RetCode(out[i].Result.Value); got != code {
			t.Errorf("entry %d: expected %s, got %s (%s)", i, code, got, out[i].Result.Data)
		}
	}
}

func TestStateMachineLookup(t *testing.T) {
	fsm := newTestFSM()
	defer fsm.Close()

	applyCmds(t, fsm,
		createCmd(record.New("a", nil, at)),
		createCmd(record.New("b", nil, at)),
	)

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, ID: "a"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec := res.(*record.Record); rec == nil || rec.ID != "a" {
		t.Errorf("expected record a, got %v", res)
	}

	res, _ = fsm.Lookup(internal.Query{Type: internal.QueryTGet, ID: "missing"})
	if rec := res.(*record.Record); rec != nil {
		t.Errorf("expected nil for a missing record, got %v", rec)
	}

	res, _ = fsm.Lookup(internal.Query{Type: internal.QueryTList})
	if recs := res.([]record.Record); len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}

	res, _ = fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	if info := res.(db.DatabaseInfo); info.RecordCount != 2 {
		t.Errorf("expected record count 2, got %d", info.RecordCount)
	}

	if _, err := fsm.Lookup("not a query"); store.Code(err) != store.RetCInternalError {
		t.Errorf("expected internal error for an invalid query type, got %v", err)
	}
}

func TestStateMachineSnapshot(t *testing.T) {
	fsm := newTestFSM()
	defer fsm.Close()

	lock := record.NewLock(at, "alice", true)
	applyCmds(t, fsm,
		createCmd(record.New("a", map[string]string{"k": "v"}, at)),
		updateCmd("a", record.Condition{}, record.Assignment{Lock: &lock}),
	)

	var buf bytes.Buffer
	if err := fsm.SaveSnapshot(nil, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	restored := newTestFSM()
	defer restored.Close()
	if err := restored.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot() error = %v", err)
	}

	res, _ := restored.Lookup(internal.Query{Type: internal.QueryTGet, ID: "a"})
	rec := res.(*record.Record)
	if rec == nil || !rec.Lock.Equal(lock) || rec.Fields["k"] != "v" {
		t.Errorf("unexpected record after recovery: %v", rec)
	}
}
