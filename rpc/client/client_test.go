package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple"
	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/lstore"
	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/serializer"
	"github.com/ValentinKolb/dRL/rpc/server"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// loopbackTransport hands requests directly to a server adapter
type loopbackTransport struct {
	mu         sync.Mutex
	now        time.Time
	serializer serializer.IRPCSerializer
	store      store.IStore
	adapter    server.IRPCServerAdapter
	connected  bool
	failNext   error
}

func newLoopback(s serializer.IRPCSerializer) *loopbackTransport {
	lt := &loopbackTransport{
		now:        t0,
		serializer: s,
		store:      lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) }),
	}
	lt.adapter = server.NewLockManagerServerAdapter(
		lockable.WithClock(lockable.ClockFunc(lt.clock)),
		lockable.WithAuditSink(nil),
	)
	return lt
}

func (lt *loopbackTransport) clock() time.Time {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.now
}

func (lt *loopbackTransport) advance(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.now = lt.now.Add(d)
}

func (lt *loopbackTransport) Connect(common.ClientConfig) error {
	lt.connected = true
	return nil
}

func (lt *loopbackTransport) Send(_ uint64, req []byte) ([]byte, error) {
	if lt.failNext != nil {
		err := lt.failNext
		lt.failNext = nil
		return nil, err
	}
	var msg common.Message
	if err := lt.serializer.Deserialize(req, &msg); err != nil {
		return lt.serializer.Serialize(*common.NewErrorResponse(err.Error()))
	}
	return lt.serializer.Serialize(*lt.adapter.Handle(&msg, lt.store))
}

func (lt *loopbackTransport) Close() error {
	lt.connected = false
	return nil
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"binary": serializer.NewBinarySerializer,
	"json":   serializer.NewJSONSerializer,
	"gob":    serializer.NewGOBSerializer,
}

func newClients(t *testing.T, s serializer.IRPCSerializer) (*loopbackTransport, store.IStore, lockable.ILockManager) {
	t.Helper()
	lt := newLoopback(s)
	st, err := NewRPCStore(1, common.ClientConfig{}, lt, s)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := NewRPCLockMgr(1, common.ClientConfig{}, lt, s)
	if err != nil {
		t.Fatal(err)
	}
	if !lt.connected {
		t.Fatal("transport not connected")
	}
	return lt, st, lm
}

func TestRPCStore(t *testing.T) {
	for name, newSerializer := range serializers {
		t.Run(name, func(t *testing.T) {
			_, st, _ := newClients(t, newSerializer())

			if err := st.Create(record.New("a", map[string]string{"k": "v"}, t0)); err != nil {
				t.Fatalf("create: %v", err)
			}
			err := st.Create(record.New("a", nil, t0))
			if store.Code(err) != store.RetCAlreadyExists {
				t.Errorf("duplicate create: expected AlreadyExists, got %v", err)
			}

			rec, ok, err := st.Get("a")
			if err != nil || !ok || rec.Fields["k"] != "v" || !rec.ModifiedAt.Equal(t0) {
				t.Fatalf("get: unexpected result %v %t %v", rec, ok, err)
			}
			if _, ok, err := st.Get("missing"); ok || err != nil {
				t.Errorf("get missing: expected not found, got %t %v", ok, err)
			}

			if _, err := st.Update("a", record.Condition{}, record.Assignment{ModifiedAt: t0}); store.Code(err) != store.RetCUnsupportedOperation {
				t.Errorf("update: expected UnsupportedOperation, got %v", err)
			}

			recs, err := st.List()
			if err != nil || len(recs) != 1 {
				t.Errorf("list: expected 1 record, got %d (%v)", len(recs), err)
			}
			if _, err := st.GetDBInfo(); err != nil {
				t.Errorf("info: %v", err)
			}

			if err := st.Delete("a"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := st.Delete("a"); !store.IsNotFound(err) {
				t.Errorf("second delete: expected NotFound, got %v", err)
			}
		})
	}
}

func TestRPCLockMgrMirrorsHandle(t *testing.T) {
	for name, newSerializer := range serializers {
		t.Run(name, func(t *testing.T) {
			lt, st, lm := newClients(t, newSerializer())
			if err := st.Create(record.New("r", map[string]string{"title": "old"}, t0)); err != nil {
				t.Fatal(err)
			}
			rec, _, _ := st.Get("r")

			if err := lm.Acquire(&rec, "alice", false); err != nil {
				t.Fatalf("acquire: %v", err)
			}
			if rec.Lock.LockedBy != "alice" || !rec.Lock.LockedAt.Equal(t0) || rec.Lock.HardLock {
				t.Errorf("acquire: handle not mirrored %+v", rec.Lock)
			}

			lt.advance(30 * time.Second)
			rec.Fields["title"] = "new"
			if err := lm.Save(&rec, nil); err != nil {
				t.Fatalf("save: %v", err)
			}
			if !rec.ModifiedAt.Equal(t0.Add(30*time.Second)) || rec.Fields["title"] != "new" {
				t.Errorf("save: handle not mirrored %v", rec)
			}

			if err := lm.ReleaseFor(&rec, "alice"); err != nil {
				t.Fatalf("releaseFor: %v", err)
			}
			if rec.Lock.IsSet() {
				t.Errorf("releaseFor: lock still set in handle")
			}

			stored, _, _ := st.Get("r")
			if stored.Fields["title"] != "new" || stored.Lock.IsSet() {
				t.Errorf("stored record: unexpected %v", stored)
			}
		})
	}
}

func TestRPCLockMgrErrors(t *testing.T) {
	lt, st, lm := newClients(t, serializer.NewBinarySerializer())
	if err := st.Create(record.New("r", nil, t0)); err != nil {
		t.Fatal(err)
	}

	alice, _, _ := st.Get("r")
	bob, _, _ := st.Get("r")
	if err := lm.Acquire(&alice, "alice", true); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// bob holds a stale handle, the failed acquire still refreshes it
	err := lm.Acquire(&bob, "bob", false)
	if !errors.Is(err, lockable.ErrLockConflict) {
		t.Fatalf("acquire by bob: expected conflict, got %v", err)
	}
	if bob.Lock.LockedBy != "alice" {
		t.Errorf("failed acquire: handle not refreshed %+v", bob.Lock)
	}

	if err := lm.Save(&bob, map[string]string{"x": "y"}); !errors.Is(err, lockable.ErrHardLockActive) {
		t.Errorf("save under hard lock: expected %v, got %v", lockable.ErrHardLockActive, err)
	}
	if err := lm.ReleaseFor(&bob, "bob"); !errors.Is(err, lockable.ErrLockConflict) {
		t.Errorf("releaseFor by bob: expected conflict, got %v", err)
	}
	if err := lm.Acquire(&bob, "", false); !errors.Is(err, lockable.ErrInvalidPrincipal) {
		t.Errorf("acquire with empty principal: expected %v, got %v", lockable.ErrInvalidPrincipal, err)
	}

	info, err := lm.Inspect(&bob, "bob")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Status != lockable.StatusHard || !info.Applies || info.SecondsRemaining != 600 {
		t.Errorf("inspect: unexpected info %+v", info)
	}

	locked, err := lm.Locked()
	if err != nil || len(locked) != 1 {
		t.Errorf("locked: expected 1 record, got %d (%v)", len(locked), err)
	}
	lt.advance(10 * time.Minute)
	unlocked, err := lm.Unlocked()
	if err != nil || len(unlocked) != 1 {
		t.Errorf("unlocked after expiration: expected 1 record, got %d (%v)", len(unlocked), err)
	}

	missing := record.Record{ID: "missing"}
	if err := lm.Release(&missing); !store.IsNotFound(err) {
		t.Errorf("release of missing record: expected NotFound, got %v", err)
	}
	if err := lm.Acquire(nil, "alice", false); err == nil {
		t.Errorf("expected an error for a nil handle")
	}
}

func TestRPCLockMgrEditSession(t *testing.T) {
	lt, st, lm := newClients(t, serializer.NewBinarySerializer())
	if err := st.Create(record.New("r", map[string]string{"title": "old"}, t0)); err != nil {
		t.Fatal(err)
	}
	rec, _, _ := st.Get("r")

	token, err := lockable.BeginEdit(lm, &rec, "alice")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	lt.advance(time.Minute)
	if err := lockable.CommitEdit(lm, &rec, "alice", token, map[string]string{"title": "new"}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, _, _ := st.Get("r")
	if stored.Fields["title"] != "new" || stored.Lock.IsSet() {
		t.Errorf("after commit: unexpected record %v", stored)
	}
}

func TestTransportAndServerErrors(t *testing.T) {
	lt, st, _ := newClients(t, serializer.NewBinarySerializer())

	lt.failNext = errors.New("connection refused")
	if _, _, err := st.Get("a"); err == nil || err.Error() != "connection refused" {
		t.Errorf("expected the transport error, got %v", err)
	}

	// the server answers with an error message for unsupported requests
	resp, err := invokeRPCRequest(1, &common.Message{MsgType: common.MsgTCustom}, lt, lt.serializer)
	if err == nil || resp != nil {
		t.Errorf("expected an error without response, got %v %v", resp, err)
	}
	var remote *common.RemoteError
	if !errors.As(err, &remote) || remote.Code != common.ErrCInternal {
		t.Errorf("expected an internal remote error, got %T %v", err, err)
	}
}
