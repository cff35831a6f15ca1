package lstore

import (
	"testing"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple"
	"github.com/ValentinKolb/dRL/lib/store"
	storetesting "github.com/ValentinKolb/dRL/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
		return NewLocalStore(func() db.RecordDB {
			return maple.NewMapleDB(nil)
		})
	})
}
