package serve

import (
	"testing"

	"github.com/ValentinKolb/dRL/lib/db/util"
	"github.com/ValentinKolb/dRL/rpc/common"
)

func TestParseShards(t *testing.T) {
	shards, err := parseShards("100=lstore, 200 = dstore,300=rstore")
	if err != nil {
		t.Fatalf("parseShards: %v", err)
	}
	expected := []common.ServerShard{
		{ShardID: 100, Type: common.ShardTypeLocal},
		{ShardID: 200, Type: common.ShardTypeRaft},
		{ShardID: 300, Type: common.ShardTypeRedis},
	}
	if len(shards) != len(expected) {
		t.Fatalf("expected %d shards, got %d", len(expected), len(shards))
	}
	for i := range expected {
		if shards[i] != expected[i] {
			t.Errorf("shard %d: expected %+v, got %+v", i, expected[i], shards[i])
		}
	}

	for _, invalid := range []string{"", "100", "x=lstore", "100=lockmgr", "100=lstore,100=rstore"} {
		if _, err := parseShards(invalid); err == nil {
			t.Errorf("parseShards(%q): expected an error", invalid)
		}
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001, node-2=localhost:63002")
	if err != nil {
		t.Fatalf("parseClusterMembers: %v", err)
	}
	if got := members[util.HashString("node-2", 0)]; got != "localhost:63002" {
		t.Errorf("node-2: unexpected address %q", got)
	}
	if _, err := parseClusterMembers("node-1"); err == nil {
		t.Errorf("expected an error for a member without address")
	}
}
