package core

import "testing"

func TestMempoolEvictMessagesInBySignature(t *testing.T) {
	mp := NewMempool()
	scheme := DefaultScheme
	addr := addrFor(t, scheme, seedFor(50))

	keep := coinbaseMsg(t, scheme, 1, 1000, addr)
	evict := coinbaseMsg(t, scheme, 2, 2000, addr)
	mp.AddMessage(keep)
	mp.AddMessage(evict)

	mp.EvictMessagesIn([]*Message{evict})

	if mp.HasMessage(evict.Hash) {
		t.Fatalf("evicted message should no longer be pending")
	}
	if !mp.HasMessage(keep.Hash) {
		t.Fatalf("untouched message should remain pending")
	}
}

func TestMempoolBlockEviction(t *testing.T) {
	mp := NewMempool()
	b := &Block{Hash: "abc", Height: 5}
	mp.Blocks = append(mp.Blocks, b)

	if mp.BlockByHash("abc") == nil {
		t.Fatalf("expected to find the pending block by hash")
	}
	mp.EvictBlock("abc")
	if mp.BlockByHash("abc") != nil {
		t.Fatalf("block should be gone after eviction")
	}
}

func TestMempoolHasMessage(t *testing.T) {
	mp := NewMempool()
	scheme := DefaultScheme
	addr := addrFor(t, scheme, seedFor(51))
	msg := coinbaseMsg(t, scheme, 1, 1000, addr)
	if mp.HasMessage(msg.Hash) {
		t.Fatalf("empty mempool should not have the message")
	}
	mp.AddMessage(msg)
	if !mp.HasMessage(msg.Hash) {
		t.Fatalf("mempool should have the message after AddMessage")
	}
}
