package core

import "testing"

func TestPersistenceSaveAndRecoverRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}

	scheme := DefaultScheme
	addr := addrFor(t, scheme, seedFor(60))
	genesis := &Block{PrevHash: ZeroHash, Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000,
		Messages: []*Message{coinbaseMsg(t, scheme, 1, 1000, addr)}}
	mineBlock(t, genesis)

	db := NewDb()
	if err := ApplyBlockMessages(db, genesis.Messages, scheme); err != nil {
		t.Fatalf("ApplyBlockMessages: %v", err)
	}

	snap := ChainSnapshot{Dbs: []*Db{db}, Blocks: []*Block{genesis}, Peers: []string{"http://peer-a"}}
	p.EnqueueSave(snap)
	p.WaitIdle()

	dbs, blocks, peers, err := p.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Hash != genesis.Hash {
		t.Fatalf("expected to recover the genesis block, got %+v", blocks)
	}
	if len(dbs) != 1 {
		t.Fatalf("expected to recover one db snapshot, got %d", len(dbs))
	}
	if len(peers) != 1 || peers[0] != "http://peer-a" {
		t.Fatalf("expected to recover the peer list, got %v", peers)
	}
}

func TestPersistenceRecoverEmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	dbs, blocks, peers, err := p.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(dbs) != 0 || len(blocks) != 0 || len(peers) != 0 {
		t.Fatalf("expected empty recovery from an empty data directory")
	}
}

func TestPersistencePrunesOutOfWindowBlocks(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}

	scheme := DefaultScheme
	addr := addrFor(t, scheme, seedFor(61))
	var blocks []*Block
	prevHash := ZeroHash
	for h := uint64(1); h <= 3; h++ {
		b := &Block{PrevHash: prevHash, Height: h, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: int64(h) * 1000,
			Messages: []*Message{coinbaseMsg(t, scheme, h, int64(h)*1000, addr)}}
		mineBlock(t, b)
		blocks = append(blocks, b)
		prevHash = b.Hash
	}

	// First save with all three blocks, then a second save with only the
	// last two: the first block's file must be pruned.
	p.EnqueueSave(ChainSnapshot{Blocks: blocks})
	p.WaitIdle()
	p.EnqueueSave(ChainSnapshot{Blocks: blocks[1:]})
	p.WaitIdle()

	if _, err := p.LoadBlock(1); err == nil {
		t.Fatalf("block 1 should have been pruned")
	}
	if _, err := p.LoadBlock(3); err != nil {
		t.Fatalf("block 3 should still load: %v", err)
	}
}
