package core

import "testing"

func TestComputeHashChangesWithNonce(t *testing.T) {
	b := &Block{PrevHash: ZeroHash, Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000}
	h1, err := b.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	b.Nonce = 1
	h2, err := b.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("changing nonce must change the hash")
	}
}

func TestRootForMiningMatchesComputeHash(t *testing.T) {
	b := &Block{PrevHash: ZeroHash, Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000, Nonce: 7}
	want, err := b.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	root, err := b.RootForMining()
	if err != nil {
		t.Fatalf("RootForMining: %v", err)
	}
	if got := HashFromRoot(root, b.Nonce); got != want {
		t.Fatalf("HashFromRoot(root, nonce) must match ComputeHash: got %s want %s", got, want)
	}
}

func mineBlock(t *testing.T, b *Block) *Block {
	t.Helper()
	root, err := b.RootForMining()
	if err != nil {
		t.Fatalf("RootForMining: %v", err)
	}
	for nonce := uint32(0); ; nonce++ {
		hash := HashFromRoot(root, nonce)
		if MeetsTarget(hash, b.Difficulty) {
			b.Nonce = nonce
			b.Hash = hash
			return b
		}
	}
}

func TestValidateBlockRejectsBadPrevHash(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(1)
	addr := addrFor(t, scheme, priv)
	b := &Block{PrevHash: "not-zero", Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000,
		Messages: []*Message{coinbaseMsg(t, scheme, 1, 1000, addr)}}
	mineBlock(t, b)

	err := ValidateBlock(scheme, NewDb(), nil, nil, b)
	if err == nil || !IsSoft(err) {
		t.Fatalf("expected a soft prevHash mismatch error, got %v", err)
	}
}

func TestValidateBlockRejectsBadHeight(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(2)
	addr := addrFor(t, scheme, priv)
	b := &Block{PrevHash: ZeroHash, Height: 5, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000,
		Messages: []*Message{coinbaseMsg(t, scheme, 1, 1000, addr)}}
	mineBlock(t, b)

	if err := ValidateBlock(scheme, NewDb(), nil, nil, b); err == nil {
		t.Fatalf("expected height mismatch error")
	}
}

func TestValidateBlockAcceptsWellFormedGenesis(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(3)
	addr := addrFor(t, scheme, priv)
	b := &Block{PrevHash: ZeroHash, Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1000,
		Messages: []*Message{coinbaseMsg(t, scheme, 1, 1000, addr)}}
	mineBlock(t, b)

	if err := ValidateBlock(scheme, NewDb(), nil, nil, b); err != nil {
		t.Fatalf("expected a well-formed genesis block to validate, got %v", err)
	}
}

func TestValidateBlockRejectsStaleTimestamp(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(4)
	addr := addrFor(t, scheme, priv)
	parent := &Block{PrevHash: ZeroHash, Height: 1, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 5000,
		Messages: []*Message{coinbaseMsg(t, scheme, 1, 5000, addr)}}
	mineBlock(t, parent)

	window := []*Block{parent}
	child := &Block{PrevHash: parent.Hash, Height: 2, Difficulty: MinDifficulty, Version: BlockVersion, Timestamp: 1,
		Messages: []*Message{coinbaseMsg(t, scheme, 2, 1, addr)}}
	mineBlock(t, child)

	err := ValidateBlock(scheme, NewDb(), parent, window, child)
	if err == nil {
		t.Fatalf("expected timestamp-below-median rejection")
	}
}
