package core

import (
	"encoding/json"
	"time"
)

// Miner runs the PoW search loop of §4.3 against a ChainManager: build
// a candidate from the current tail, hash nonces for up to
// HashWorkTime, and either submit a found block or let the caller
// refresh the candidate and retry.
type Miner struct {
	chain  *ChainManager
	scheme SignatureScheme
	now    func() int64 // injected for determinism in tests
}

// NewMiner constructs a miner bound to chain, using scheme to sign the
// coinbase message it mints each round.
func NewMiner(chain *ChainManager, scheme SignatureScheme) *Miner {
	return &Miner{chain: chain, scheme: scheme, now: func() int64 { return time.Now().UnixMilli() }}
}

// MineOnce builds one candidate block paying rewardAddr and searches
// nonces for up to HashWorkTime. It returns (block, true, nil) if a
// block was found and already submitted to the chain manager; (nil,
// false, nil) if the burst timed out without success (the caller
// should call MineOnce again to refresh the candidate against the
// possibly-updated tail); or a non-nil error if candidate construction
// failed or the chain manager rejected the found block.
func (m *Miner) MineOnce(rewardAddr Address) (*Block, bool, error) {
	candidate, err := m.buildCandidate(rewardAddr)
	if err != nil {
		return nil, false, err
	}

	root, err := candidate.RootForMining()
	if err != nil {
		return nil, false, err
	}

	deadline := time.Now().Add(HashWorkTime)
	for nonce := uint32(0); ; nonce++ {
		hash := HashFromRoot(root, nonce)
		if MeetsTarget(hash, candidate.Difficulty) {
			candidate.Nonce = nonce
			candidate.Hash = hash
			if err := m.chain.SubmitBlock(candidate); err != nil {
				return nil, false, err
			}
			m.chain.mu.Lock()
			m.chain.markMined()
			m.chain.mu.Unlock()
			return candidate, true, nil
		}
		if nonce == ^uint32(0) || time.Now().After(deadline) {
			return nil, false, nil
		}
	}
}

func (m *Miner) buildCandidate(rewardAddr Address) (*Block, error) {
	m.chain.mu.Lock()
	tail := m.chain.tailBlockLocked()
	window := m.chain.windowLocked(TargetBlocks)
	_, pending := m.chain.MempoolSnapshotLocked()
	m.chain.mu.Unlock()

	height := uint64(1)
	prevHash := ZeroHash
	if tail != nil {
		height = tail.Height + 1
		prevHash = tail.Hash
	}

	coinbasePayload := Payload{
		Type:        MsgCoinbase,
		StartHeight: height,
		Timestamp:   m.now(),
		PublicKey:   NullKey,
		Asset:       CRD,
		Quantity:    CoinbaseQuantity,
		Address:     rewardAddr,
	}
	raw, err := json.Marshal(coinbasePayload)
	if err != nil {
		return nil, err
	}
	hash := HashPayload(raw)
	sigBytes, err := hexDecodeHash(hash)
	if err != nil {
		return nil, err
	}
	sig, err := m.scheme.Sign(NullKey, sigBytes)
	if err != nil {
		return nil, err
	}
	coinbase := &Message{Payload: raw, Hash: hash, Signature: sig}

	messages := []*Message{coinbase}
	if room := MessagesPerBlockMax - 1; room > 0 {
		if len(pending) > room {
			pending = pending[:room]
		}
		messages = append(messages, pending...)
	}

	base := BaseDifficulty(window)
	if base < MinDifficulty {
		base = MinDifficulty
	}
	difficulty := RequiredDifficulty(base, messages)

	return &Block{
		PrevHash:   prevHash,
		Height:     height,
		Difficulty: difficulty,
		Version:    BlockVersion,
		Timestamp:  m.now(),
		Messages:   messages,
	}, nil
}
