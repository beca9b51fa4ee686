package core

// Mempool holds pending messages not yet in any confirmed block, and
// orphan/side-chain blocks still within the undo window (§3).
type Mempool struct {
	Blocks   []*Block
	Messages []*Message
}

// NewMempool returns an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{}
}

// HasMessage reports whether a message with the same hash is already
// pending.
func (mp *Mempool) HasMessage(hash string) bool {
	for _, m := range mp.Messages {
		if m.Hash == hash {
			return true
		}
	}
	return false
}

// AddMessage appends msg to the pending set. Callers must have already
// validated msg and checked MessagesPerBlockMax / duplication.
func (mp *Mempool) AddMessage(msg *Message) {
	mp.Messages = append(mp.Messages, msg)
}

// EvictMessagesIn removes every pending message whose signature
// matches one of the confirmed block's messages (signature-equality,
// per §4.4's main-chain commit step), since byte-identical signatures
// are the cheapest stable identity across re-encodings. Null-key
// messages carry an empty signature placeholder, so they are matched by
// hash instead.
func (mp *Mempool) EvictMessagesIn(confirmed []*Message) {
	if len(mp.Messages) == 0 || len(confirmed) == 0 {
		return
	}
	identity := func(m *Message) string {
		if len(m.Signature) == 0 {
			return "hash:" + m.Hash
		}
		return "sig:" + string(m.Signature)
	}
	sigs := make(map[string]struct{}, len(confirmed))
	for _, m := range confirmed {
		sigs[identity(m)] = struct{}{}
	}
	kept := mp.Messages[:0:0]
	for _, m := range mp.Messages {
		if _, evict := sigs[identity(m)]; !evict {
			kept = append(kept, m)
		}
	}
	mp.Messages = kept
}

// EvictBlock removes a block from the pending side-chain/orphan set by
// hash, if present.
func (mp *Mempool) EvictBlock(hash string) {
	for i, b := range mp.Blocks {
		if b.Hash == hash {
			mp.Blocks = append(mp.Blocks[:i], mp.Blocks[i+1:]...)
			return
		}
	}
}

// BlockByHash looks up a pending block by hash.
func (mp *Mempool) BlockByHash(hash string) *Block {
	for _, b := range mp.Blocks {
		if b.Hash == hash {
			return b
		}
	}
	return nil
}
