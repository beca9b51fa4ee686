package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Block is the unit of chain progress: a header plus the ordered
// messages it confirms.
type Block struct {
	Hash       string     `json:"hash"`
	PrevHash   string     `json:"prevHash"`
	Height     uint64     `json:"height"`
	Difficulty float64    `json:"difficulty"`
	Version    string     `json:"version"`
	Timestamp  int64      `json:"timestamp"`
	Messages   []*Message `json:"messages"`
	Nonce      uint32     `json:"nonce"`
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// messagesJoined renders each message's canonical wire JSON, joined by
// newlines, matching the byte-exact framing the hash is computed over.
func messagesJoined(messages []*Message) (string, error) {
	parts := make([]string, len(messages))
	for i, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return "", err
		}
		parts[i] = string(raw)
	}
	return strings.Join(parts, "\n"), nil
}

// computeRoot computes stage 1 of the canonical hash (§3): SHA256 of
// prevHash ":" u32LE(height) ":" u32LE(difficulty) ":" version ":"
// u32LE(timestamp) ":" joined-message-JSON ":". Height, difficulty,
// and timestamp are framed as 32-bit even though logically larger.
func (b *Block) computeRoot() ([]byte, error) {
	joined, err := messagesJoined(b.Messages)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(b.PrevHash)
	buf.WriteString(":")
	buf.Write(u32le(uint32(b.Height)))
	buf.WriteString(":")
	buf.Write(u32le(uint32(b.Difficulty)))
	buf.WriteString(":")
	buf.WriteString(b.Version)
	buf.WriteString(":")
	buf.Write(u32le(uint32(b.Timestamp)))
	buf.WriteString(":")
	buf.WriteString(joined)
	buf.WriteString(":")
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

// ComputeHash computes the full two-stage canonical hash (§3), hex
// encoded: SHA256(root || u32LE(nonce)).
func (b *Block) ComputeHash() (string, error) {
	root, err := b.computeRoot()
	if err != nil {
		return "", err
	}
	buf := append(append([]byte{}, root...), u32le(b.Nonce)...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// RootForMining computes only stage 1, so a miner can hash it once and
// iterate over the nonce cheaply.
func (b *Block) RootForMining() ([]byte, error) {
	return b.computeRoot()
}

// HashFromRoot computes stage 2 given a precomputed root and nonce.
func HashFromRoot(root []byte, nonce uint32) string {
	buf := append(append([]byte{}, root...), u32le(nonce)...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// ValidateBlock runs the checks of §4.2 in order, returning the first
// failure. parent is nil for a genesis block (height 1); window is the
// last TargetBlocks confirmed blocks (oldest first, not including the
// candidate) used for the median-timestamp and retarget checks.
func ValidateBlock(scheme SignatureScheme, db *Db, parent *Block, window []*Block, b *Block) error {
	gotHash, err := b.ComputeHash()
	if err != nil {
		return errInvalid("block: %v", err)
	}
	if gotHash != b.Hash {
		return errInvalid("block: recomputed hash does not match claimed hash")
	}

	expectedPrev := ZeroHash
	if parent != nil {
		expectedPrev = parent.Hash
	}
	if b.PrevHash != expectedPrev {
		return errInvalidSoft("block: prevHash does not match parent")
	}

	expectedHeight := uint64(1)
	if parent != nil {
		expectedHeight = parent.Height + 1
	}
	if b.Height != expectedHeight {
		return errInvalid("block: height must be parent height + 1")
	}

	if len(window) > 0 {
		median := MedianTimestamp(window)
		if float64(b.Timestamp) < median {
			return errInvalid("block: timestamp below median of last %d blocks", TargetBlocks)
		}
	}

	if !MeetsTarget(b.Hash, b.Difficulty) {
		return errInvalid("block: hash does not meet difficulty target")
	}

	if len(b.Messages) > MessagesPerBlockMax {
		return errInvalid("block: too many messages")
	}

	base := BaseDifficulty(window)
	if base < MinDifficulty {
		base = MinDifficulty
	}
	required := RequiredDifficulty(base, b.Messages)
	if b.Difficulty < required {
		return errInvalid("block: claimed difficulty below required minimum")
	}

	var hasTail bool
	var tailHeight uint64
	if parent != nil {
		hasTail = true
		tailHeight = parent.Height
	}
	for i, m := range b.Messages {
		if err := ValidateMessage(scheme, db, tailHeight, hasTail, nil, m, b.Messages[:i]); err != nil {
			return err
		}
	}
	return nil
}
