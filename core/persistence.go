package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ChainSnapshot is the state a save enqueues: the in-memory undo
// window, the in-memory confirmed-blocks buffer, and the peer URL
// list. Persistence mirrors exactly these in-memory windows to disk
// (§4.7): files outside the kept set are removed on every save.
type ChainSnapshot struct {
	Dbs    []*Db
	Blocks []*Block
	Peers  []string
}

func (cm *ChainManager) snapshotForSaveLocked() ChainSnapshot {
	dbs := make([]*Db, len(cm.dbs))
	copy(dbs, cm.dbs)
	blocks := make([]*Block, len(cm.blocks))
	copy(blocks, cm.blocks)
	peers := make([]string, 0, len(cm.peers))
	for u := range cm.peers {
		peers = append(peers, u)
	}
	return ChainSnapshot{Dbs: dbs, Blocks: blocks, Peers: peers}
}

// Persistence is a single-writer, at-most-one-in-flight save task
// (§5, §4.7): a save in flight when a new one arrives is coalesced —
// marked queued and re-run once the in-flight save completes.
type Persistence struct {
	dataDir string

	mu     sync.Mutex
	saving bool
	queued *ChainSnapshot
	done   chan struct{} // closed and replaced on every completed save, for callers that must wait (graceful shutdown)
}

// NewPersistence prepares the on-disk layout under dataDir: db/ and
// blocks/ subdirectories.
func NewPersistence(dataDir string) (*Persistence, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "db"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "blocks"), 0o755); err != nil {
		return nil, err
	}
	return &Persistence{dataDir: dataDir, done: closedChan()}, nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (p *Persistence) blockPath(h uint64) string {
	return filepath.Join(p.dataDir, "blocks", "block-"+strconv.FormatUint(h, 10)+".json")
}

func (p *Persistence) dbPath(h uint64) string {
	return filepath.Join(p.dataDir, "db", "db-"+strconv.FormatUint(h, 10)+".json")
}

func (p *Persistence) peersPath() string {
	return filepath.Join(p.dataDir, "peers.txt")
}

// writeAtomic writes data to path by first writing to a temp file in
// the same directory, then renaming it into place (§4.7's atomicity
// contract).
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// EnqueueSave schedules snap to be written. If a save is already in
// flight, snap replaces any previously queued snapshot and is written
// once the in-flight save finishes.
func (p *Persistence) EnqueueSave(snap ChainSnapshot) {
	p.mu.Lock()
	if p.saving {
		p.queued = &snap
		p.mu.Unlock()
		return
	}
	p.saving = true
	p.done = make(chan struct{})
	p.mu.Unlock()
	go p.runSave(snap)
}

func (p *Persistence) runSave(snap ChainSnapshot) {
	if err := p.doSave(snap); err != nil {
		log.Warnf("persistence: save failed: %v", err)
	}
	p.mu.Lock()
	next := p.queued
	p.queued = nil
	if next == nil {
		p.saving = false
		close(p.done)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.runSave(*next)
}

// WaitIdle blocks until no save is in flight or queued. Used during
// graceful shutdown (§5).
func (p *Persistence) WaitIdle() {
	p.mu.Lock()
	ch := p.done
	p.mu.Unlock()
	<-ch
}

func (p *Persistence) doSave(snap ChainSnapshot) error {
	if len(snap.Blocks) > 0 {
		for _, b := range snap.Blocks {
			raw, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if err := writeAtomic(p.blockPath(b.Height), raw); err != nil {
				return err
			}
		}
		p.pruneBlocks(snap.Blocks[0].Height, snap.Blocks[len(snap.Blocks)-1].Height)

		startIdx := len(snap.Blocks) - len(snap.Dbs)
		if startIdx < 0 {
			startIdx = 0
		}
		for i, db := range snap.Dbs {
			h := snap.Blocks[startIdx+i].Height
			raw, err := json.Marshal(db)
			if err != nil {
				return err
			}
			if err := writeAtomic(p.dbPath(h), raw); err != nil {
				return err
			}
		}
		if len(snap.Dbs) > 0 {
			p.pruneDbs(snap.Blocks[startIdx].Height, snap.Blocks[len(snap.Blocks)-1].Height)
		}
	}
	return p.writePeers(snap.Peers)
}

func (p *Persistence) writePeers(peers []string) error {
	return writeAtomic(p.peersPath(), []byte(strings.Join(peers, "\n")))
}

func (p *Persistence) pruneBlocks(lo, hi uint64) {
	p.pruneDir(filepath.Join(p.dataDir, "blocks"), "block-", lo, hi)
}

func (p *Persistence) pruneDbs(lo, hi uint64) {
	p.pruneDir(filepath.Join(p.dataDir, "db"), "db-", lo, hi)
}

func (p *Persistence) pruneDir(dir, prefix string, lo, hi uint64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		h, ok := parseHeightFilename(e.Name(), prefix)
		if !ok {
			continue
		}
		if h < lo || h > hi {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

func parseHeightFilename(name, prefix string) (uint64, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	numPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
	h, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// LoadBlock reads a single confirmed block from disk, used by the
// /blocks/:height endpoint when it falls outside the in-memory buffer.
func (p *Persistence) LoadBlock(height uint64) (*Block, error) {
	raw, err := os.ReadFile(p.blockPath(height))
	if err != nil {
		return nil, errNotFound("block %d not found", height)
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Recover implements the crash-recovery scan of §4.7: it finds the
// largest contiguous run of block-{h}.json files starting at 1,
// chooses bestHeight=H, loads up to UndoHeight consecutive db-{h}.json
// snapshots ending at H (contiguous from the top), and loads blocks
// [max(H-ChargeSettleBlocks,1), H]. If no contiguous run starts at 1,
// it returns empty state.
func (p *Persistence) Recover() (dbs []*Db, blocks []*Block, peers []string, err error) {
	bestHeight, err := p.findContiguousTip()
	if err != nil {
		return nil, nil, nil, err
	}
	peers = p.loadPeers()
	if bestHeight == 0 {
		return nil, nil, peers, nil
	}

	lowBlock := uint64(1)
	if bestHeight > ChargeSettleBlocks {
		lowBlock = bestHeight - ChargeSettleBlocks
	}
	for h := lowBlock; h <= bestHeight; h++ {
		b, err := p.LoadBlock(h)
		if err != nil {
			return nil, nil, nil, err
		}
		blocks = append(blocks, b)
	}

	for h := bestHeight; h >= 1 && uint64(len(dbs)) < UndoHeight; h-- {
		raw, err := os.ReadFile(p.dbPath(h))
		if err != nil {
			break
		}
		var db Db
		if err := json.Unmarshal(raw, &db); err != nil {
			return nil, nil, nil, err
		}
		dbs = append([]*Db{&db}, dbs...)
	}
	return dbs, blocks, peers, nil
}

func (p *Persistence) findContiguousTip() (uint64, error) {
	dir := filepath.Join(p.dataDir, "blocks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil
	}
	var heights []uint64
	for _, e := range entries {
		if h, ok := parseHeightFilename(e.Name(), "block-"); ok {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	var best uint64
	expected := uint64(1)
	for _, h := range heights {
		if h != expected {
			break
		}
		best = h
		expected++
	}
	return best, nil
}

func (p *Persistence) loadPeers() []string {
	raw, err := os.ReadFile(p.peersPath())
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
