package core

// Db is the chain state machine's confirmed state: balances, minter
// assignments, advertised prices, and the sliding window of message
// hashes used for replay rejection. All maps are pruned so that a
// zero balance or empty sub-map never lingers (invariant 4 in §3).
type Db struct {
	Balances map[Address]map[string]int64
	// Minters maps a base asset to its current minter. A missing key
	// means unclaimed and claimable. A present key with a nil pointer
	// means permanently unassignable — the only such entry is CRD.
	Minters map[string]*Address
	// Prices maps a base asset to its advertised price. A missing key
	// or a nil pointer means the price is +Infinity (unbuyable). CRD
	// is always nil/+Infinity and immutable.
	Prices map[string]*int64
	// MessageHashes holds up to MessageTTL sets, oldest first, one per
	// recently confirmed block.
	MessageHashes []map[string]struct{}
}

// NewDb returns the genesis state: CRD has no minter and infinite
// price, both permanently.
func NewDb() *Db {
	return &Db{
		Balances:      make(map[Address]map[string]int64),
		Minters:       map[string]*Address{CRD: nil},
		Prices:        map[string]*int64{CRD: nil},
		MessageHashes: nil,
	}
}

// Clone deep-copies the state so it can be pushed onto the undo stack
// and mutated independently of prior snapshots. Per §9's design note, a
// production implementation would prefer structural sharing; this
// mirrors the teacher's straightforward whole-state copy style used
// throughout core/ledger.go, since observable undo/reorg behavior is
// unaffected either way.
func (db *Db) Clone() *Db {
	out := &Db{
		Balances: make(map[Address]map[string]int64, len(db.Balances)),
		Minters:  make(map[string]*Address, len(db.Minters)),
		Prices:   make(map[string]*int64, len(db.Prices)),
	}
	for addr, assets := range db.Balances {
		m := make(map[string]int64, len(assets))
		for a, q := range assets {
			m[a] = q
		}
		out.Balances[addr] = m
	}
	for asset, addr := range db.Minters {
		if addr == nil {
			out.Minters[asset] = nil
			continue
		}
		cp := *addr
		out.Minters[asset] = &cp
	}
	for asset, price := range db.Prices {
		if price == nil {
			out.Prices[asset] = nil
			continue
		}
		cp := *price
		out.Prices[asset] = &cp
	}
	out.MessageHashes = make([]map[string]struct{}, len(db.MessageHashes))
	for i, set := range db.MessageHashes {
		cp := make(map[string]struct{}, len(set))
		for h := range set {
			cp[h] = struct{}{}
		}
		out.MessageHashes[i] = cp
	}
	return out
}

// Balance returns the confirmed balance of asset for addr, 0 if absent.
func (db *Db) Balance(addr Address, asset string) int64 {
	assets, ok := db.Balances[addr]
	if !ok {
		return 0
	}
	return assets[asset]
}

// AddBalance adjusts addr's asset balance by delta (may be negative),
// pruning zero entries and empty address sub-maps. It does not check
// for a negative result; callers must check sufficiency beforehand.
func (db *Db) AddBalance(addr Address, asset string, delta int64) {
	assets, ok := db.Balances[addr]
	if !ok {
		if delta == 0 {
			return
		}
		assets = make(map[string]int64)
		db.Balances[addr] = assets
	}
	assets[asset] += delta
	if assets[asset] == 0 {
		delete(assets, asset)
	}
	if len(assets) == 0 {
		delete(db.Balances, addr)
	}
}

// Minter returns the current minter of baseAsset and whether it is
// claimed at all (claimed=false means unclaimed/claimable).
func (db *Db) Minter(baseAsset string) (addr *Address, claimed bool) {
	v, ok := db.Minters[baseAsset]
	return v, ok
}

// Price returns the advertised price of baseAsset, or nil for
// +Infinity.
func (db *Db) Price(baseAsset string) *int64 {
	return db.Prices[baseAsset]
}

// HasMessageHash reports whether hash appears in any of the retained
// MessageTTL confirmed-block hash sets (replay protection).
func (db *Db) HasMessageHash(hash string) bool {
	for _, set := range db.MessageHashes {
		if _, ok := set[hash]; ok {
			return true
		}
	}
	return false
}

// PushMessageHashes appends a new block's message-hash set, trimming
// to the last MessageTTL layers.
func (db *Db) PushMessageHashes(hashes map[string]struct{}) {
	db.MessageHashes = append(db.MessageHashes, hashes)
	if len(db.MessageHashes) > MessageTTL {
		db.MessageHashes = db.MessageHashes[len(db.MessageHashes)-MessageTTL:]
	}
}
