package core

// ValidateMessage gates a message against the current confirmed state,
// any already-accepted siblings in the block being assembled or
// validated, and (optionally) the mempool. Passing mempool=nil gives a
// confirmed view; passing it folds in pending messages (§4.1).
//
// Validation is pure: it never mutates db, siblings, or mempool.
func ValidateMessage(scheme SignatureScheme, db *Db, tailHeight uint64, hasTail bool, mempool *Mempool, msg *Message, confirmingSiblings []*Message) error {
	payload, err := msg.Decode()
	if err != nil {
		return err
	}

	if HashPayload(msg.Payload) != msg.Hash {
		return errInvalid("message: hash does not match payload")
	}
	if db.HasMessageHash(msg.Hash) {
		return errInvalidSoft("message: hash already confirmed (replay)")
	}

	var nextHeight uint64 = 1
	if hasTail {
		nextHeight = tailHeight + 1
	}
	if nextHeight < payload.StartHeight || nextHeight >= payload.StartHeight+MessageTTL {
		return errInvalid("message: ttl expired")
	}

	sigHash, err := hexDecodeHash(msg.Hash)
	if err != nil {
		return errInvalid("message: malformed hash: %v", err)
	}
	if !scheme.Verify(payload.PublicKey, sigHash, msg.Signature) {
		return errInvalid("message: signature verification failed")
	}

	view, err := projectedView(db, scheme, confirmingSiblings)
	if err != nil {
		return err
	}
	if mempool != nil {
		view2, err := projectedView(view, scheme, mempool.Messages)
		if err != nil {
			return err
		}
		view = view2
	}

	signerAddr := scheme.DeriveAddress(payload.PublicKey)

	switch payload.Type {
	case MsgCoinbase:
		return validateCoinbase(payload, confirmingSiblings)
	case MsgSend:
		return validateSend(payload, view, signerAddr)
	case MsgMinter:
		return validateMinterClaim(payload, view)
	case MsgMint:
		return validateMint(payload, view, signerAddr)
	case MsgGet:
		return validateGet(payload, view)
	case MsgBurn:
		return validateBurn(payload, view, signerAddr)
	case MsgDrop:
		return validateDrop(payload, view)
	case MsgPrice:
		return validatePrice(payload, view, signerAddr)
	case MsgBuy:
		return validateBuy(payload, view, signerAddr)
	default:
		return errInvalid("message: unknown type %q", payload.Type)
	}
}

func validateCoinbase(p *Payload, siblings []*Message) error {
	if !IsNullKey(p.PublicKey) {
		return errInvalid("coinbase: must be signed by the null key")
	}
	if p.Asset != CRD {
		return errInvalid("coinbase: asset must be %s", CRD)
	}
	if p.Quantity != CoinbaseQuantity {
		return errInvalid("coinbase: quantity must be %d", CoinbaseQuantity)
	}
	for _, m := range siblings {
		sp, err := m.Decode()
		if err == nil && sp.Type == MsgCoinbase {
			return errInvalid("coinbase: at most one coinbase per block")
		}
	}
	return nil
}

func validateSend(p *Payload, view *Db, signerAddr Address) error {
	if signerAddr != p.SrcAddress {
		return errInvalid("send: signer does not own srcAddress")
	}
	if !IsBasicAsset(p.Asset) && !IsMintAsset(p.Asset) {
		return errInvalid("send: invalid asset %q", p.Asset)
	}
	if p.Quantity <= 0 {
		return errInvalid("send: quantity must be positive")
	}
	if IsMintAsset(p.Asset) && p.Quantity != 1 {
		return errInvalid("send: mint-asset quantity must be exactly 1")
	}
	if view.Balance(p.SrcAddress, p.Asset) < p.Quantity {
		return errInsufficientFunds("send: insufficient funds")
	}
	return nil
}

func validateMinterClaim(p *Payload, view *Db) error {
	if !IsBaseAsset(p.Asset) {
		return errInvalid("minter: asset must be a base asset")
	}
	if p.Asset == CRD {
		return errInvalid("minter: %s's minter is permanently unassignable", CRD)
	}
	if _, claimed := view.Minter(p.Asset); claimed {
		return errInvalid("minter: %s already has a minter", p.Asset)
	}
	return nil
}

func validateMint(p *Payload, view *Db, signerAddr Address) error {
	if !IsBasicAsset(p.Asset) {
		return errInvalid("mint: invalid asset %q", p.Asset)
	}
	if p.Quantity <= 0 {
		return errInvalid("mint: quantity must be positive")
	}
	return checkFreeMintOrSigningMinter(p.Asset, view, signerAddr)
}

func validateGet(p *Payload, view *Db) error {
	if !IsNullKey(p.PublicKey) {
		return errInvalid("get: must be signed by the null key")
	}
	if !IsBasicAsset(p.Asset) {
		return errInvalid("get: invalid asset %q", p.Asset)
	}
	if p.Quantity <= 0 {
		return errInvalid("get: quantity must be positive")
	}
	return checkFreeMintOrSigningMinter(p.Asset, view, p.Address)
}

func validateBurn(p *Payload, view *Db, signerAddr Address) error {
	if !IsBasicAsset(p.Asset) {
		return errInvalid("burn: invalid asset %q", p.Asset)
	}
	if p.Quantity <= 0 {
		return errInvalid("burn: quantity must be positive")
	}
	if err := checkFreeMintOrSigningMinter(p.Asset, view, signerAddr); err != nil {
		return err
	}
	if view.Balance(signerAddr, p.Asset) < p.Quantity {
		return errInsufficientFunds("burn: insufficient funds")
	}
	return nil
}

func validateDrop(p *Payload, view *Db) error {
	if !IsNullKey(p.PublicKey) {
		return errInvalid("drop: must be signed by the null key")
	}
	if !IsBasicAsset(p.Asset) {
		return errInvalid("drop: invalid asset %q", p.Asset)
	}
	if p.Quantity <= 0 {
		return errInvalid("drop: quantity must be positive")
	}
	if err := checkFreeMintOrSigningMinter(p.Asset, view, p.Address); err != nil {
		return err
	}
	if view.Balance(p.Address, p.Asset) < p.Quantity {
		return errInsufficientFunds("drop: insufficient funds")
	}
	return nil
}

func validatePrice(p *Payload, view *Db, signerAddr Address) error {
	if !IsBaseAsset(p.Asset) {
		return errInvalid("price: asset must be a base asset")
	}
	minter, claimed := view.Minter(p.Asset)
	if !claimed || minter == nil || *minter != signerAddr {
		return errInvalid("price: signer is not the current minter")
	}
	if p.Price == nil || *p.Price < 0 {
		return errInvalid("price: price must be a non-negative finite integer")
	}
	return nil
}

func validateBuy(p *Payload, view *Db, signerAddr Address) error {
	if !IsBaseAsset(p.Asset) {
		return errInvalid("buy: asset must be a base asset")
	}
	if p.Quantity <= 0 {
		return errInvalid("buy: quantity must be positive")
	}
	if p.Price == nil || *p.Price <= 0 {
		return errInvalid("buy: price must be a finite positive integer")
	}
	_, claimed := view.Minter(p.Asset)
	if !claimed {
		return errInvalid("buy: asset has no minter")
	}
	advertised := view.Price(p.Asset)
	if advertised == nil || *advertised != *p.Price {
		return errInvalid("buy: price is not currently advertised")
	}
	cost := p.Quantity * *p.Price
	if view.Balance(signerAddr, CRD) < cost {
		return errInsufficientFunds("buy: insufficient funds")
	}
	return nil
}

// checkFreeMintOrSigningMinter implements the shared "permitted iff
// signer is the current minter of the base asset or the base asset's
// price is 0" gate used by mint/get/burn/drop.
func checkFreeMintOrSigningMinter(asset string, view *Db, candidate Address) error {
	base := BaseOfBasic(asset)
	if price := view.Price(base); price != nil && *price == 0 {
		return nil
	}
	minter, claimed := view.Minter(base)
	if claimed && minter != nil && *minter == candidate {
		return nil
	}
	return errInvalid("%s: not permitted: signer is not the minter and asset is not free-mint", asset)
}

// projectedView clones db and replays msgs over it in order, without
// re-validating them (callers are responsible for only passing
// already-accepted messages), per the transient-view design note (§9).
func projectedView(db *Db, scheme SignatureScheme, msgs []*Message) (*Db, error) {
	view := db.Clone()
	for _, m := range msgs {
		p, err := m.Decode()
		if err != nil {
			return nil, err
		}
		signerAddr := scheme.DeriveAddress(p.PublicKey)
		applyMessage(view, p, signerAddr)
	}
	return view, nil
}
