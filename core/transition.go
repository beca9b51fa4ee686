package core

// applyMessage performs the state projector's effect for an
// already-validated message (§4.5). It assumes msg/payload have passed
// ValidateMessage against db and that signerAddr is the address derived
// from payload.PublicKey (or, for null-key messages, irrelevant).
//
// This is the single place both block commit and transient
// sibling/mempool view projection mutate state, so the two paths can
// never diverge.
func applyMessage(db *Db, payload *Payload, signerAddr Address) {
	switch payload.Type {
	case MsgCoinbase:
		db.AddBalance(payload.Address, payload.Asset, payload.Quantity)

	case MsgSend:
		db.AddBalance(payload.SrcAddress, payload.Asset, -payload.Quantity)
		db.AddBalance(payload.DstAddress, payload.Asset, payload.Quantity)
		if base, ok := BaseAssetOfMint(payload.Asset); ok {
			dst := payload.DstAddress
			db.Minters[base] = &dst
		}

	case MsgMint:
		db.AddBalance(signerAddr, payload.Asset, payload.Quantity)

	case MsgGet:
		db.AddBalance(payload.Address, payload.Asset, payload.Quantity)

	case MsgBurn:
		db.AddBalance(signerAddr, payload.Asset, -payload.Quantity)

	case MsgDrop:
		db.AddBalance(payload.Address, payload.Asset, -payload.Quantity)

	case MsgMinter:
		mint := MintAssetOf(payload.Asset)
		db.AddBalance(signerAddr, mint, 1)
		addr := signerAddr
		db.Minters[payload.Asset] = &addr

	case MsgPrice:
		price := *payload.Price
		db.Prices[payload.Asset] = &price

	case MsgBuy:
		minterAddr, claimed := db.Minter(payload.Asset)
		if !claimed || minterAddr == nil {
			invariantViolation("buy committed against unminted asset %s", payload.Asset)
			return
		}
		total := payload.Quantity * *payload.Price
		db.AddBalance(*minterAddr, CRD, total)
		db.AddBalance(signerAddr, CRD, -total)
		db.AddBalance(signerAddr, payload.Asset, payload.Quantity)

	default:
		invariantViolation("commit of unknown message type %q", payload.Type)
	}
}

// ApplyBlockMessages runs the state projector over every message in a
// confirmed block, in order, and appends the block's message-hash set.
// Callers must have already validated every message against db.
func ApplyBlockMessages(db *Db, messages []*Message, scheme SignatureScheme) error {
	hashes := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		payload, err := msg.Decode()
		if err != nil {
			return err
		}
		signerAddr := scheme.DeriveAddress(payload.PublicKey)
		applyMessage(db, payload, signerAddr)
		hashes[msg.Hash] = struct{}{}
	}
	db.PushMessageHashes(hashes)
	return nil
}
