package core

import "testing"

func TestValidateMessageRejectsReplay(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(10)
	addr := addrFor(t, scheme, priv)
	msg := coinbaseMsg(t, scheme, 1, 1000, addr)

	db := NewDb()
	db.PushMessageHashes(map[string]struct{}{msg.Hash: {}})

	err := ValidateMessage(scheme, db, 0, false, nil, msg, nil)
	if err == nil || !IsSoft(err) {
		t.Fatalf("expected a soft replay rejection, got %v", err)
	}
}

func TestValidateMessageRejectsExpiredTTL(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(11)
	addr := addrFor(t, scheme, priv)
	msg := coinbaseMsg(t, scheme, 1, 1000, addr)

	db := NewDb()
	// tailHeight = MessageTTL makes nextHeight = startHeight + MessageTTL,
	// the first height past the window.
	err := ValidateMessage(scheme, db, MessageTTL, true, nil, msg, nil)
	if err == nil {
		t.Fatalf("expected ttl expiry rejection")
	}
}

func TestValidateMessageRejectsBadSignature(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(12)
	addr := addrFor(t, scheme, priv)
	msg := mustSign(t, scheme, priv, Payload{
		Type: MsgSend, StartHeight: 1, Timestamp: 1000, PublicKey: priv,
		Asset: CRD, Quantity: 1, SrcAddress: addr, DstAddress: addr,
	})
	msg.Signature[0] ^= 0xFF

	db := NewDb()
	if err := ValidateMessage(scheme, db, 0, false, nil, msg, nil); err == nil {
		t.Fatalf("expected signature verification failure")
	}
}

func TestValidateSendInsufficientFunds(t *testing.T) {
	scheme := DefaultScheme
	privA := seedFor(13)
	addrA := addrFor(t, scheme, privA)
	addrB := addrFor(t, scheme, seedFor(14))

	msg := mustSign(t, scheme, privA, Payload{
		Type: MsgSend, StartHeight: 1, Timestamp: 1000, PublicKey: privA,
		Asset: CRD, Quantity: 50, SrcAddress: addrA, DstAddress: addrB,
	})

	db := NewDb()
	err := ValidateMessage(scheme, db, 0, false, nil, msg, nil)
	if le, ok := err.(*LedgerError); !ok || le.Status != 402 {
		t.Fatalf("expected an insufficient-funds error, got %v", err)
	}
}

func TestValidateSendSucceedsAgainstSiblingCoinbase(t *testing.T) {
	scheme := DefaultScheme
	privA := seedFor(15)
	addrA := addrFor(t, scheme, privA)
	addrB := addrFor(t, scheme, seedFor(16))

	cb := coinbaseMsg(t, scheme, 1, 1000, addrA)
	send := mustSign(t, scheme, privA, Payload{
		Type: MsgSend, StartHeight: 1, Timestamp: 1000, PublicKey: privA,
		Asset: CRD, Quantity: 10, SrcAddress: addrA, DstAddress: addrB,
	})

	db := NewDb()
	if err := ValidateMessage(scheme, db, 0, false, nil, send, []*Message{cb}); err != nil {
		t.Fatalf("send against a sibling coinbase should validate: %v", err)
	}
}

func TestValidateMinterClaimRejectsCRD(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(17)
	addr := addrFor(t, scheme, priv)
	msg := mustSign(t, scheme, priv, Payload{
		Type: MsgMinter, StartHeight: 1, Timestamp: 1000, PublicKey: priv, Asset: CRD,
	})
	_ = addr
	if err := ValidateMessage(scheme, NewDb(), 0, false, nil, msg, nil); err == nil {
		t.Fatalf("CRD's minter must be permanently unassignable")
	}
}

func TestValidateMinterClaimThenSecondClaimRejected(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(18)
	claim := mustSign(t, scheme, priv, Payload{
		Type: MsgMinter, StartHeight: 1, Timestamp: 1000, PublicKey: priv, Asset: "GOLD",
	})

	db := NewDb()
	if err := ValidateMessage(scheme, db, 0, false, nil, claim, nil); err != nil {
		t.Fatalf("first minter claim should validate: %v", err)
	}

	otherPriv := seedFor(19)
	secondClaim := mustSign(t, scheme, otherPriv, Payload{
		Type: MsgMinter, StartHeight: 1, Timestamp: 1000, PublicKey: otherPriv, Asset: "GOLD",
	})
	if err := ValidateMessage(scheme, db, 0, false, nil, secondClaim, []*Message{claim}); err == nil {
		t.Fatalf("a second minter claim against the same asset must be rejected")
	}
}

func TestValidateBuyRequiresAdvertisedPrice(t *testing.T) {
	scheme := DefaultScheme
	minterPriv := seedFor(20)
	minterAddr := addrFor(t, scheme, minterPriv)
	buyerPriv := seedFor(21)
	buyerAddr := addrFor(t, scheme, buyerPriv)

	claim := mustSign(t, scheme, minterPriv, Payload{
		Type: MsgMinter, StartHeight: 1, Timestamp: 1000, PublicKey: minterPriv, Asset: "GOLD",
	})
	price := int64(5)
	priceMsg := mustSign(t, scheme, minterPriv, Payload{
		Type: MsgPrice, StartHeight: 1, Timestamp: 1000, PublicKey: minterPriv, Asset: "GOLD", Price: &price,
	})
	fund := coinbaseMsg(t, scheme, 1, 1000, buyerAddr)

	wrongPrice := int64(6)
	buy := mustSign(t, scheme, buyerPriv, Payload{
		Type: MsgBuy, StartHeight: 1, Timestamp: 1000, PublicKey: buyerPriv, Asset: "GOLD",
		Quantity: 1, Price: &wrongPrice,
	})

	db := NewDb()
	siblings := []*Message{claim, priceMsg, fund}
	if err := ValidateMessage(scheme, db, 0, false, nil, buy, siblings); err == nil {
		t.Fatalf("buy at the wrong price must be rejected")
	}

	correctBuy := mustSign(t, scheme, buyerPriv, Payload{
		Type: MsgBuy, StartHeight: 1, Timestamp: 1000, PublicKey: buyerPriv, Asset: "GOLD",
		Quantity: 1, Price: &price,
	})
	if err := ValidateMessage(scheme, db, 0, false, nil, correctBuy, siblings); err != nil {
		t.Fatalf("buy at the advertised price should validate: %v", err)
	}
	_ = minterAddr
}
