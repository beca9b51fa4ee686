package core

// Genesis recovers on-disk state under dataDirectory (if any) and
// returns a ChainManager ready to accept blocks. With no prior state,
// the returned manager is pre-genesis: the node's first successfully
// mined block, at height 1 with a coinbase message, establishes
// genesis through the side-chain path (§4.4 treats height-1 blocks
// with no main chain as sideChain/genesis-family, which
// reorganizeLocked promotes to the main chain on first commit).
func Genesis(dataDirectory string, scheme SignatureScheme, bus *EventBus, selfURL string) (*ChainManager, *Persistence, error) {
	persistence, err := NewPersistence(dataDirectory)
	if err != nil {
		return nil, nil, err
	}
	cm := NewChainManager(scheme, bus, selfURL)
	dbs, blocks, peers, err := persistence.Recover()
	if err != nil {
		return nil, nil, err
	}
	cm.RestoreFrom(dbs, blocks, peers)
	cm.AttachPersistence(persistence)
	return cm, persistence, nil
}
