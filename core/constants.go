package core

import "time"

// Protocol-wide constants. Values mirror the reference node exactly;
// changing any of them changes consensus.
const (
	// CRD is the base currency asset. Its minter is permanently nil and
	// its price is permanently infinite.
	CRD = "CRD"

	// BlockVersion is stamped into every mined block header.
	BlockVersion = "0.0.1"

	// MessageTTL bounds how many consecutive confirmed blocks a message
	// may be included in, counted from its startHeight.
	MessageTTL = 10

	// UndoHeight is the number of trailing Db snapshots kept to support
	// bounded chain reorganization.
	UndoHeight = 10

	// ChargeSettleBlocks is the number of trailing confirmed blocks kept
	// fully in memory.
	ChargeSettleBlocks = 100

	// HashWorkTime bounds a single mining burst before the miner yields
	// back to the caller to refresh the candidate block.
	HashWorkTime = 20 * time.Millisecond

	// MessagesPerBlockMax bounds both a block's message count and the
	// mempool's pending message count.
	MessagesPerBlockMax = 10000

	// MinDifficulty is the floor below which retargeted or message-bonus
	// discounted difficulty may never fall.
	MinDifficulty = 1000

	// TargetBlocks is the retarget and median-timestamp sample window.
	TargetBlocks = 10

	// TargetTime is the desired wall-clock span, in milliseconds, for
	// TargetBlocks consecutive blocks.
	TargetTime = 600000 // ms

	// TargetSwayMin/TargetSwayMax clamp the retarget adjustment factor.
	TargetSwayMin = 0.5
	TargetSwayMax = 2.0

	// MinNumLivePeers is the minimum quorum of enabled peer connections
	// the replicator tries to maintain.
	MinNumLivePeers = 10

	// CoinbaseQuantity is the fixed reward paid by a coinbase message.
	CoinbaseQuantity = 100

	// PeerRetryDelay is how long the streaming subscription waits before
	// reconnecting after an error or close, while the peer stays enabled.
	PeerRetryDelay = 1 * time.Second

	// PeerPullInterval is the cadence of the periodic pull synchronizer.
	PeerPullInterval = 30 * time.Second

	// ZeroHash is the conventional prevHash of a genesis block.
	ZeroHash = "0"
)
