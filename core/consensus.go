package core

import (
	"math"
	"math/big"
	"sort"
)

// maxTarget is 2^256 - 1, the PoW target ceiling.
var maxTarget = func() *big.Int {
	one := big.NewInt(1)
	t := new(big.Int).Lsh(one, 256)
	return t.Sub(t, one)
}()

// Target returns maxTarget / round(difficulty). A hash meets the target
// iff its big-endian integer value is <= Target(difficulty).
func Target(difficulty float64) *big.Int {
	d := new(big.Int).SetInt64(int64(math.Round(difficulty)))
	if d.Sign() <= 0 {
		d = big.NewInt(1)
	}
	return new(big.Int).Div(maxTarget, d)
}

// MeetsTarget reports whether hexHash's integer value is within target.
func MeetsTarget(hexHash string, difficulty float64) bool {
	h, ok := new(big.Int).SetString(hexHash, 16)
	if !ok {
		return false
	}
	return h.Cmp(Target(difficulty)) <= 0
}

// HashDifficulty returns bigint(hash) / maxTarget as a real number,
// used as the PoW "work" unit for message bonus and fork-choice work
// summation.
func HashDifficulty(hexHash string) float64 {
	h, ok := new(big.Int).SetString(hexHash, 16)
	if !ok {
		return 0
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(h), new(big.Float).SetInt(maxTarget))
	f, _ := ratio.Float64()
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BaseDifficulty retargets over every block of window; callers pass
// the last TargetBlocks confirmed blocks. A non-empty window's result
// is floored at MinDifficulty. It returns 0 if window is empty; callers
// must override with MinDifficulty at use sites, per §4.3.
func BaseDifficulty(window []*Block) float64 {
	if len(window) == 0 {
		return 0
	}
	minTs, maxTs := window[0].Timestamp, window[0].Timestamp
	var sumDiff float64
	for _, b := range window {
		if b.Timestamp < minTs {
			minTs = b.Timestamp
		}
		if b.Timestamp > maxTs {
			maxTs = b.Timestamp
		}
		sumDiff += b.Difficulty
	}
	dt := float64(maxTs - minTs)
	meanDiff := sumDiff / float64(len(window))
	f := clamp(dt/float64(TargetTime), TargetSwayMin, TargetSwayMax)
	base := meanDiff / f
	if base < MinDifficulty {
		base = MinDifficulty
	}
	return base
}

// MessageBonus sums HashDifficulty over a candidate block's messages,
// the aggregate PoW credit granted for bundling hashed messages.
func MessageBonus(messages []*Message) float64 {
	var sum float64
	for _, m := range messages {
		sum += HashDifficulty(m.Hash)
	}
	return sum
}

// RequiredDifficulty applies the message bonus discount to base,
// floored at MinDifficulty.
func RequiredDifficulty(base float64, messages []*Message) float64 {
	req := base - MessageBonus(messages)
	if req < MinDifficulty {
		req = MinDifficulty
	}
	return req
}

// MedianTimestamp computes the median of a window's timestamps, where
// an even-sized sample's median is the arithmetic mean of the two
// middle values (§9's "Median-of-even" design note — implementations
// must reproduce this exactly).
func MedianTimestamp(window []*Block) float64 {
	if len(window) == 0 {
		return 0
	}
	ts := make([]int64, len(window))
	for i, b := range window {
		ts[i] = b.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	n := len(ts)
	if n%2 == 1 {
		return float64(ts[n/2])
	}
	return float64(ts[n/2-1]+ts[n/2]) / 2
}
