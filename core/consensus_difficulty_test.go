package core

import "testing"

func TestMedianTimestampOddEven(t *testing.T) {
	odd := []*Block{{Timestamp: 10}, {Timestamp: 30}, {Timestamp: 20}}
	if got := MedianTimestamp(odd); got != 20 {
		t.Fatalf("odd median: want 20, got %v", got)
	}

	even := []*Block{{Timestamp: 10}, {Timestamp: 20}, {Timestamp: 30}, {Timestamp: 41}}
	// sorted: 10, 20, 30, 41 -> mean of two middles (20, 30) = 25
	if got := MedianTimestamp(even); got != 25 {
		t.Fatalf("even median: want 25, got %v", got)
	}
}

func TestMedianTimestampEmpty(t *testing.T) {
	if got := MedianTimestamp(nil); got != 0 {
		t.Fatalf("empty median: want 0, got %v", got)
	}
}

func TestTargetAndMeetsTarget(t *testing.T) {
	hi := Target(1)
	lo := Target(1000000)
	if hi.Cmp(lo) <= 0 {
		t.Fatalf("target(1) should exceed target(1e6)")
	}
	hexHash := "0000000000000000000000000000000000000000000000000000000000000001"[:64]
	if !MeetsTarget(hexHash, 1) {
		t.Fatalf("near-zero hash should meet a trivial target")
	}
	allFs := ""
	for i := 0; i < 64; i++ {
		allFs += "f"
	}
	if MeetsTarget(allFs, 1e18) {
		t.Fatalf("maximal hash should not meet an extreme target")
	}
}

func TestBaseDifficultyEmptyWindow(t *testing.T) {
	if got := BaseDifficulty(nil); got != 0 {
		t.Fatalf("empty window base difficulty: want 0, got %v", got)
	}
}

func TestBaseDifficultyClampsSway(t *testing.T) {
	// 10 blocks spanning far less than TargetTime -> sway clamps at
	// TargetSwayMin, so base > mean(difficulty).
	window := make([]*Block, TargetBlocks)
	for i := range window {
		window[i] = &Block{Timestamp: int64(i), Difficulty: 2000}
	}
	base := BaseDifficulty(window)
	if base <= 2000 {
		t.Fatalf("fast blocks should retarget upward, got %v", base)
	}
}

func TestRequiredDifficultyFloor(t *testing.T) {
	if got := RequiredDifficulty(500, nil); got != MinDifficulty {
		t.Fatalf("required difficulty must floor at MinDifficulty, got %v", got)
	}
}

func TestMessageBonusDiscountsRequiredDifficulty(t *testing.T) {
	messages := []*Message{{Hash: "00ff"}, {Hash: "ff00"}}
	base := float64(MinDifficulty) + 10
	withoutBonus := RequiredDifficulty(base, nil)
	withBonus := RequiredDifficulty(base, messages)
	if withBonus > withoutBonus {
		t.Fatalf("message bonus should never increase required difficulty")
	}
}
