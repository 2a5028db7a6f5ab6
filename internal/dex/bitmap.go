package dex

import (
	"math/big"

	"ammdepth/internal/tickmath"
)

// The tick space is partitioned into words of 256 compressed ticks each.
// Fetching words instead of ticks turns discovery from O(ticks) calls into
// O(ticks/256).
const ticksPerWord = 256

// compressTick floor-divides a tick by the pool spacing, matching the
// on-chain compression (floor, not truncation, for negative ticks).
func compressTick(tick, spacing int64) int64 {
	compressed := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		compressed--
	}
	return compressed
}

// wordRange returns the inclusive bitmap word range to fetch for a pool at
// the given spacing. radius zero covers the full valid tick range;
// otherwise the range is clamped to radius words each side of the word
// holding the current tick.
func wordRange(currentTick, spacing int64, radius int) (int16, int16) {
	minWord := compressTick(tickmath.MinTick, spacing) >> 8
	maxWord := compressTick(tickmath.MaxTick, spacing) >> 8
	if radius > 0 {
		current := compressTick(currentTick, spacing) >> 8
		if lo := current - int64(radius); lo > minWord {
			minWord = lo
		}
		if hi := current + int64(radius); hi < maxWord {
			maxWord = hi
		}
	}
	return int16(minWord), int16(maxWord)
}

// decodeBitmapWord reconstructs initialized tick indices from one bitmap
// word: bit i set means compressed tick word*256+i is initialized, so the
// tick is that compressed value times the spacing. Ticks outside the valid
// range are discarded. A zero or nil word yields no ticks; that is a
// normal empty word, not an error.
func decodeBitmapWord(word *big.Int, wordIndex int16, spacing int64) []int64 {
	if word == nil || word.Sign() == 0 {
		return nil
	}

	var ticks []int64
	for i := 0; i < ticksPerWord; i++ {
		if word.Bit(i) == 0 {
			continue
		}
		compressed := int64(wordIndex)*ticksPerWord + int64(i)
		tick := compressed * spacing
		if tick < tickmath.MinTick || tick > tickmath.MaxTick {
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
