package book

import (
	"math/big"
	"reflect"
	"testing"

	"ammdepth/internal/model"
)

func tick(index int64, net int64) model.TickRecord {
	n := big.NewInt(net)
	gross := new(big.Int).Abs(n)
	return model.TickRecord{Index: index, LiquidityGross: gross, LiquidityNet: n}
}

func TestWalkUpSingleTick(t *testing.T) {
	// One initialized tick above the current tick: exactly one interval with
	// the in-range liquidity, nothing open-ended beyond the last tick.
	ticks := []model.TickRecord{tick(60, -1000)}

	got := WalkUp(ticks, 0, big.NewInt(5000), 10)

	want := []Interval{{TickLower: 0, TickUpper: 60, Liquidity: big.NewInt(5000)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intervals mismatch: %+v != %+v", got, want)
	}
}

func TestWalkUpAppliesNet(t *testing.T) {
	ticks := []model.TickRecord{
		tick(60, 2000),
		tick(120, -500),
		tick(180, -6500),
	}

	got := WalkUp(ticks, 0, big.NewInt(5000), 10)

	want := []Interval{
		{TickLower: 0, TickUpper: 60, Liquidity: big.NewInt(5000)},
		{TickLower: 60, TickUpper: 120, Liquidity: big.NewInt(7000)},
		{TickLower: 120, TickUpper: 180, Liquidity: big.NewInt(6500)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intervals mismatch: %+v != %+v", got, want)
	}
}

func TestWalkUpSkipsNonPositiveLiquidity(t *testing.T) {
	// Crossing tick 10 drives the running total negative; the interval
	// above it is skipped but the walk continues and recovers at tick 20.
	ticks := []model.TickRecord{
		tick(10, -200),
		tick(20, 300),
		tick(30, -50),
	}

	got := WalkUp(ticks, 0, big.NewInt(100), 10)

	want := []Interval{
		{TickLower: 0, TickUpper: 10, Liquidity: big.NewInt(100)},
		{TickLower: 20, TickUpper: 30, Liquidity: big.NewInt(200)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intervals mismatch: %+v != %+v", got, want)
	}
}

func TestWalkDownAppliesNet(t *testing.T) {
	// Downward crossings subtract liquidityNet: the interval below a tick
	// carries the liquidity that was added when that tick was crossed up.
	ticks := []model.TickRecord{
		tick(-120, 2000),
		tick(-60, 500),
	}

	got := WalkDown(ticks, 0, big.NewInt(3000), 10)

	want := []Interval{
		{TickLower: -60, TickUpper: 0, Liquidity: big.NewInt(3000)},
		{TickLower: -120, TickUpper: -60, Liquidity: big.NewInt(2500)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intervals mismatch: %+v != %+v", got, want)
	}
}

func TestWalkIgnoresTicksOnWrongSide(t *testing.T) {
	// The tick at the current tick is already reflected in the in-range
	// liquidity: walking up it contributes nothing further, walking down
	// its net is subtracted on the first crossing.
	ticks := []model.TickRecord{
		tick(-60, 1000),
		tick(0, 400),
		tick(60, -700),
	}

	up := WalkUp(ticks, 0, big.NewInt(900), 10)
	wantUp := []Interval{{TickLower: 0, TickUpper: 60, Liquidity: big.NewInt(900)}}
	if !reflect.DeepEqual(up, wantUp) {
		t.Fatalf("up intervals mismatch: %+v != %+v", up, wantUp)
	}

	down := WalkDown(ticks, 0, big.NewInt(900), 10)
	wantDown := []Interval{{TickLower: -60, TickUpper: 0, Liquidity: big.NewInt(500)}}
	if !reflect.DeepEqual(down, wantDown) {
		t.Fatalf("down intervals mismatch: %+v != %+v", down, wantDown)
	}
}

func TestWalkDownCrossesInitializedCurrentTick(t *testing.T) {
	// A position whose lower bound sits exactly at the current tick is in
	// range, so its net is part of the current liquidity. Walking down
	// crosses it out immediately: the first bid interval carries the
	// liquidity without that net.
	ticks := []model.TickRecord{
		tick(-60, 500),
		tick(0, 400),
	}

	got := WalkDown(ticks, 0, big.NewInt(900), 10)

	want := []Interval{{TickLower: -60, TickUpper: 0, Liquidity: big.NewInt(500)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intervals mismatch: %+v != %+v", got, want)
	}
}

func TestWalkRespectsMaxIntervals(t *testing.T) {
	var ticks []model.TickRecord
	for i := int64(1); i <= 20; i++ {
		ticks = append(ticks, tick(i*60, 100))
	}

	got := WalkUp(ticks, 0, big.NewInt(1000), 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 intervals, got %d", len(got))
	}
}

func TestWalkEmptyTickSet(t *testing.T) {
	if got := WalkUp(nil, 0, big.NewInt(5000), 10); got != nil {
		t.Fatalf("expected no intervals, got %+v", got)
	}
	if got := WalkDown(nil, 0, big.NewInt(5000), 10); got != nil {
		t.Fatalf("expected no intervals, got %+v", got)
	}
}
