package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConstellationThresholds are the recalibrated per-constellation limits
// consumers read from a snapshot.
type ConstellationThresholds struct {
	MinElevationDeg float64
	RSRPFloorDBm    float64
}

// ThresholdSnapshot is an immutable set of effective thresholds. A snapshot
// is built once, published by atomic pointer swap at an epoch boundary, and
// never mutated afterward, so every reader inside one decision cycle sees a
// single consistent set.
type ThresholdSnapshot struct {
	Epoch       int
	PublishedAt time.Time

	byConstellation map[string]ConstellationThresholds
}

// MinElevationDeg returns the effective minimum elevation for the
// constellation, if it is tracked by this snapshot.
func (s *ThresholdSnapshot) MinElevationDeg(constellation string) (float64, bool) {
	t, ok := s.byConstellation[constellation]
	return t.MinElevationDeg, ok
}

// RSRPFloorDBm returns the effective RSRP visibility floor.
func (s *ThresholdSnapshot) RSRPFloorDBm(constellation string) (float64, bool) {
	t, ok := s.byConstellation[constellation]
	return t.RSRPFloorDBm, ok
}

// Recalibration clamps: elevation may wander within [1°, 45°], the RSRP
// floor within [-130, -80] dBm.
const (
	minElevFloorDeg = 1.0
	maxElevCeilDeg  = 45.0
	rsrpFloorMinDBm = -130.0
	rsrpFloorMaxDBm = -80.0
)

type epochStats struct {
	feasible int
	total    int
	rsrpSum  float64
	rsrpN    int
}

// DynamicThresholdController periodically recomputes per-constellation
// thresholds from observed feasibility statistics so the visible-satellite
// count stays inside the configured target band. Publication is
// copy-on-write: readers fetch the current snapshot lock-free, the single
// writer swaps in a fresh one only at epoch boundaries.
type DynamicThresholdController struct {
	cfg *Config

	current atomic.Pointer[ThresholdSnapshot]

	mu    sync.Mutex
	stats map[string]*epochStats
	ticks int
	epoch int
}

// NewDynamicThresholdController seeds the initial snapshot from the static
// configuration: configured minimum elevations, grade-D RSRP floor.
func NewDynamicThresholdController(cfg *Config) *DynamicThresholdController {
	c := &DynamicThresholdController{
		cfg:   cfg,
		stats: make(map[string]*epochStats),
	}
	initial := &ThresholdSnapshot{
		PublishedAt:     time.Time{},
		byConstellation: make(map[string]ConstellationThresholds, len(cfg.Constellations)),
	}
	for name, cc := range cfg.Constellations {
		initial.byConstellation[name] = ConstellationThresholds{
			MinElevationDeg: cc.MinElevationDeg,
			RSRPFloorDBm:    signalGradeTable[len(signalGradeTable)-1].RSRPDBm,
		}
	}
	c.current.Store(initial)
	return c
}

// Current returns the published snapshot. Never nil, never blocks.
func (c *DynamicThresholdController) Current() *ThresholdSnapshot {
	return c.current.Load()
}

// Observe records one satellite's outcome for the running epoch.
func (c *DynamicThresholdController) Observe(constellation string, feasible bool, meanRSRPDBm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats[constellation]
	if st == nil {
		st = &epochStats{}
		c.stats[constellation] = st
	}
	st.total++
	if feasible {
		st.feasible++
		st.rsrpSum += meanRSRPDBm
		st.rsrpN++
	}
}

// Tick advances the epoch counter. At every RecalibrationTicks boundary it
// recomputes and publishes a new snapshot and reports true; mid-epoch it
// leaves the published snapshot untouched.
func (c *DynamicThresholdController) Tick(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	if c.ticks < c.cfg.Thresholds.RecalibrationTicks {
		return false
	}
	c.ticks = 0
	c.epoch++

	prev := c.current.Load()
	next := &ThresholdSnapshot{
		Epoch:           c.epoch,
		PublishedAt:     now,
		byConstellation: make(map[string]ConstellationThresholds, len(prev.byConstellation)),
	}

	for name, t := range prev.byConstellation {
		cc := c.cfg.Constellations[name]
		st := c.stats[name]
		next.byConstellation[name] = c.recalibrate(t, cc, st)
	}

	c.stats = make(map[string]*epochStats)
	c.current.Store(next)
	return true
}

// recalibrate nudges the constellation's thresholds one step toward the
// visible-count target band. Too many feasible satellites means the
// thresholds are too loose; too few means too strict.
func (c *DynamicThresholdController) recalibrate(t ConstellationThresholds, cc ConstellationConfig, st *epochStats) ConstellationThresholds {
	if st == nil || st.total == 0 || cc.TargetVisibleMax == 0 {
		return t
	}

	elevStep := c.cfg.Thresholds.ElevationStepDeg
	rsrpStep := c.cfg.Thresholds.RSRPStepDB

	switch {
	case st.feasible > cc.TargetVisibleMax:
		t.MinElevationDeg = clamp(t.MinElevationDeg+elevStep, minElevFloorDeg, maxElevCeilDeg)
		t.RSRPFloorDBm = clamp(t.RSRPFloorDBm+rsrpStep, rsrpFloorMinDBm, rsrpFloorMaxDBm)
	case st.feasible < cc.TargetVisibleMin:
		t.MinElevationDeg = clamp(t.MinElevationDeg-elevStep, minElevFloorDeg, maxElevCeilDeg)
		t.RSRPFloorDBm = clamp(t.RSRPFloorDBm-rsrpStep, rsrpFloorMinDBm, rsrpFloorMaxDBm)
	}
	return t
}
