// Package orbit adapts TLE-driven SGP4 propagation into the position
// series the evaluation pipeline consumes. It is the upstream collaborator
// of the core: propagation accuracy is out of scope here, the adapter only
// has to produce strictly time-ordered samples.
package orbit

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/handover-engine/model"
)

// TLE is one two-line element set plus the identity we track it under.
type TLE struct {
	ID            string
	Name          string
	Line1         string
	Line2         string
	Constellation string
}

// Propagator holds initialised SGP4 state per satellite.
type Propagator struct {
	sats map[string]propagated
}

type propagated struct {
	sat           satellite.Satellite
	constellation string
}

// NewPropagator initialises SGP4 state for every TLE.
func NewPropagator(tles []TLE) (*Propagator, error) {
	if len(tles) == 0 {
		return nil, fmt.Errorf("orbit: no TLEs provided")
	}
	p := &Propagator{sats: make(map[string]propagated, len(tles))}
	for _, t := range tles {
		if t.ID == "" || t.Line1 == "" || t.Line2 == "" {
			return nil, fmt.Errorf("orbit: incomplete TLE for %q", t.Name)
		}
		p.sats[t.ID] = propagated{
			sat:           satellite.TLEToSat(t.Line1, t.Line2, satellite.GravityWGS72),
			constellation: t.Constellation,
		}
	}
	return p, nil
}

// SatelliteIDs lists the tracked satellites.
func (p *Propagator) SatelliteIDs() []string {
	ids := make([]string, 0, len(p.sats))
	for id := range p.sats {
		ids = append(ids, id)
	}
	return ids
}

// Series propagates every satellite over [start, start+n*step), one sample
// per step, in ECI kilometres. Timestamps are strictly increasing, which
// is the ordering contract the geometry evaluator enforces.
func (p *Propagator) Series(start time.Time, step time.Duration, n int) map[string][]model.PositionSample {
	out := make(map[string][]model.PositionSample, len(p.sats))
	for id, entry := range p.sats {
		series := make([]model.PositionSample, 0, n)
		for i := 0; i < n; i++ {
			ts := start.Add(time.Duration(i) * step).UTC()
			year, month, day := ts.Date()
			hour, min, sec := ts.Clock()

			pos, _ := satellite.Propagate(entry.sat, year, int(month), day, hour, min, sec)
			series = append(series, model.PositionSample{
				Timestamp:     ts,
				Frame:         model.FrameECI,
				ECI:           model.ECI{X: pos.X, Y: pos.Y, Z: pos.Z},
				Constellation: entry.constellation,
			})
		}
		out[id] = series
	}
	return out
}

// LoadTLEFile reads a standard 3-line-element file (name line followed by
// the two element lines). The constellation tag is inferred from the name
// prefix, lowercased up to the first dash (STARLINK-1234 -> starlink).
func LoadTLEFile(path string) ([]TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orbit: open TLE file: %w", err)
	}
	defer f.Close()

	var (
		tles []TLE
		name string
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "1 "):
			if name == "" {
				return nil, fmt.Errorf("orbit: element line without a name line")
			}
			if !scanner.Scan() {
				return nil, fmt.Errorf("orbit: TLE for %q truncated", name)
			}
			line2 := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line2, "2 ") {
				return nil, fmt.Errorf("orbit: TLE for %q missing line 2", name)
			}
			tles = append(tles, TLE{
				ID:            name,
				Name:          name,
				Line1:         line,
				Line2:         line2,
				Constellation: constellationFromName(name),
			})
			name = ""
		default:
			name = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("orbit: read TLE file: %w", err)
	}
	if len(tles) == 0 {
		return nil, fmt.Errorf("orbit: no TLEs found in %s", path)
	}
	return tles, nil
}

func constellationFromName(name string) string {
	lower := strings.ToLower(name)
	if i := strings.IndexAny(lower, "- "); i > 0 {
		return lower[:i]
	}
	return lower
}
