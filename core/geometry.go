package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/handover-engine/model"
)

// WGS84 ellipsoid constants (km).
const (
	wgs84SemiMajorKm = 6378.137
	wgs84Flattening  = 1.0 / 298.257223563
)

var wgs84Ecc2 = wgs84Flattening * (2 - wgs84Flattening)

// Vec3 is an ECEF vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// geodeticToECEF converts a WGS84 geodetic position to ECEF kilometres.
func geodeticToECEF(g model.Geodetic) Vec3 {
	lat := g.LatDeg * math.Pi / 180
	lon := g.LonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Prime-vertical radius of curvature.
	n := wgs84SemiMajorKm / math.Sqrt(1-wgs84Ecc2*sinLat*sinLat)

	return Vec3{
		X: (n + g.AltKm) * cosLat * cosLon,
		Y: (n + g.AltKm) * cosLat * sinLon,
		Z: (n*(1-wgs84Ecc2) + g.AltKm) * sinLat,
	}
}

// eciToECEF rotates an ECI position into ECEF using the GMST at the sample
// timestamp, the same way the SGP4 motion path does.
func eciToECEF(p model.PositionSample) Vec3 {
	year, month, day := p.Timestamp.UTC().Date()
	hour, min, sec := p.Timestamp.UTC().Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	ecef := satellite.ECIToECEF(satellite.Vector3{X: p.ECI.X, Y: p.ECI.Y, Z: p.ECI.Z}, gmst)
	return Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
}

// topocentric holds the observer-relative pointing solution for one sample.
type topocentric struct {
	RangeKm      float64
	ElevationDeg float64
	AzimuthDeg   float64
}

// lookAngles computes range, elevation and azimuth of sat as seen from the
// observer, both ECEF km, using an ENU frame anchored at the observer's
// geodetic position. 0° elevation = geometric horizon; azimuth is degrees
// clockwise from true north in [0, 360).
func lookAngles(observer model.Geodetic, obsECEF, sat Vec3) topocentric {
	d := sat.Sub(obsECEF)
	rng := d.Norm()
	if rng == 0 {
		return topocentric{RangeKm: 0, ElevationDeg: 90, AzimuthDeg: 0}
	}

	lat := observer.LatDeg * math.Pi / 180
	lon := observer.LonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	east := -sinLon*d.X + cosLon*d.Y
	north := -sinLat*cosLon*d.X - sinLat*sinLon*d.Y + cosLat*d.Z
	up := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z

	elev := math.Asin(clamp(up/rng, -1, 1)) * 180 / math.Pi

	az := math.Atan2(east, north) * 180 / math.Pi
	if az < 0 {
		az += 360
	}

	return topocentric{RangeKm: rng, ElevationDeg: elev, AzimuthDeg: az}
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

// GeometryEvaluator converts upstream position series into topocentric
// samples for a fixed ground observer.
type GeometryEvaluator struct {
	Observer model.Observer

	obsECEF Vec3
}

// NewGeometryEvaluator precomputes the observer's ECEF position.
func NewGeometryEvaluator(observer model.Observer) *GeometryEvaluator {
	return &GeometryEvaluator{
		Observer: observer,
		obsECEF:  geodeticToECEF(observer.Geodetic),
	}
}

// Evaluate maps an ordered position series to per-sample
// elevation/azimuth/range. It returns a GeometryError when the series is
// empty or its timestamps are not strictly increasing; the caller treats
// that as fatal for this satellite only.
func (g *GeometryEvaluator) Evaluate(satelliteID string, series []model.PositionSample) ([]model.SatellitePositionSample, error) {
	if len(series) == 0 {
		return nil, &GeometryError{SatelliteID: satelliteID, Reason: "empty position series"}
	}

	out := make([]model.SatellitePositionSample, 0, len(series))
	for i, p := range series {
		if i > 0 && !p.Timestamp.After(series[i-1].Timestamp) {
			return nil, &GeometryError{
				SatelliteID: satelliteID,
				Reason: "non-monotonic timestamps at sample " +
					p.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			}
		}

		var satECEF Vec3
		switch p.Frame {
		case model.FrameGeodetic:
			satECEF = geodeticToECEF(p.Geodetic)
		case model.FrameECI:
			satECEF = eciToECEF(p)
		default:
			return nil, &GeometryError{SatelliteID: satelliteID, Reason: "unknown position frame"}
		}

		look := lookAngles(g.Observer.Geodetic, g.obsECEF, satECEF)
		out = append(out, model.SatellitePositionSample{
			Timestamp:     p.Timestamp,
			RangeKm:       look.RangeKm,
			ElevationDeg:  look.ElevationDeg,
			AzimuthDeg:    look.AzimuthDeg,
			Constellation: p.Constellation,
		})
	}
	return out, nil
}
