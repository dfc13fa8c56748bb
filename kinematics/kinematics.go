// Package kinematics implements the closed-form constant-acceleration motion
// formulas the greedy simulator and A* heuristics are built on. Every
// function here is pure: same inputs always produce the same outputs, with
// no package-level state, so repeated calls on the A* hot path are safe to
// run concurrently.
package kinematics

import (
	"math"
	"time"

	"github.com/ts2/mbsolve/apperr"
)

// EPS bounds floating point comparisons against zero.
const EPS = 1e-6

// LineSpeedAccuracy is the tolerance used when deciding whether a train has
// reached an edge boundary.
const LineSpeedAccuracy = 1e-4

// KinematicTolerance returns the per-route tolerance used by consistency
// checks: 0.1% of the route length.
func KinematicTolerance(routeLen float64) float64 {
	return 1e-3 * routeLen
}

func validateSpeeds(vs ...float64) error {
	for _, v := range vs {
		if v < -EPS {
			return apperr.InvalidInput("kinematics", "negative speed")
		}
	}
	return nil
}

// BrakingDistance returns the distance needed to brake from speed v to a
// stop at deceleration magnitude d.
func BrakingDistance(v, d float64) float64 {
	if d <= EPS {
		return math.Inf(1)
	}
	if v < 0 {
		v = 0
	}
	return (v * v) / (2 * d)
}

// MinTravelTime returns the minimum time to traverse distance s starting at
// v0, accelerating at rate a up to vmax, then possibly braking at rate d to
// arrive at v1 without exceeding vmax.
func MinTravelTime(v0, v1, vmax, a, d, s float64) (time.Duration, error) {
	if err := validateSpeeds(v0, v1, vmax); err != nil {
		return 0, err
	}
	if s < 0 {
		return 0, apperr.InvalidInput("kinematics", "negative distance")
	}
	if a <= EPS || d <= EPS {
		return 0, apperr.InvalidInput("kinematics", "non-positive acceleration or deceleration")
	}
	if v0 > vmax+EPS || v1 > vmax+EPS {
		return 0, apperr.InvalidInput("kinematics", "speed exceeds vmax")
	}

	// Distance to accelerate from v0 to vmax, and to brake from vmax to v1.
	accDist := (vmax*vmax - v0*v0) / (2 * a)
	decDist := (vmax*vmax - v1*v1) / (2 * d)

	if accDist+decDist <= s+EPS {
		// Full triangular/trapezoidal profile: accelerate to vmax, cruise,
		// brake to v1.
		accTime := (vmax - v0) / a
		decTime := (vmax - v1) / d
		cruiseDist := s - accDist - decDist
		cruiseTime := 0.0
		if cruiseDist > 0 {
			cruiseTime = cruiseDist / vmax
		}
		total := accTime + cruiseTime + decTime
		return durationFromSeconds(total)
	}

	// Triangular profile: never reach vmax. Solve for peak speed vp such
	// that accelerating from v0 to vp then braking from vp to v1 covers s.
	vp2 := (2*a*d*s + d*v0*v0 + a*v1*v1) / (a + d)
	if vp2 < 0 {
		return 0, apperr.InvalidInput("kinematics", "infeasible travel profile")
	}
	vp := math.Sqrt(vp2)
	accTime := (vp - v0) / a
	decTime := (vp - v1) / d
	if accTime < -EPS || decTime < -EPS {
		return 0, apperr.InvalidInput("kinematics", "infeasible travel profile")
	}
	if accTime < 0 {
		accTime = 0
	}
	if decTime < 0 {
		decTime = 0
	}
	return durationFromSeconds(accTime + decTime)
}

// MaxTravelTimeNoStopping returns the maximum time to traverse distance s
// without the train coming to a full stop, i.e. speed never drops below
// vmin, starting at v0 and ending at v1.
func MaxTravelTimeNoStopping(v0, v1, vmin, a, d, s float64) (time.Duration, error) {
	if err := validateSpeeds(v0, v1, vmin); err != nil {
		return 0, err
	}
	if s < 0 {
		return 0, apperr.InvalidInput("kinematics", "negative distance")
	}
	if a <= EPS || d <= EPS {
		return 0, apperr.InvalidInput("kinematics", "non-positive acceleration or deceleration")
	}

	// Decelerate from v0 down to vmin, cruise at vmin, accelerate up to v1
	// at the very end: the slowest profile that never actually stops.
	decDist := (v0*v0 - vmin*vmin) / (2 * d)
	accDist := (v1*v1 - vmin*vmin) / (2 * a)
	if decDist < 0 {
		decDist = 0
	}
	if accDist < 0 {
		accDist = 0
	}
	if decDist+accDist > s+EPS {
		return 0, apperr.ErrInfeasibleSchedule
	}
	decTime := (v0 - vmin) / d
	accTime := (v1 - vmin) / a
	if decTime < 0 {
		decTime = 0
	}
	if accTime < 0 {
		accTime = 0
	}
	cruiseDist := s - decDist - accDist
	cruiseTime := 0.0
	if vmin > EPS {
		cruiseTime = cruiseDist / vmin
	} else if cruiseDist > EPS {
		return 0, apperr.ErrInfeasibleSchedule
	}
	return durationFromSeconds(decTime + cruiseTime + accTime)
}

// MaxBrakingPosAfterLinearMovement returns the farthest position a train can
// reach in time dt starting at v0, accelerating at a up to vmax, while still
// being able to come to a full stop by braking at d, i.e. the position from
// which the remaining braking distance still fits ahead.
func MaxBrakingPosAfterLinearMovement(v0, vmax, a, d float64, dt time.Duration) float64 {
	if d <= EPS {
		return math.Inf(-1)
	}
	t := dt.Seconds()
	if t < 0 {
		t = 0
	}
	// Time to reach vmax from v0.
	tAcc := 0.0
	if a > EPS {
		tAcc = (vmax - v0) / a
	}
	if tAcc < 0 {
		tAcc = 0
	}
	var pos, vEnd float64
	if t <= tAcc {
		pos = v0*t + 0.5*a*t*t
		vEnd = v0 + a*t
	} else {
		pos = v0*tAcc + 0.5*a*tAcc*tAcc + vmax*(t-tAcc)
		vEnd = vmax
	}
	return pos + BrakingDistance(vEnd, d)
}

// GetV1FromMA returns the speed ceiling a train may carry while still able
// to stop within the movement authority ma, braking at deceleration d. The
// caller (simulator's step loop) feeds this ceiling into
// MaxBrakingPosAfterLinearMovement as the target speed; the accel/decel
// ramp itself is that function's job, not this one's.
func GetV1FromMA(ma, d float64) float64 {
	if ma <= 0 {
		return 0
	}
	return math.Sqrt(2 * d * ma)
}

// TimeToExitObjective returns the time at which a train starting at v0,
// accelerating at a up to the lesser of vmax/vfinal's governing speed,
// braking at d as needed, crosses the exit point s meters ahead, honoring
// dt as the simulation step granularity for the returned duration's
// resolution. Returns the apperr.ErrInfeasibleSchedule sentinel itself (not
// wrapped) if no profile reaches s, so a caller can treat the result as +Inf
// without a sentinel float.
func TimeToExitObjective(v0, v1, vfinal, s, a, d float64, dt time.Duration) (time.Duration, error) {
	if s <= EPS {
		return 0, nil
	}
	vmax := vfinal
	if vmax <= EPS {
		vmax = v1
	}
	t, err := MinTravelTime(v0, v1, vmax, a, d, s)
	if err != nil {
		return 0, apperr.ErrInfeasibleSchedule
	}
	if dt > 0 {
		steps := math.Ceil(t.Seconds() / dt.Seconds())
		t = durationFromSecondsUnchecked(steps * dt.Seconds())
	}
	return t, nil
}

func durationFromSeconds(s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s < -EPS {
		return 0, apperr.ErrInfeasibleSchedule
	}
	if s < 0 {
		s = 0
	}
	return durationFromSecondsUnchecked(s), nil
}

func durationFromSecondsUnchecked(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
