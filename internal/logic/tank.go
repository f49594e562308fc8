package logic

// LockoutPolicy decides what happens to the lockout flag when the ultrasonic
// sensor produces no valid reading at all.
type LockoutPolicy string

const (
	// PolicyHold keeps the previous lockout state (fail-safe). Default.
	PolicyHold LockoutPolicy = "hold"
	// PolicyClear drops the lockout (fail-open). This matches the original
	// firmware, where a NaN distance compared false against the threshold
	// and silently cleared the lockout.
	PolicyClear LockoutPolicy = "clear"
)

// DeriveLockout computes the next lockout state from a tank reading.
// A valid distance at or beyond emptyDistanceCm asserts the lockout;
// a valid distance below it clears the lockout; an invalid reading is
// resolved by the policy.
func DeriveLockout(r TankReading, prev bool, emptyDistanceCm float64, policy LockoutPolicy) bool {
	if !r.Valid {
		if policy == PolicyClear {
			return false
		}
		return prev
	}
	return r.DistanceCm >= emptyDistanceCm
}
