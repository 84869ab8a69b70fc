package upgrade

import (
	"errors"
	"fmt"
	"strings"
)

// Ring is a distribution channel gating which releases an installation considers.
type Ring int

const (
	// RingNone disables upgrades entirely.
	RingNone Ring = iota + 1
	// RingSlow receives only releases promoted to general availability.
	RingSlow
	// RingFast receives early releases in addition to the slow ones.
	RingFast
)

// RingPolicy selects how a configured ring relates to a release ring.
type RingPolicy string

const (
	// RingPolicyInclusive lets a faster ring see every release of a slower ring.
	RingPolicyInclusive RingPolicy = "inclusive"
	// RingPolicyExact only matches releases tagged with the configured ring.
	RingPolicyExact RingPolicy = "exact"
)

var (
	// errUnknownRing is returned when a ring name is not recognized.
	errUnknownRing = errors.New("unknown ring")
	// errUnknownRingPolicy is returned when a ring policy name is not recognized.
	errUnknownRingPolicy = errors.New("unknown ring policy")
)

// ParseRing converts a case-insensitive ring name into a Ring.
func ParseRing(s string) (Ring, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return RingNone, nil
	case "slow":
		return RingSlow, nil
	case "fast":
		return RingFast, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownRing, s)
	}
}

// ParseRingPolicy converts a policy name into a RingPolicy, empty means inclusive.
func ParseRingPolicy(s string) (RingPolicy, error) {
	switch RingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RingPolicyInclusive:
		return RingPolicyInclusive, nil
	case RingPolicyExact:
		return RingPolicyExact, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownRingPolicy, s)
	}
}

// String returns the lowercase ring name.
func (r Ring) String() string {
	switch r {
	case RingNone:
		return "none"
	case RingSlow:
		return "slow"
	case RingFast:
		return "fast"
	default:
		return fmt.Sprintf("ring(%d)", int(r))
	}
}

// DisplayName returns the capitalized ring name used in user messages.
func (r Ring) DisplayName() string {
	name := r.String()

	return strings.ToUpper(name[:1]) + name[1:]
}

// RingGate decides whether a release ring is visible to a configured ring.
type RingGate struct {
	// Policy is the inclusion rule, the zero value behaves as RingPolicyInclusive.
	Policy RingPolicy
}

// Eligible reports whether a release tagged with candidate may be offered to
// an installation configured with configured.
func (g RingGate) Eligible(configured, candidate Ring) bool {
	if configured == RingNone || candidate == RingNone {
		return false
	}

	if g.Policy == RingPolicyExact {
		return configured == candidate
	}

	return candidate <= configured
}
