// Package upgrade contains core domain types for the upgrade pipeline.
//
// It defines Version (ordered release numbers), Ring and RingGate (distribution
// channel eligibility), release and asset descriptors, the run State marker,
// the process ReturnCode and the stage-tagged Error used to separate fatal
// failures from non-fatal cleanup diagnostics.
package upgrade
