// Package match correlates TCP connections across two captures of the same
// traffic observed at different hops: candidates are generated per bucket,
// scored against a weighted feature profile, and assigned either one-to-one
// or one-to-many.
package match

import (
	"math"

	"github.com/rickypin/capmaster/internal/connection"
	"github.com/rickypin/capmaster/util"
)

// Profile names a scoring feature set.
type Profile string

const (
	// ProfileAuto scores on transport-level fingerprints: server port, IPID
	// overlap, SYN options, and payload hash.
	ProfileAuto Profile = "auto"

	// ProfileBehavioral scores on traffic shape alone: duration ratio,
	// inter-packet timing, and per-direction byte ratios. It needs no
	// overlapping time window and no header fingerprints, so it survives
	// middleboxes that rewrite them.
	ProfileBehavioral Profile = "behavioral"
)

// ParseProfile validates a user-supplied profile name.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileAuto, ProfileBehavioral:
		return Profile(s), nil
	default:
		return "", util.NewConfigError("unknown match profile: "+s, "recognised profiles: auto, behavioral")
	}
}

// Weights of the auto profile. Tunable constants chosen against the 2-hop
// benchmark sets, not part of any contract.
const (
	weightServerPort = 0.20
	weightIPIDSet    = 0.30
	weightSynOptions = 0.20
	weightPayload    = 0.30

	ipidOverlapThreshold = 3
)

// Weights of the behavioral profile.
const (
	weightDuration  = 0.40
	weightTiming    = 0.30
	weightByteRatio = 0.30
)

// Score computes the [0,1] similarity of two connections under profile,
// returning the per-feature contributions as evidence.
func Score(a, b *connection.TCPConnection, profile Profile) (float64, map[string]float64) {
	if profile == ProfileBehavioral {
		return scoreBehavioral(a, b)
	}
	return scoreAuto(a, b)
}

func scoreAuto(a, b *connection.TCPConnection) (float64, map[string]float64) {
	evidence := make(map[string]float64, 4)

	if a.ServerPort == b.ServerPort {
		evidence["server_port"] = weightServerPort
	}

	if overlap, smaller := ipidOverlap(a.IPIDSet, b.IPIDSet); smaller > 0 {
		if overlap >= ipidOverlapThreshold {
			evidence["ipid_overlap"] = weightIPIDSet
		} else if overlap > 0 {
			evidence["ipid_overlap"] = weightIPIDSet * float64(overlap) / float64(smaller)
		}
	}

	if a.SynOptions != "" && a.SynOptions == b.SynOptions {
		evidence["syn_options"] = weightSynOptions
	}

	if a.PayloadHash != "" && a.PayloadHash == b.PayloadHash {
		evidence["payload_hash"] = weightPayload
	}

	return sumEvidence(evidence), evidence
}

func scoreBehavioral(a, b *connection.TCPConnection) (float64, map[string]float64) {
	evidence := make(map[string]float64, 3)

	evidence["duration_ratio"] = weightDuration * closeness(a.Duration(), b.Duration())
	evidence["packet_timing"] = weightTiming * closeness(meanGap(a), meanGap(b))

	clientRatio := closeness(float64(a.ClientBytes), float64(b.ClientBytes))
	serverRatio := closeness(float64(a.ServerBytes), float64(b.ServerBytes))
	evidence["byte_ratio"] = weightByteRatio * (clientRatio + serverRatio) / 2

	return sumEvidence(evidence), evidence
}

// ipidOverlap returns the intersection size and the smaller set's size.
func ipidOverlap(a, b map[uint16]bool) (overlap, smaller int) {
	if len(b) < len(a) {
		a, b = b, a
	}
	for id := range a {
		if b[id] {
			overlap++
		}
	}
	return overlap, len(a)
}

// IPIDOverlap is the exported form used by evidence reporting.
func IPIDOverlap(a, b *connection.TCPConnection) int {
	overlap, _ := ipidOverlap(a.IPIDSet, b.IPIDSet)
	return overlap
}

// closeness maps two non-negative magnitudes to [0,1]: 1 when equal,
// approaching 0 as they diverge. Two zeros are fully close.
func closeness(x, y float64) float64 {
	if x == 0 && y == 0 {
		return 1
	}
	if x <= 0 || y <= 0 {
		return 0
	}
	return math.Min(x, y) / math.Max(x, y)
}

// meanGap is the average inter-packet interval, the record-level summary of
// the inter-packet-time distribution.
func meanGap(c *connection.TCPConnection) float64 {
	if c.TotalPackets < 2 {
		return 0
	}
	return c.Duration() / float64(c.TotalPackets-1)
}

func sumEvidence(evidence map[string]float64) float64 {
	var total float64
	for _, v := range evidence {
		total += v
	}
	if total > 1 {
		total = 1
	}
	return total
}
