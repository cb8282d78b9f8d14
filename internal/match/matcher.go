package match

import (
	"context"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/rickypin/capmaster/internal/connection"
	"github.com/rickypin/capmaster/util"
)

// AssignMode controls how scored candidates become final pairs.
type AssignMode string

const (
	// AssignOneToOne greedily assigns by score descending; each connection
	// on either side appears in at most one pair.
	AssignOneToOne AssignMode = "one-to-one"

	// AssignOneToMany keeps every candidate meeting the threshold.
	AssignOneToMany AssignMode = "one-to-many"
)

// ParseAssignMode validates a user-supplied assignment mode name.
func ParseAssignMode(s string) (AssignMode, error) {
	switch AssignMode(s) {
	case AssignOneToOne, AssignOneToMany:
		return AssignMode(s), nil
	default:
		return "", util.NewConfigError("unknown assignment mode: "+s, "recognised modes: one-to-one, one-to-many")
	}
}

// DefaultThreshold is the minimum score a candidate needs to be reported.
const DefaultThreshold = 0.50

// Config parameterizes one match run.
type Config struct {
	Profile     Profile
	Bucket      BucketKey
	Threshold   float64
	Mode        AssignMode
	Workers     int
	HashBuckets int
}

func (c Config) withDefaults() Config {
	if c.Profile == "" {
		c.Profile = ProfileAuto
	}
	if c.Bucket == "" {
		c.Bucket = BucketServerPort
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Mode == "" {
		c.Mode = AssignOneToOne
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// Candidate is one scored A-B pairing from a bucket.
type Candidate struct {
	A, B     *connection.TCPConnection
	Score    float64
	Evidence map[string]float64
}

// Pair is one reported match.
type Pair struct {
	A, B       *connection.TCPConnection
	Score      float64
	Confidence string
	Evidence   map[string]float64
}

// Stats summarizes a match run.
type Stats struct {
	TotalA     int
	TotalB     int
	Matched    int
	UnmatchedA int
	UnmatchedB int
	MatchRateA float64
	MatchRateB float64
	AvgScore   float64
}

// Result is the ordered outcome of one match run: pairs sorted by score
// descending with deterministic tie-breaks.
type Result struct {
	Pairs []Pair
	Stats Stats
}

// Match correlates connsA against connsB. Distinct buckets are scored in
// parallel up to cfg.Workers; assignment runs single-threaded afterwards, so
// results are stable across runs for the same inputs.
func Match(ctx context.Context, connsA, connsB []connection.TCPConnection, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()

	b := newBucketer(cfg.Bucket, cfg.HashBuckets)
	bucketsA := b.group(connsA)
	bucketsB := b.group(connsB)

	var labels []string
	for label := range bucketsA {
		if _, ok := bucketsB[label]; ok {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	var mu sync.Mutex
	var candidates []Candidate

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(cfg.Workers)
	for _, label := range labels {
		as, bs := bucketsA[label], bucketsB[label]
		p.Go(func(ctx context.Context) error {
			local := scoreBucket(as, bs, cfg)
			if len(local) > 0 {
				mu.Lock()
				candidates = append(candidates, local...)
				mu.Unlock()
			}
			return ctx.Err()
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	pairs := assign(candidates, cfg.Mode)

	return &Result{
		Pairs: pairs,
		Stats: computeStats(connsA, connsB, pairs),
	}, nil
}

func scoreBucket(as, bs []*connection.TCPConnection, cfg Config) []Candidate {
	var out []Candidate
	for _, a := range as {
		for _, b := range bs {
			score, evidence := Score(a, b, cfg.Profile)
			if score >= cfg.Threshold {
				out = append(out, Candidate{A: a, B: b, Score: score, Evidence: evidence})
			}
		}
	}
	return out
}

// sortCandidates orders by score descending, then by lower combined
// stream-id, then by the ordered pair of stream-ids. Every key ignores
// which capture is side A, so swapping the inputs cannot reorder the
// candidates.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		li, hi := orderedStreamIDs(ci)
		lj, hj := orderedStreamIDs(cj)
		if li+hi != lj+hj {
			return li+hi < lj+hj
		}
		if li != lj {
			return li < lj
		}
		return hi < hj
	})
}

// orderedStreamIDs returns a candidate's stream IDs as a (low, high) pair.
func orderedStreamIDs(c Candidate) (int, int) {
	if c.A.StreamID <= c.B.StreamID {
		return c.A.StreamID, c.B.StreamID
	}
	return c.B.StreamID, c.A.StreamID
}

func assign(candidates []Candidate, mode AssignMode) []Pair {
	pairs := make([]Pair, 0, len(candidates))

	if mode == AssignOneToMany {
		for _, c := range candidates {
			pairs = append(pairs, toPair(c))
		}
		return pairs
	}

	usedA := make(map[*connection.TCPConnection]bool)
	usedB := make(map[*connection.TCPConnection]bool)
	for _, c := range candidates {
		if usedA[c.A] || usedB[c.B] {
			continue
		}
		usedA[c.A] = true
		usedB[c.B] = true
		pairs = append(pairs, toPair(c))
	}
	return pairs
}

func toPair(c Candidate) Pair {
	return Pair{A: c.A, B: c.B, Score: c.Score, Confidence: confidence(c.Score), Evidence: c.Evidence}
}

func confidence(score float64) string {
	switch {
	case score >= 0.80:
		return "high"
	case score >= 0.65:
		return "medium"
	default:
		return "low"
	}
}

func computeStats(connsA, connsB []connection.TCPConnection, pairs []Pair) Stats {
	matchedA := make(map[*connection.TCPConnection]bool)
	matchedB := make(map[*connection.TCPConnection]bool)
	var totalScore float64
	for _, p := range pairs {
		matchedA[p.A] = true
		matchedB[p.B] = true
		totalScore += p.Score
	}

	s := Stats{
		TotalA:     len(connsA),
		TotalB:     len(connsB),
		Matched:    len(pairs),
		UnmatchedA: len(connsA) - len(matchedA),
		UnmatchedB: len(connsB) - len(matchedB),
	}
	if s.TotalA > 0 {
		s.MatchRateA = float64(len(matchedA)) / float64(s.TotalA)
	}
	if s.TotalB > 0 {
		s.MatchRateB = float64(len(matchedB)) / float64(s.TotalB)
	}
	if len(pairs) > 0 {
		s.AvgScore = totalScore / float64(len(pairs))
	}
	return s
}
