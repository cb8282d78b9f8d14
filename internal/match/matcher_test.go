package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickypin/capmaster/internal/connection"
)

func conn(stream int, clientIP, serverIP string, clientPort, serverPort int, ipids []uint16, synOpts, payloadHash string) connection.TCPConnection {
	set := make(map[uint16]bool, len(ipids))
	for _, id := range ipids {
		set[id] = true
	}
	return connection.TCPConnection{
		StreamID:     stream,
		ClientIP:     clientIP,
		ServerIP:     serverIP,
		ClientPort:   clientPort,
		ServerPort:   serverPort,
		FirstTS:      100,
		LastTS:       110,
		TotalPackets: 20,
		TotalBytes:   4000,
		ClientBytes:  1000,
		ServerBytes:  3000,
		IPIDSet:      set,
		SynOptions:   synOpts,
		PayloadHash:  payloadHash,
	}
}

// The same session observed at two hops: NAT rewrote the server address but
// IPID evolution and SYN options survive.
func TestMatchAcrossNAT(t *testing.T) {
	a := []connection.TCPConnection{
		conn(7, "10.0.0.1", "192.168.5.5", 50000, 443, []uint16{100, 101, 102, 103}, "020405b4", "aabb"),
	}
	b := []connection.TCPConnection{
		conn(3, "172.16.0.9", "203.0.113.7", 61000, 443, []uint16{101, 102, 103, 104}, "020405b4", "ccdd"),
	}

	res, err := Match(context.Background(), a, b, Config{})
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	p := res.Pairs[0]
	assert.GreaterOrEqual(t, p.Score, 0.7)
	assert.Equal(t, weightSynOptions, p.Evidence["syn_options"])
	assert.Equal(t, weightIPIDSet, p.Evidence["ipid_overlap"])
	assert.GreaterOrEqual(t, IPIDOverlap(p.A, p.B), 3)
}

func TestMatchThreshold(t *testing.T) {
	// Only the server port matches: score 0.20, below the default 0.50.
	a := []connection.TCPConnection{
		conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1, 2}, "opts-a", "x"),
	}
	b := []connection.TCPConnection{
		conn(2, "10.9.9.1", "10.9.9.2", 51000, 443, []uint16{900, 901}, "opts-b", "y"),
	}

	res, err := Match(context.Background(), a, b, Config{})
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Equal(t, 1, res.Stats.UnmatchedA)
	assert.Equal(t, 1, res.Stats.UnmatchedB)
}

func TestMatchOneToOneUniqueness(t *testing.T) {
	// Two A connections both resemble the single B connection; one-to-one
	// assignment must use B only once, keeping the higher-scoring pair.
	strong := conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1, 2, 3, 4}, "same", "ph")
	weak := conn(2, "10.0.0.3", "10.0.0.2", 50001, 443, []uint16{1, 2, 3, 4}, "same", "other")
	target := conn(9, "172.16.0.1", "172.16.0.2", 61000, 443, []uint16{2, 3, 4, 5}, "same", "ph")

	res, err := Match(context.Background(),
		[]connection.TCPConnection{strong, weak},
		[]connection.TCPConnection{target},
		Config{Mode: AssignOneToOne})
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 1, res.Pairs[0].A.StreamID)
	assert.Equal(t, 1, res.Stats.Matched)
	assert.Equal(t, 1, res.Stats.UnmatchedA)
	assert.Equal(t, 0, res.Stats.UnmatchedB)
}

func TestMatchOneToManyKeepsAllCandidates(t *testing.T) {
	a1 := conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1, 2, 3, 4}, "same", "ph")
	a2 := conn(2, "10.0.0.3", "10.0.0.2", 50001, 443, []uint16{1, 2, 3, 4}, "same", "ph")
	target := conn(9, "172.16.0.1", "172.16.0.2", 61000, 443, []uint16{2, 3, 4, 5}, "same", "ph")

	res, err := Match(context.Background(),
		[]connection.TCPConnection{a1, a2},
		[]connection.TCPConnection{target},
		Config{Mode: AssignOneToMany})
	require.NoError(t, err)
	assert.Len(t, res.Pairs, 2)
}

func TestMatchOrderingAndDeterminism(t *testing.T) {
	mk := func(stream int, payloadHash string) connection.TCPConnection {
		return conn(stream, "10.0.0.1", "10.0.0.2", 50000+stream, 443, []uint16{uint16(stream)}, "same", payloadHash)
	}
	a := []connection.TCPConnection{mk(1, "p1"), mk(2, "p2"), mk(3, "p3")}
	b := []connection.TCPConnection{mk(11, "p1"), mk(12, "p2"), mk(13, "p3")}

	res, err := Match(context.Background(), a, b, Config{Mode: AssignOneToMany, Workers: 4})
	require.NoError(t, err)
	require.NotEmpty(t, res.Pairs)

	for i := 1; i < len(res.Pairs); i++ {
		assert.GreaterOrEqual(t, res.Pairs[i-1].Score, res.Pairs[i].Score)
	}

	again, err := Match(context.Background(), a, b, Config{Mode: AssignOneToMany, Workers: 4})
	require.NoError(t, err)
	require.Equal(t, len(res.Pairs), len(again.Pairs))
	for i := range res.Pairs {
		assert.Equal(t, res.Pairs[i].A.StreamID, again.Pairs[i].A.StreamID)
		assert.Equal(t, res.Pairs[i].B.StreamID, again.Pairs[i].B.StreamID)
	}
}

// Swapping A and B yields the same pairs, modulo orientation.
func TestMatchCommutative(t *testing.T) {
	a := []connection.TCPConnection{
		conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1, 2, 3, 4}, "o1", "p1"),
		conn(2, "10.0.0.3", "10.0.0.4", 50001, 8443, []uint16{7, 8, 9, 10}, "o2", "p2"),
	}
	b := []connection.TCPConnection{
		conn(11, "172.16.0.1", "172.16.0.2", 61000, 443, []uint16{2, 3, 4, 5}, "o1", "p1"),
		conn(12, "172.16.0.3", "172.16.0.4", 61001, 8443, []uint16{8, 9, 10, 11}, "o2", "p2"),
	}

	fwd, err := Match(context.Background(), a, b, Config{})
	require.NoError(t, err)
	rev, err := Match(context.Background(), b, a, Config{})
	require.NoError(t, err)

	require.Equal(t, len(fwd.Pairs), len(rev.Pairs))
	for i := range fwd.Pairs {
		assert.Equal(t, fwd.Pairs[i].A.StreamID, rev.Pairs[i].B.StreamID)
		assert.Equal(t, fwd.Pairs[i].B.StreamID, rev.Pairs[i].A.StreamID)
		assert.Equal(t, fwd.Pairs[i].Score, rev.Pairs[i].Score)
	}
}

// Two pairs with equal scores and equal combined stream-id sums: the
// ordered-pair tie-break must pick the same winner regardless of which
// capture is side A.
func TestMatchTieBreakSwapStable(t *testing.T) {
	a := []connection.TCPConnection{
		conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1, 2, 3, 4}, "same", "p1"),
		conn(3, "10.0.0.3", "10.0.0.4", 50001, 443, []uint16{7, 8, 9, 10}, "same", "p2"),
	}
	b := []connection.TCPConnection{
		conn(13, "172.16.0.1", "172.16.0.2", 61000, 443, []uint16{2, 3, 4, 5}, "same", "p1"),
		conn(11, "172.16.0.3", "172.16.0.4", 61001, 443, []uint16{8, 9, 10, 11}, "same", "p2"),
	}

	fwd, err := Match(context.Background(), a, b, Config{Mode: AssignOneToMany})
	require.NoError(t, err)
	rev, err := Match(context.Background(), b, a, Config{Mode: AssignOneToMany})
	require.NoError(t, err)

	// Both pairs score identically and 1+13 == 3+11; the (1,13) pair has
	// the lower low stream-id and sorts first on both orientations.
	require.Len(t, fwd.Pairs, 2)
	require.Len(t, rev.Pairs, 2)
	assert.Equal(t, 1, fwd.Pairs[0].A.StreamID)
	assert.Equal(t, 13, fwd.Pairs[0].B.StreamID)
	assert.Equal(t, 13, rev.Pairs[0].A.StreamID)
	assert.Equal(t, 1, rev.Pairs[0].B.StreamID)
}

func TestBehavioralProfileIgnoresFingerprints(t *testing.T) {
	a := conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, []uint16{1}, "opts-a", "pa")
	b := conn(2, "10.9.9.1", "10.9.9.2", 51000, 443, nil, "opts-b", "pb")

	// Identical shape: same duration, packets, byte split.
	score, evidence := Score(&a, &b, ProfileBehavioral)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.InDelta(t, weightDuration, evidence["duration_ratio"], 1e-9)
	assert.InDelta(t, weightTiming, evidence["packet_timing"], 1e-9)
	assert.InDelta(t, weightByteRatio, evidence["byte_ratio"], 1e-9)

	// Very different shape scores low.
	b.LastTS = b.FirstTS + 1000
	b.ClientBytes = 1
	b.ServerBytes = 1
	score, _ = Score(&a, &b, ProfileBehavioral)
	assert.Less(t, score, 0.2)
}

func TestBucketHashStable(t *testing.T) {
	b := newBucketer(BucketHash, 8)
	c := conn(1, "10.0.0.1", "10.0.0.2", 50000, 443, nil, "", "")
	first := b.bucketOf(&c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, b.bucketOf(&c))
	}
}

func TestParseProfileAndBucketKey(t *testing.T) {
	_, err := ParseProfile("auto")
	assert.NoError(t, err)
	_, err = ParseProfile("nope")
	assert.Error(t, err)

	_, err = ParseBucketKey("hash")
	assert.NoError(t, err)
	_, err = ParseBucketKey("nope")
	assert.Error(t, err)
}
