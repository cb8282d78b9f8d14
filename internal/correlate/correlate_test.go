package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickypin/capmaster/internal/connection"
	"github.com/rickypin/capmaster/internal/match"
)

func testConn(stream int, clientIP, serverIP string, clientPort, serverPort, packets int, clientBytes, serverBytes int64, firstTS float64) connection.TCPConnection {
	return connection.TCPConnection{
		StreamID:      stream,
		ClientIP:      clientIP,
		ServerIP:      serverIP,
		ClientPort:    clientPort,
		ServerPort:    serverPort,
		FirstTS:       firstTS,
		LastTS:        firstTS + 5,
		TotalPackets:  packets,
		TotalBytes:    clientBytes + serverBytes,
		ClientBytes:   clientBytes,
		ServerBytes:   serverBytes,
		ClientPackets: packets / 2,
		ServerPackets: packets - packets/2,
	}
}

func testCorrelation() *Correlation {
	a := testConn(1, "10.0.0.1", "10.0.0.2", 50000, 443, 20, 1000, 3000, 100)
	b := testConn(5, "172.16.0.1", "172.16.0.2", 61000, 443, 18, 1000, 2800, 100.5)

	pair := match.Pair{
		A: &a, B: &b,
		Score:      0.85,
		Confidence: "high",
		Evidence:   map[string]float64{"server_port": 0.2, "syn_options": 0.2},
	}

	return &Correlation{
		CaptureA: "/caps/hop-a.pcap",
		CaptureB: "/caps/hop-b.pcap",
		ConnsA:   []connection.TCPConnection{a},
		ConnsB:   []connection.TCPConnection{b},
		Result: &match.Result{
			Pairs: []match.Pair{pair},
			Stats: match.Stats{TotalA: 1, TotalB: 1, Matched: 1, MatchRateA: 1, MatchRateB: 1, AvgScore: 0.85},
		},
	}
}

func TestRenderMatchReport(t *testing.T) {
	body := renderMatchReport(testCorrelation())

	assert.Contains(t, body, "Capture A: /caps/hop-a.pcap (1 connections)")
	assert.Contains(t, body, "10.0.0.1:50000")
	assert.Contains(t, body, "0.850")
	assert.Contains(t, body, "high")
	assert.Contains(t, body, "server_port=0.20 syn_options=0.20")
	assert.Contains(t, body, "Matched pairs: 1")
}

func TestRenderCompareReport(t *testing.T) {
	body := renderCompareReport(testCorrelation())

	assert.Contains(t, body, "Pairs compared: 1")
	// 20 packets at A, 18 at B: 2 lost downstream.
	assert.Contains(t, body, "Packets only in A (lost downstream): 2")
	assert.Contains(t, body, "Packets only in B (gained downstream): 0")
	assert.Contains(t, body, "Largest observed time shift: 0.500000")
}

func TestRenderStreamDiffReport(t *testing.T) {
	body := renderStreamDiffReport(testCorrelation())

	assert.Contains(t, body, "Stream 1 (A) <-> 5 (B)")
	assert.Contains(t, body, "server-direction bytes: 3000 -> 2800 (-200)")
	assert.Contains(t, body, "start time shift: +0.500000 s")
	assert.Contains(t, body, "Streams with differences: 1")
}

func TestRenderStreamDiffIdentical(t *testing.T) {
	c := testCorrelation()
	// Make B an exact copy of A's stats.
	b := *c.Result.Pairs[0].A
	b.StreamID = 5
	c.Result.Pairs[0].B = &b

	body := renderStreamDiffReport(c)
	assert.Contains(t, body, "Identical streams: 1")
	assert.Contains(t, body, "Streams with differences: 0")
}

func TestRenderTopologyReport(t *testing.T) {
	body := renderTopologyReport(testCorrelation())

	assert.Contains(t, body, "Hosts at A (2):")
	assert.Contains(t, body, "10.0.0.1")
	assert.Contains(t, body, "10.0.0.1 -> 10.0.0.2  (1 connection(s))  [correlated across hops]")
	assert.Contains(t, body, "172.16.0.1 -> 172.16.0.2  (1 connection(s))  [correlated across hops]")
	assert.Contains(t, body, "Correlated connection pairs: 1")
}

func TestStreamDiffsEmptyForEqualStats(t *testing.T) {
	a := testConn(1, "x", "y", 1, 2, 10, 100, 200, 50)
	b := a
	diffs := streamDiffs(match.Pair{A: &a, B: &b})
	require.Empty(t, diffs)
}
