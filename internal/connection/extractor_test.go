package connection

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldLine(stream int, ts float64, srcIP string, srcPort int, dstIP string, dstPort int, syn, ack string, ipid string, tcpLen int, options, payload string) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", stream),
		fmt.Sprintf("%f", ts),
		srcIP,
		fmt.Sprintf("%d", srcPort),
		dstIP,
		fmt.Sprintf("%d", dstPort),
		syn, ack, ipid,
		fmt.Sprintf("%d", tcpLen),
		options, payload,
	}, "\t")
}

func aggregate(t *testing.T, lines ...string) []TCPConnection {
	t.Helper()
	agg := newAggregator(DefaultPayloadPrefix)
	for _, line := range lines {
		rec, ok := parseRecord(line)
		require.True(t, ok, "line should parse: %s", line)
		agg.add(rec)
	}
	return agg.finalize()
}

func TestClientIsSynSender(t *testing.T) {
	conns := aggregate(t,
		// Server's SYN-ACK observed first; SYN identifies the true client.
		fieldLine(3, 100.1, "10.0.0.2", 443, "10.0.0.1", 50000, "1", "1", "0x0002", 0, "", ""),
		fieldLine(3, 100.0, "10.0.0.1", 50000, "10.0.0.2", 443, "1", "0", "0x0001", 0, "02:04:05:b4", ""),
		fieldLine(3, 100.2, "10.0.0.1", 50000, "10.0.0.2", 443, "0", "1", "0x0003", 100, "", "474554202f"),
	)
	require.Len(t, conns, 1)

	c := conns[0]
	assert.Equal(t, "10.0.0.1", c.ClientIP)
	assert.Equal(t, 50000, c.ClientPort)
	assert.Equal(t, "10.0.0.2", c.ServerIP)
	assert.Equal(t, 443, c.ServerPort)
	assert.Equal(t, "0204 05b4", maskSpaces(c.SynOptions))
	assert.Equal(t, PortEphemeral, c.ClientPortClass)
	assert.Equal(t, 3, c.TotalPackets)
	assert.Equal(t, int64(100), c.TotalBytes)
	assert.Equal(t, int64(100), c.ClientBytes)
	assert.Equal(t, 100.0, c.FirstTS)
	assert.Equal(t, 100.2, c.LastTS)
	assert.LessOrEqual(t, c.FirstTS, c.LastTS)
}

// maskSpaces makes the canonical options comparison readable in the test.
func maskSpaces(s string) string {
	if len(s) == 8 {
		return s[:4] + " " + s[4:]
	}
	return s
}

func TestNoSynWellKnownPortIsServer(t *testing.T) {
	conns := aggregate(t,
		// Mid-stream capture, server-to-client packet first.
		fieldLine(0, 50.0, "192.168.1.10", 80, "192.168.1.20", 41000, "0", "1", "0x1111", 500, "", ""),
		fieldLine(0, 50.1, "192.168.1.20", 41000, "192.168.1.10", 80, "0", "1", "0x2222", 0, "", ""),
	)
	require.Len(t, conns, 1)

	c := conns[0]
	assert.Equal(t, "192.168.1.20", c.ClientIP)
	assert.Equal(t, 80, c.ServerPort)
	assert.Equal(t, int64(500), c.ServerBytes)
	assert.Equal(t, int64(0), c.ClientBytes)
}

func TestNoSynHigherPortIsClient(t *testing.T) {
	conns := aggregate(t,
		fieldLine(1, 10.0, "10.1.1.1", 5000, "10.1.1.2", 60000, "0", "1", "", 10, "", ""),
	)
	require.Len(t, conns, 1)
	assert.Equal(t, 60000, conns[0].ClientPort)
	assert.Equal(t, 5000, conns[0].ServerPort)
}

func TestIPIDSetIsClientSideOnly(t *testing.T) {
	conns := aggregate(t,
		fieldLine(2, 1.0, "10.0.0.1", 50000, "10.0.0.2", 443, "1", "0", "0x0001", 0, "", ""),
		fieldLine(2, 1.1, "10.0.0.1", 50000, "10.0.0.2", 443, "0", "1", "0x0002", 10, "", ""),
		fieldLine(2, 1.2, "10.0.0.2", 443, "10.0.0.1", 50000, "0", "1", "0x9999", 10, "", ""),
	)
	require.Len(t, conns, 1)
	assert.Equal(t, []uint16{1, 2}, conns[0].SortedIPIDs())
}

func TestPayloadHashStableAndDirectional(t *testing.T) {
	mk := func(clientPayload, serverPayload string) TCPConnection {
		conns := aggregate(t,
			fieldLine(9, 1.0, "10.0.0.1", 50000, "10.0.0.2", 443, "1", "0", "0x01", 0, "", ""),
			fieldLine(9, 1.1, "10.0.0.1", 50000, "10.0.0.2", 443, "0", "1", "0x02", 4, "", clientPayload),
			fieldLine(9, 1.2, "10.0.0.2", 443, "10.0.0.1", 50000, "0", "1", "0x03", 4, "", serverPayload),
		)
		require.Len(t, conns, 1)
		return conns[0]
	}

	a := mk("deadbeef", "cafef00d")
	b := mk("deadbeef", "cafef00d")
	c := mk("cafef00d", "deadbeef")

	assert.NotEmpty(t, a.PayloadHash)
	assert.Equal(t, a.PayloadHash, b.PayloadHash)
	assert.NotEqual(t, a.PayloadHash, c.PayloadHash, "direction order must matter")
}

func TestParseRecordRejectsMalformed(t *testing.T) {
	_, ok := parseRecord("not\tenough\tfields")
	assert.False(t, ok)

	_, ok = parseRecord(fieldLine(0, 1.0, "a", 1, "b", 2, "0", "0", "", 0, "", "") + "\textra")
	assert.True(t, ok, "extra trailing fields are tolerated")

	bad := strings.Replace(fieldLine(0, 1.0, "a", 1, "b", 2, "0", "0", "", 0, "", ""), "0\t1.0", "x\t1.0", 1)
	_, ok = parseRecord(bad)
	assert.False(t, ok)
}

func TestParseIPID(t *testing.T) {
	v, err := parseIPID("0x1a2b")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1a2b), v)

	v, err = parseIPID("4660")
	require.NoError(t, err)
	assert.Equal(t, uint16(4660), v)

	v, err = parseIPID("0x0001,0x0002")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), v)
}

func TestClassifyPort(t *testing.T) {
	assert.Equal(t, PortWellKnown, ClassifyPort(80))
	assert.Equal(t, PortRegistered, ClassifyPort(8080))
	assert.Equal(t, PortEphemeral, ClassifyPort(49152))
}
