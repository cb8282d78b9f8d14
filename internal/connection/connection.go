// Package connection turns per-packet capture fields into stable
// TCPConnection records: client/server identification plus the feature
// attributes the matcher scores on.
package connection

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// PortClass buckets a port number by IANA range.
type PortClass string

const (
	PortWellKnown  PortClass = "well-known"
	PortRegistered PortClass = "registered"
	PortEphemeral  PortClass = "ephemeral"
)

// ClassifyPort maps a port to its IANA class.
func ClassifyPort(port int) PortClass {
	switch {
	case port < 1024:
		return PortWellKnown
	case port <= 49151:
		return PortRegistered
	default:
		return PortEphemeral
	}
}

// TCPConnection is the per-stream record used for cross-capture matching.
// The client is the originator of the SYN; when no SYN was captured, the
// side with the ephemeral (or higher) port is taken as client.
type TCPConnection struct {
	StreamID   int
	ClientIP   string
	ServerIP   string
	ClientPort int
	ServerPort int

	FirstTS float64
	LastTS  float64

	TotalBytes   int64
	TotalPackets int

	// Bytes and packets carried in each direction, client-to-server and
	// reverse.
	ClientBytes   int64
	ServerBytes   int64
	ClientPackets int
	ServerPackets int

	// IPIDs observed on packets sent by the client.
	IPIDSet map[uint16]bool

	// Canonicalised TCP options hex from the SYN, empty when no SYN was
	// captured.
	SynOptions string

	// Stable hash over the leading payload bytes of each direction.
	PayloadHash string

	ClientPortClass PortClass
}

// Duration is the connection's observed lifetime in seconds.
func (c *TCPConnection) Duration() float64 {
	return c.LastTS - c.FirstTS
}

// SortedIPIDs returns the IPID set in ascending order, for deterministic
// output and set-overlap computation.
func (c *TCPConnection) SortedIPIDs() []uint16 {
	ids := maps.Keys(c.IPIDSet)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Endpoint strings for report output.
func (c *TCPConnection) ClientEndpoint() string {
	return fmt.Sprintf("%s:%d", c.ClientIP, c.ClientPort)
}

func (c *TCPConnection) ServerEndpoint() string {
	return fmt.Sprintf("%s:%d", c.ServerIP, c.ServerPort)
}
