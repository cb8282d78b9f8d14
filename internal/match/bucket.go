package match

import (
	"fmt"
	"strconv"

	"github.com/serialx/hashring"

	"github.com/rickypin/capmaster/internal/connection"
	"github.com/rickypin/capmaster/util"
)

// BucketKey selects how candidate pairs are partitioned before scoring, so
// the matcher never scores the full |A|x|B| cross product.
type BucketKey string

const (
	// BucketServerPort groups by server port, the most stable
	// request-response feature across hops. Default.
	BucketServerPort BucketKey = "server-port"

	// BucketPortPair groups by the (client, server) port pair.
	BucketPortPair BucketKey = "port-pair"

	// BucketHash distributes connections over a fixed ring of hash buckets
	// keyed by server endpoint, for traffic where port semantics are
	// unreliable.
	BucketHash BucketKey = "hash"
)

// ParseBucketKey validates a user-supplied bucket strategy name.
func ParseBucketKey(s string) (BucketKey, error) {
	switch BucketKey(s) {
	case BucketServerPort, BucketPortPair, BucketHash:
		return BucketKey(s), nil
	default:
		return "", util.NewConfigError("unknown bucket strategy: "+s, "recognised strategies: server-port, port-pair, hash")
	}
}

// defaultHashBuckets sizes the hash ring when the caller does not.
const defaultHashBuckets = 16

// bucketer maps connections to bucket labels under one strategy.
type bucketer struct {
	key  BucketKey
	ring *hashring.HashRing
}

func newBucketer(key BucketKey, hashBuckets int) *bucketer {
	b := &bucketer{key: key}
	if key == BucketHash {
		if hashBuckets <= 0 {
			hashBuckets = defaultHashBuckets
		}
		nodes := make([]string, hashBuckets)
		for i := range nodes {
			nodes[i] = "bucket-" + strconv.Itoa(i)
		}
		b.ring = hashring.New(nodes)
	}
	return b
}

func (b *bucketer) bucketOf(c *connection.TCPConnection) string {
	switch b.key {
	case BucketPortPair:
		return fmt.Sprintf("%d:%d", c.ClientPort, c.ServerPort)
	case BucketHash:
		node, ok := b.ring.GetNode(c.ServerEndpoint())
		if !ok {
			return "bucket-0"
		}
		return node
	default:
		return strconv.Itoa(c.ServerPort)
	}
}

// group partitions connections by bucket label.
func (b *bucketer) group(conns []connection.TCPConnection) map[string][]*connection.TCPConnection {
	out := make(map[string][]*connection.TCPConnection)
	for i := range conns {
		c := &conns[i]
		label := b.bucketOf(c)
		out[label] = append(out[label], c)
	}
	return out
}
