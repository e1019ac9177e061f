// 文件: pkg/idgen/idgen.go
// Internal id minting: snowflake for ordered int64 ids, uuid for
// idempotency/correlation tokens.

package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
)

// Init configures the snowflake node used by Generate. nodeID must be
// stable per running instance (0-1023); call once at boot.
func Init(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// Generate mints a new internal id. Falls back to node 0 if Init was
// never called.
func Generate() int64 {
	if node == nil {
		Init(0)
	}
	return node.Generate().Int64()
}

// Token mints a deterministic idempotency token for an outbound
// side-effecting call (chat send, release request): the same
// (txnID, step) pair always mints the same token, so a tick that
// retries the same step is recognized as a duplicate send rather than
// minting a fresh one that the platform would execute twice. step
// should name the specific action within the transaction, e.g.
// "release" or "chat-step-3".
func Token(txnID int64, step string) string {
	name := fmt.Sprintf("%d:%s", txnID, step)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// PlaceholderAdID builds the sentinel advertisement id used when an order
// is discovered with no resolvable advertisement.
func PlaceholderAdID(orderID string) string {
	return "temp_" + orderID
}
