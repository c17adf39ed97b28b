package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// DefaultNodeID is used when New is called before Init.
const DefaultNodeID int64 = 0

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has any effect; the server and the worker must use
// different node IDs so their call IDs never collide.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered and unique across distributed instances.
func New() int64 {
	return generate().Int64()
}

// NewCallID returns a call identifier of the form "call_<base36 snowflake>".
func NewCallID() string {
	return "call_" + generate().Base36()
}

func generate() snowflake.ID {
	if err := Init(DefaultNodeID); err != nil {
		panic("snowflake node unavailable: " + err.Error())
	}
	return node.Generate()
}
