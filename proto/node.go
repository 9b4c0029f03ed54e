package proto

import (
	"strconv"
)

type NodeRole string

const (
	NodeRoleCoordinator NodeRole = "coordinator"
	NodeRoleBroker      NodeRole = "broker"
	NodeRoleHistorical  NodeRole = "historical"
)

type Node struct {
	Role   NodeRole `json:"role"`
	Host   string   `json:"host"`
	Port   int      `json:"port"`
	Leader bool     `json:"leader,omitempty"`
}

func (n *Node) Addr() string {
	if n.Port == 0 {
		return n.Host
	}
	return n.Host + ":" + strconv.Itoa(n.Port)
}

type ListNodesResponse struct {
	Nodes []Node `json:"nodes"`
}

// ChangeItem is one versioned entry of the coordinator's change history.
// Payload is delivered verbatim to notification handlers.
type ChangeItem struct {
	Counter uint64          `json:"counter"`
	Payload RawNotification `json:"payload"`
}

type GetChangesResponse struct {
	Counter      uint64       `json:"counter"`
	ResetCounter bool         `json:"resetCounter"`
	Items        []ChangeItem `json:"items"`
}
