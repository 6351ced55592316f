package bookmarks

// SignalOp is the kind of a change signal published by the model.
type SignalOp int

const (
	// SignalInsert announces a node that just entered the tree.
	SignalInsert SignalOp = iota
	// SignalUpdate announces that a node's fields, position, or aggregate
	// stats may have changed. Ancestors of a changed node receive updates
	// too, so subscribers can key derived state off any folder.
	SignalUpdate
	// SignalDelete announces that a node left the tree.
	SignalDelete
	// SignalReset announces that the whole tree was reloaded and any
	// derived state must be rebuilt from scratch.
	SignalReset
)

// String returns the wire name of the op.
func (op SignalOp) String() string {
	switch op {
	case SignalInsert:
		return "insert"
	case SignalUpdate:
		return "update"
	case SignalDelete:
		return "delete"
	case SignalReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Signal is one element of the ordered change feed. Insert and Update carry
// a point-in-time copy of the node; Delete carries only the id; Reset
// carries neither. Signals within one batch are ordered so that replaying
// them against a copy of the previous tree state reproduces the new one.
type Signal struct {
	Op   SignalOp
	ID   NodeID
	Node *Node
}

func insertSignal(n *Node) Signal { return Signal{Op: SignalInsert, ID: n.ID, Node: n.clone()} }
func updateSignal(n *Node) Signal { return Signal{Op: SignalUpdate, ID: n.ID, Node: n.clone()} }
func deleteSignal(id NodeID) Signal { return Signal{Op: SignalDelete, ID: id} }
