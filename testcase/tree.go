package testcase

import (
	"fmt"
	"strings"
	"sync"
)

// NodeID addresses a node in a Tree.
type NodeID int

// Owner identifies a position that holds an ordered list of nodes: the root list, the
// finally chain, or a container node.
type Owner struct {
	kind ownerKind
	node NodeID
}

type ownerKind int

const (
	rootOwner ownerKind = iota
	finallyOwner
	nodeOwner
)

// Root is the owner of the test case's main action list.
func Root() Owner { return Owner{kind: rootOwner} }

// Finally is the owner of the finally chain.
func Finally() Owner { return Owner{kind: finallyOwner} }

// In is the owner for the children of a container node.
func In(id NodeID) Owner { return Owner{kind: nodeOwner, node: id} }

func (o Owner) String() string {
	switch o.kind {
	case rootOwner:
		return "root"
	case finallyOwner:
		return "finally"
	default:
		return fmt.Sprintf("node %d", o.node)
	}
}

type node struct {
	action   Action
	owner    Owner
	children []NodeID
	sealed   bool
	executed bool
}

// Tree is an arena of actions. Every node is owned by exactly one position, and moving a
// node removes it from its previous owner's list.
//
// A container is sealed when it starts executing; after that its child list cannot change.
// A node that has executed cannot be moved. Tree is safe for concurrent use, since Parallel
// branches mark nodes as they run.
type Tree struct {
	nodes   []node
	root    []NodeID
	finally []NodeID
	lock    sync.RWMutex
}

// NewTree returns an empty Tree.
func NewTree() *Tree { return &Tree{} }

// Append adds an action at the end of owner's list.
func (t *Tree) Append(owner Owner, action Action) (NodeID, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.checkTarget(owner); err != nil {
		return 0, err
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{action: action, owner: owner})
	t.addToOwner(owner, id)
	return id, nil
}

// Move transfers a node, with its subtree, to the end of newOwner's list.
func (t *Tree) Move(id NodeID, newOwner Owner) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.valid(id) {
		return configError("cannot move node %d: no such node", id)
	}
	if t.anyExecuted(id) {
		return configError("cannot move %q: it has already executed", t.nodes[id].action.Name())
	}
	if err := t.checkTarget(newOwner); err != nil {
		return err
	}
	if newOwner.kind == nodeOwner {
		for n := newOwner; n.kind == nodeOwner; n = t.nodes[n.node].owner {
			if n.node == id {
				return configError("cannot move %q into itself or one of its descendants", t.nodes[id].action.Name())
			}
		}
	}
	old := t.nodes[id].owner
	if old.kind == nodeOwner && t.nodes[old.node].sealed {
		return configError("cannot move %q out of %q: it has started executing",
			t.nodes[id].action.Name(), t.nodes[old.node].action.Name())
	}
	list := t.listOf(old)
	for i, c := range *list {
		if c == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			break
		}
	}
	t.nodes[id].owner = newOwner
	t.addToOwner(newOwner, id)
	return nil
}

// Action returns the action of a node.
func (t *Tree) Action(id NodeID) Action {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.nodes[id].action
}

// Owner returns the current owner of a node.
func (t *Tree) Owner(id NodeID) Owner {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.nodes[id].owner
}

// Children returns a copy of owner's list.
func (t *Tree) Children(owner Owner) []NodeID {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if owner.kind == nodeOwner && !t.valid(owner.node) {
		return nil
	}
	return append([]NodeID(nil), *t.listOf(owner)...)
}

// Len returns the number of nodes ever added.
func (t *Tree) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.nodes)
}

// Seal freezes a container's child list.
func (t *Tree) Seal(id NodeID) {
	t.lock.Lock()
	t.nodes[id].sealed = true
	t.lock.Unlock()
}

// MarkExecuted records that a node has started executing.
func (t *Tree) MarkExecuted(id NodeID) {
	t.lock.Lock()
	t.nodes[id].executed = true
	t.lock.Unlock()
}

// Executed returns true if the node has started executing.
func (t *Tree) Executed(id NodeID) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.nodes[id].executed
}

// Outline renders the structure of the tree, one node per line, indented by depth. Two
// trees with the same actions in the same arrangement have the same outline.
func (t *Tree) Outline() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	var b strings.Builder
	var walk func(ids []NodeID, depth int)
	walk = func(ids []NodeID, depth int) {
		for _, id := range ids {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(t.nodes[id].action.Name())
			b.WriteString("\n")
			walk(t.nodes[id].children, depth+1)
		}
	}
	b.WriteString("root\n")
	walk(t.root, 1)
	if len(t.finally) > 0 {
		b.WriteString("finally\n")
		walk(t.finally, 1)
	}
	return b.String()
}

func (t *Tree) valid(id NodeID) bool { return id >= 0 && int(id) < len(t.nodes) }

func (t *Tree) checkTarget(owner Owner) error {
	if owner.kind != nodeOwner {
		return nil
	}
	if !t.valid(owner.node) {
		return configError("no such node %d", owner.node)
	}
	target := t.nodes[owner.node]
	if !IsContainer(target.action) {
		return configError("%q is not a container", target.action.Name())
	}
	if target.sealed {
		return configError("%q has started executing and can no longer be changed", target.action.Name())
	}
	return nil
}

func (t *Tree) anyExecuted(id NodeID) bool {
	if t.nodes[id].executed {
		return true
	}
	for _, c := range t.nodes[id].children {
		if t.anyExecuted(c) {
			return true
		}
	}
	return false
}

func (t *Tree) listOf(owner Owner) *[]NodeID {
	switch owner.kind {
	case rootOwner:
		return &t.root
	case finallyOwner:
		return &t.finally
	default:
		return &t.nodes[owner.node].children
	}
}

func (t *Tree) addToOwner(owner Owner, id NodeID) {
	list := t.listOf(owner)
	*list = append(*list, id)
}
