package translator

import (
	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// GroupStack tracks the nesting of open beam groups while parsing,
// with separate stacks for regular and grace note groups. Pushing a
// group hangs it from the group currently on top, so the bottom of the
// stack is the root of the beamed subtree under construction.
type GroupStack struct {
	state   *ScoreState
	symbols *SymbolTable
	stacks  map[bool][]*mtn.NoteGroup
}

// NewGroupStack builds an empty stack bound to the translation state
// and symbol table.
func NewGroupStack(state *ScoreState, symbols *SymbolTable) *GroupStack {
	g := &GroupStack{state: state, symbols: symbols}
	g.Reset()
	return g
}

// NewLevel opens a nested beam group at the current time with a fresh
// beam token and pushes it.
func (g *GroupStack) NewLevel(grace bool) *mtn.NoteGroup {
	group := mtn.NewNoteGroup(
		g.state.CurrentTime(),
		nil,
		[]*mtn.Token{
			mtn.NewToken(
				mtn.TokenBeam,
				nil,
				mtn.AnyStaffPosition(),
				g.symbols.GiveIdentifier(),
			),
		},
	)
	g.Push(grace, group)
	return group
}

// Push adds a group to the stack, hanging it from the current top if
// there is one.
func (g *GroupStack) Push(grace bool, group *mtn.NoteGroup) {
	stack := g.stacks[grace]
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		top.Children = append(top.Children, group)
	}
	g.stacks[grace] = append(stack, group)
}

// Pop removes the top of the stack. Popping an empty stack means the
// input closed a beam that was never opened, which is a structural
// invariant violation.
func (g *GroupStack) Pop(grace bool) *mtn.NoteGroup {
	stack := g.stacks[grace]
	if len(stack) == 0 {
		panic("no note group present in the stack")
	}
	group := stack[len(stack)-1]
	g.stacks[grace] = stack[:len(stack)-1]
	return group
}

// Top returns the innermost open group, or nil.
func (g *GroupStack) Top(grace bool) *mtn.NoteGroup {
	stack := g.stacks[grace]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// Bottom returns the outermost open group, or nil.
func (g *GroupStack) Bottom(grace bool) *mtn.NoteGroup {
	stack := g.stacks[grace]
	if len(stack) == 0 {
		return nil
	}
	return stack[0]
}

// Length returns the number of open groups.
func (g *GroupStack) Length(grace bool) int {
	return len(g.stacks[grace])
}

// Reset empties both stacks.
func (g *GroupStack) Reset() {
	g.stacks = map[bool][]*mtn.NoteGroup{false: nil, true: nil}
}

// ResetGrace empties only one of the stacks.
func (g *GroupStack) ResetGrace(grace bool) {
	g.stacks[grace] = nil
}
