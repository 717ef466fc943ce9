package mtn

import (
	"fmt"
	"maps"
	"math/big"
	"sort"
	"strconv"
)

// Visitor performs an operation over every kind of syntax node. Accept
// on a node dispatches to the matching method.
type Visitor interface {
	VisitScore(score *Score) any
	VisitMeasure(measure *Measure) any
	VisitBarline(barline *Barline) any
	VisitAttributes(attributes *Attributes) any
	VisitTimeSignature(timesig *TimeSignature) any
	VisitTimesigFraction(fraction *TimesigFraction) any
	VisitNumerator(numerator *Numerator) any
	VisitDenominator(denominator *Denominator) any
	VisitNumber(number *Number) any
	VisitKey(key *Key) any
	VisitClef(clef *Clef) any
	VisitDirection(direction *Direction) any
	VisitRest(rest *Rest) any
	VisitNoteGroup(group *NoteGroup) any
	VisitChord(chord *Chord) any
	VisitNote(note *Note) any
	VisitToken(token *Token) any
	VisitTuplet(tuplet *Tuplet) any
}

// Apply runs a visitor over an arbitrary subtree root.
func Apply(v Visitor, node SyntaxNode) any {
	return node.Accept(v)
}

// SyntaxNode is any node of the MTN tree. Compare checks structural
// equality ignoring token identifiers; Diff does the same but reports
// the first mismatch it finds.
type SyntaxNode interface {
	Accept(v Visitor) any
	Compare(other SyntaxNode) bool
	Diff(other SyntaxNode) error
}

func compareNodes[T SyntaxNode](base, other []T) bool {
	if len(base) != len(other) {
		return false
	}
	for i := range base {
		if !base[i].Compare(other[i]) {
			return false
		}
	}
	return true
}

func diffNodes[T SyntaxNode](base, other []T, what string) error {
	if len(base) != len(other) {
		return fmt.Errorf("%s: %d elements, want %d", what, len(other), len(base))
	}
	for i := range base {
		if err := base[i].Diff(other[i]); err != nil {
			return fmt.Errorf("%s[%d]: %w", what, i, err)
		}
	}
	return nil
}

func compareMaybe[P interface {
	SyntaxNode
	comparable
}](base, other P) bool {
	var zero P
	if base == zero || other == zero {
		return (base == zero) == (other == zero)
	}
	return base.Compare(other)
}

func diffMaybe[P interface {
	SyntaxNode
	comparable
}](base, other P, what string) error {
	var zero P
	if (base == zero) != (other == zero) {
		return fmt.Errorf("%s: presence mismatch", what)
	}
	if base == zero {
		return nil
	}
	if err := base.Diff(other); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// TopLevel is any element that lies directly within a measure. All top
// level elements carry a delta, the time elapsed since the start of
// the measure in beats.
type TopLevel interface {
	SyntaxNode
	Delta() *big.Rat
	SetDelta(delta *big.Rat)
	Position() StaffPosition
	precedence() int
}

type toplevel struct {
	delta *big.Rat
}

func (t *toplevel) Delta() *big.Rat {
	return t.delta
}

func (t *toplevel) SetDelta(delta *big.Rat) {
	t.delta = delta
}

func (t *toplevel) diffDelta(other TopLevel) error {
	if t.delta.Cmp(other.Delta()) != 0 {
		return fmt.Errorf(
			"expected delta %s, got %s", t.delta.RatString(), other.Delta().RatString(),
		)
	}
	return nil
}

// LessTopLevel establishes the canonical ordering of measure elements:
// by delta, then by element kind, then by staff position. Note groups
// at the same position order stem-up first.
func LessTopLevel(a, b TopLevel) bool {
	if c := a.Delta().Cmp(b.Delta()); c != 0 {
		return c < 0
	}
	if a.precedence() != b.precedence() {
		return a.precedence() < b.precedence()
	}
	if a.Position().Key() != b.Position().Key() {
		return a.Position().Key() < b.Position().Key()
	}
	ga, aok := a.(*NoteGroup)
	gb, bok := b.(*NoteGroup)
	if aok && bok {
		return ga.FirstChord().IsStemUp() && !gb.FirstChord().IsStemUp()
	}
	return false
}

// Token is a single primitive object instance within the tree.
type Token struct {
	TokenType TokenType
	Modifiers map[string]string
	Position  StaffPosition
	ID        int
}

// NewToken builds a token. A nil modifier map is normalized to an
// empty one.
func NewToken(tt TokenType, modifiers map[string]string, position StaffPosition, id int) *Token {
	if modifiers == nil {
		modifiers = map[string]string{}
	}
	return &Token{TokenType: tt, Modifiers: modifiers, Position: position, ID: id}
}

// Copy performs a deep copy of the token.
func (t *Token) Copy() *Token {
	return NewToken(t.TokenType, maps.Clone(t.Modifiers), t.Position, t.ID)
}

func (t *Token) String() string {
	out := string(t.TokenType)
	if typ, ok := t.Modifiers["type"]; ok {
		out += "_" + typ
	}
	return out
}

// sortKey orders tokens by type and then by type modifier, which is
// the canonical ordering of direction and notation markings.
func (t *Token) sortKey() string {
	if typ, ok := t.Modifiers["type"]; ok {
		return string(t.TokenType) + "_" + typ
	}
	return ""
}

func (t *Token) Accept(v Visitor) any {
	return v.VisitToken(t)
}

func (t *Token) Compare(other SyntaxNode) bool {
	o, ok := other.(*Token)
	if !ok {
		return false
	}
	return t.TokenType == o.TokenType &&
		t.Position.Equal(o.Position) &&
		maps.Equal(t.Modifiers, o.Modifiers)
}

func (t *Token) Diff(other SyntaxNode) error {
	o, ok := other.(*Token)
	if !ok {
		return fmt.Errorf("expected token, got %T", other)
	}
	if t.TokenType != o.TokenType {
		return fmt.Errorf("expected token type %q, got %q", t.TokenType, o.TokenType)
	}
	if !t.Position.Equal(o.Position) {
		return fmt.Errorf("expected token position %s, got %s", t.Position, o.Position)
	}
	if !maps.Equal(t.Modifiers, o.Modifiers) {
		return fmt.Errorf(
			"expected token modifiers %v, got %v", t.Modifiers, o.Modifiers,
		)
	}
	return nil
}

// Note groups all the tokens related to a single notehead.
type Note struct {
	Notehead    *Token
	Dots        []*Token
	Accidentals []*Token
	Modifiers   []SyntaxNode // Token or Tuplet
	Parent      *Chord
}

func NewNote(notehead *Token, dots, accidentals []*Token, modifiers []SyntaxNode) *Note {
	return &Note{
		Notehead:    notehead,
		Dots:        dots,
		Accidentals: accidentals,
		Modifiers:   modifiers,
	}
}

func (n *Note) Accept(v Visitor) any {
	return v.VisitNote(n)
}

func (n *Note) Compare(other SyntaxNode) bool {
	o, ok := other.(*Note)
	if !ok {
		return false
	}
	return n.Notehead.Compare(o.Notehead) &&
		compareNodes(n.Dots, o.Dots) &&
		compareNodes(n.Accidentals, o.Accidentals) &&
		compareNodes(n.Modifiers, o.Modifiers)
}

func (n *Note) Diff(other SyntaxNode) error {
	o, ok := other.(*Note)
	if !ok {
		return fmt.Errorf("expected note, got %T", other)
	}
	if err := n.Notehead.Diff(o.Notehead); err != nil {
		return fmt.Errorf("notehead: %w", err)
	}
	if err := diffNodes(n.Dots, o.Dots, "dots"); err != nil {
		return err
	}
	if err := diffNodes(n.Accidentals, o.Accidentals, "accidentals"); err != nil {
		return err
	}
	return diffNodes(n.Modifiers, o.Modifiers, "modifiers")
}

// Position is where the notehead sits, used for in-chord sorting.
func (n *Note) Position() StaffPosition {
	return n.Notehead.Position
}

// GetDelta returns the measure-relative time of the enclosing chord,
// if the note belongs to one.
func (n *Note) GetDelta() (*big.Rat, bool) {
	if n.Parent != nil {
		return n.Parent.Delta, true
	}
	return nil, false
}

// GroupChild is either a chord or a nested note group.
type GroupChild interface {
	SyntaxNode
	FirstChord() *Chord
	Position() StaffPosition
}

// Chord is a set of notes playing together under a single stem.
type Chord struct {
	Delta *big.Rat
	Stem  *Token
	Notes []*Note
}

// NewChord builds a chord from at least one note. Chords without
// notes are structurally invalid.
func NewChord(delta *big.Rat, stem *Token, notes []*Note) *Chord {
	if len(notes) == 0 {
		panic("chord without notes")
	}
	c := &Chord{Delta: delta, Stem: stem, Notes: notes}
	for _, note := range c.Notes {
		note.Parent = c
	}
	return c
}

func (c *Chord) Accept(v Visitor) any {
	return v.VisitChord(c)
}

func (c *Chord) Compare(other SyntaxNode) bool {
	o, ok := other.(*Chord)
	if !ok {
		return false
	}
	return compareMaybe(c.Stem, o.Stem) &&
		c.Delta.Cmp(o.Delta) == 0 &&
		compareNodes(c.Notes, o.Notes)
}

func (c *Chord) Diff(other SyntaxNode) error {
	o, ok := other.(*Chord)
	if !ok {
		return fmt.Errorf("expected chord, got %T", other)
	}
	if c.Delta.Cmp(o.Delta) != 0 {
		return fmt.Errorf(
			"expected chord delta %s, got %s", c.Delta.RatString(), o.Delta.RatString(),
		)
	}
	if err := diffMaybe(c.Stem, o.Stem, "stem"); err != nil {
		return err
	}
	return diffNodes(c.Notes, o.Notes, "notes")
}

// AddNote inserts a note keeping the chord sorted by staff position.
func (c *Chord) AddNote(note *Note) {
	note.Parent = c
	c.Notes = append(c.Notes, note)
	sort.SliceStable(c.Notes, func(i, j int) bool {
		return c.Notes[i].Position().Key() < c.Notes[j].Position().Key()
	})
}

// FirstNote returns the lowest-position note of the chord.
func (c *Chord) FirstNote() *Note {
	return c.Notes[0]
}

// FirstChord lets a chord act as its own group child.
func (c *Chord) FirstChord() *Chord {
	return c
}

func (c *Chord) Position() StaffPosition {
	return c.FirstNote().Position()
}

// IsStemUp reports whether the chord stem points upwards.
func (c *Chord) IsStemUp() bool {
	if c.Stem == nil {
		return false
	}
	return c.Stem.Modifiers["type"] == string(StemUp)
}

// Rest is a silence within a voice.
type Rest struct {
	toplevel
	RestToken *Token
	Dots      []*Token
	Modifiers []SyntaxNode // Token or Tuplet
}

func NewRest(delta *big.Rat, restToken *Token, dots []*Token, modifiers []SyntaxNode) *Rest {
	return &Rest{
		toplevel:  toplevel{delta: delta},
		RestToken: restToken,
		Dots:      dots,
		Modifiers: modifiers,
	}
}

// RestType is the note type the rest was written as.
func (r *Rest) RestType() NoteType {
	return NoteType(r.RestToken.Modifiers["type"])
}

func (r *Rest) Accept(v Visitor) any {
	return v.VisitRest(r)
}

func (r *Rest) Compare(other SyntaxNode) bool {
	o, ok := other.(*Rest)
	if !ok {
		return false
	}
	return r.delta.Cmp(o.delta) == 0 &&
		r.RestToken.Compare(o.RestToken) &&
		compareNodes(r.Dots, o.Dots) &&
		compareNodes(r.Modifiers, o.Modifiers)
}

func (r *Rest) Diff(other SyntaxNode) error {
	o, ok := other.(*Rest)
	if !ok {
		return fmt.Errorf("expected rest, got %T", other)
	}
	if err := r.diffDelta(o); err != nil {
		return err
	}
	if err := r.RestToken.Diff(o.RestToken); err != nil {
		return fmt.Errorf("rest token: %w", err)
	}
	if err := diffNodes(r.Dots, o.Dots, "dots"); err != nil {
		return err
	}
	return diffNodes(r.Modifiers, o.Modifiers, "modifiers")
}

func (r *Rest) Position() StaffPosition {
	return r.RestToken.Position
}

func (r *Rest) precedence() int { return 4 }

// NoteGroup is a set of chords or nested groups joined by beams or
// flags.
type NoteGroup struct {
	toplevel
	Children   []GroupChild
	Appendages []*Token // beam or flag tokens
}

func NewNoteGroup(delta *big.Rat, children []GroupChild, appendages []*Token) *NoteGroup {
	return &NoteGroup{
		toplevel:   toplevel{delta: delta},
		Children:   children,
		Appendages: appendages,
	}
}

func (g *NoteGroup) Accept(v Visitor) any {
	return v.VisitNoteGroup(g)
}

func (g *NoteGroup) Compare(other SyntaxNode) bool {
	o, ok := other.(*NoteGroup)
	if !ok {
		return false
	}
	return g.delta.Cmp(o.delta) == 0 &&
		compareNodes(g.Children, o.Children) &&
		compareNodes(g.Appendages, o.Appendages)
}

func (g *NoteGroup) Diff(other SyntaxNode) error {
	o, ok := other.(*NoteGroup)
	if !ok {
		return fmt.Errorf("expected note group, got %T", other)
	}
	if err := g.diffDelta(o); err != nil {
		return err
	}
	if err := diffNodes(g.Children, o.Children, "children"); err != nil {
		return err
	}
	return diffNodes(g.Appendages, o.Appendages, "appendages")
}

func (g *NoteGroup) Position() StaffPosition {
	return g.FirstChord().Position()
}

func (g *NoteGroup) precedence() int { return 5 }

// Merge combines the children and appendages of another group into
// this one.
func (g *NoteGroup) Merge(other *NoteGroup) *NoteGroup {
	g.Children = append(g.Children, other.Children...)
	g.Appendages = append(g.Appendages, other.Appendages...)
	return g
}

// Absorb replaces the children of this group with a child group's,
// keeping both groups' appendages.
func (g *NoteGroup) Absorb(other *NoteGroup) *NoteGroup {
	g.Children = other.Children
	g.Appendages = append(g.Appendages, other.Appendages...)
	return g
}

// Simplify collapses single-child nesting recursively.
func (g *NoteGroup) Simplify() {
	for _, child := range g.Children {
		if sub, ok := child.(*NoteGroup); ok {
			sub.Simplify()
		}
	}
	if len(g.Children) == 1 {
		if sub, ok := g.Children[0].(*NoteGroup); ok {
			g.Absorb(sub)
		}
	}
}

// FirstChord returns the first chord of the group however deeply
// nested.
func (g *NoteGroup) FirstChord() *Chord {
	return g.Children[0].FirstChord()
}

// Tuplet is a tuplet bracket with an optional ratio number.
type Tuplet struct {
	Number      *Number
	TupletToken *Token
}

func NewTuplet(number *Number, token *Token) *Tuplet {
	return &Tuplet{Number: number, TupletToken: token}
}

func (t *Tuplet) Accept(v Visitor) any {
	return v.VisitTuplet(t)
}

func (t *Tuplet) Compare(other SyntaxNode) bool {
	o, ok := other.(*Tuplet)
	if !ok {
		return false
	}
	return compareMaybe(t.Number, o.Number) && t.TupletToken.Compare(o.TupletToken)
}

func (t *Tuplet) Diff(other SyntaxNode) error {
	o, ok := other.(*Tuplet)
	if !ok {
		return fmt.Errorf("expected tuplet, got %T", other)
	}
	if err := diffMaybe(t.Number, o.Number, "tuplet number"); err != nil {
		return err
	}
	if err := t.TupletToken.Diff(o.TupletToken); err != nil {
		return fmt.Errorf("tuplet token: %w", err)
	}
	return nil
}

// Attributes gathers the key, clef and time signature state for every
// staff at a point in time. Staves are numbered from one; a nil entry
// means no change on that staff.
type Attributes struct {
	toplevel
	NStaves  int
	Keys     map[int]*Key
	Clefs    map[int]*Clef
	Timesigs map[int]*TimeSignature
}

func NewAttributes(
	delta *big.Rat,
	nstaves int,
	keys map[int]*Key,
	clefs map[int]*Clef,
	timesigs map[int]*TimeSignature,
) *Attributes {
	if len(keys) != nstaves || len(clefs) != nstaves || len(timesigs) != nstaves {
		panic("uneven number of staves in attributes")
	}
	return &Attributes{
		toplevel: toplevel{delta: delta},
		NStaves:  nstaves,
		Keys:     keys,
		Clefs:    clefs,
		Timesigs: timesigs,
	}
}

// MakeEmptyAttributes builds an attributes object for a number of
// staves, either blank or populated with notation defaults.
func MakeEmptyAttributes(nstaves int, delta *big.Rat, initDefault bool) *Attributes {
	keys := make(map[int]*Key, nstaves)
	clefs := make(map[int]*Clef, nstaves)
	timesigs := make(map[int]*TimeSignature, nstaves)
	for staff := 1; staff <= nstaves; staff++ {
		if initDefault {
			keys[staff] = DefaultKey()
			clefs[staff] = DefaultClef(staff)
			timesigs[staff] = DefaultTimesig()
		} else {
			keys[staff] = nil
			clefs[staff] = nil
			timesigs[staff] = nil
		}
	}
	return NewAttributes(delta, nstaves, keys, clefs, timesigs)
}

// Copy makes a shallow copy with fresh staff maps.
func (a *Attributes) Copy() *Attributes {
	return NewAttributes(
		a.delta,
		a.NStaves,
		maps.Clone(a.Keys),
		maps.Clone(a.Clefs),
		maps.Clone(a.Timesigs),
	)
}

// Merge overlays another attributes object on this one. Entries set in
// the other object win; everything else is kept.
func (a *Attributes) Merge(other *Attributes) {
	if a.NStaves != other.NStaves {
		panic("merging attributes with different number of staves")
	}
	a.delta = other.delta
	a.Keys = mergeStaffMap(a.Keys, other.Keys)
	a.Clefs = mergeStaffMap(a.Clefs, other.Clefs)
	a.Timesigs = mergeStaffMap(a.Timesigs, other.Timesigs)
}

func mergeStaffMap[T any](origin, target map[int]*T) map[int]*T {
	out := make(map[int]*T, len(origin))
	for staff := range origin {
		out[staff] = origin[staff]
	}
	for staff, v := range target {
		if v != nil {
			out[staff] = v
		} else if _, ok := out[staff]; !ok {
			out[staff] = nil
		}
	}
	return out
}

// ChangeStaves grows or shrinks the attribute maps to a new staff
// count.
func (a *Attributes) ChangeStaves(nstaves int, initDefault bool) {
	if nstaves > a.NStaves {
		for staff := a.NStaves + 1; staff <= nstaves; staff++ {
			if initDefault {
				a.Keys[staff] = DefaultKey()
				a.Clefs[staff] = DefaultClef(staff)
				a.Timesigs[staff] = DefaultTimesig()
			} else {
				a.Keys[staff] = nil
				a.Clefs[staff] = nil
				a.Timesigs[staff] = nil
			}
		}
	} else {
		for staff := range a.Keys {
			if staff > nstaves {
				delete(a.Keys, staff)
				delete(a.Clefs, staff)
				delete(a.Timesigs, staff)
			}
		}
	}
	a.NStaves = nstaves
}

func (a *Attributes) checkStaff(staff int) {
	if staff < 1 || staff > a.NStaves {
		panic(fmt.Sprintf("staff %d out of range (%d staves)", staff, a.NStaves))
	}
}

func (a *Attributes) SetKey(key *Key, staff int) {
	a.checkStaff(staff)
	a.Keys[staff] = key
}

func (a *Attributes) SetClef(clef *Clef, staff int) {
	a.checkStaff(staff)
	a.Clefs[staff] = clef
}

func (a *Attributes) SetTimesig(timesig *TimeSignature, staff int) {
	a.checkStaff(staff)
	a.Timesigs[staff] = timesig
}

func (a *Attributes) GetKey(staff int) *Key {
	a.checkStaff(staff)
	return a.Keys[staff]
}

func (a *Attributes) GetClef(staff int) *Clef {
	a.checkStaff(staff)
	return a.Clefs[staff]
}

func (a *Attributes) GetTimesig(staff int) *TimeSignature {
	a.checkStaff(staff)
	return a.Timesigs[staff]
}

func (a *Attributes) Accept(v Visitor) any {
	return v.VisitAttributes(a)
}

func (a *Attributes) Position() StaffPosition {
	return AnyStaffPosition()
}

func (a *Attributes) precedence() int { return 2 }

func sortedStaffValues[T any](m map[int]*T) []*T {
	staves := make([]int, 0, len(m))
	for staff := range m {
		staves = append(staves, staff)
	}
	sort.Ints(staves)
	out := make([]*T, 0, len(m))
	for _, staff := range staves {
		if m[staff] != nil {
			out = append(out, m[staff])
		}
	}
	return out
}

func keyTokenCount(keys []*Key) int {
	count := 0
	for _, key := range keys {
		count += len(key.Accidentals) + len(key.Naturals)
	}
	return count
}

func (a *Attributes) Compare(other SyntaxNode) bool {
	o, ok := other.(*Attributes)
	if !ok {
		return false
	}
	if a.delta.Cmp(o.delta) != 0 || a.NStaves != o.NStaves {
		return false
	}

	baseKeys := sortedStaffValues(a.Keys)
	otherKeys := sortedStaffValues(o.Keys)
	// Keys that carry no printed accidentals are considered equal even
	// when their bookkeeping differs.
	keysMatch := compareNodes(baseKeys, otherKeys) ||
		(keyTokenCount(baseKeys) == 0 && keyTokenCount(otherKeys) == 0)

	return keysMatch &&
		compareNodes(sortedStaffValues(a.Clefs), sortedStaffValues(o.Clefs)) &&
		compareNodes(sortedStaffValues(a.Timesigs), sortedStaffValues(o.Timesigs))
}

func (a *Attributes) Diff(other SyntaxNode) error {
	o, ok := other.(*Attributes)
	if !ok {
		return fmt.Errorf("expected attributes, got %T", other)
	}
	if err := a.diffDelta(o); err != nil {
		return err
	}

	baseKeys := sortedStaffValues(a.Keys)
	otherKeys := sortedStaffValues(o.Keys)
	if err := diffNodes(baseKeys, otherKeys, "keys"); err != nil {
		if keyTokenCount(baseKeys) != 0 || keyTokenCount(otherKeys) != 0 {
			return err
		}
	}
	if err := diffNodes(
		sortedStaffValues(a.Clefs), sortedStaffValues(o.Clefs), "clefs",
	); err != nil {
		return err
	}
	return diffNodes(
		sortedStaffValues(a.Timesigs), sortedStaffValues(o.Timesigs), "timesigs",
	)
}

// TimeSignature is the time signature on a single staff, either a
// single symbol or a compound fraction sequence. The time value is the
// measure duration it implies, in beats.
type TimeSignature struct {
	TimeSymbol *Token
	Compound   []SyntaxNode // TimesigFraction or Token
	TimeValue  *big.Rat
}

func NewTimeSignature(symbol *Token, compound []SyntaxNode, timeValue *big.Rat) *TimeSignature {
	if symbol != nil && compound != nil {
		panic("time signature with mixed types")
	}
	return &TimeSignature{TimeSymbol: symbol, Compound: compound, TimeValue: timeValue}
}

// DefaultTimesig is the fallback four-beat time signature.
func DefaultTimesig() *TimeSignature {
	return NewTimeSignature(nil, nil, Frac(4, 1))
}

func (ts *TimeSignature) Accept(v Visitor) any {
	return v.VisitTimeSignature(ts)
}

func (ts *TimeSignature) Compare(other SyntaxNode) bool {
	o, ok := other.(*TimeSignature)
	if !ok {
		return false
	}
	if ts.TimeValue.Cmp(o.TimeValue) != 0 {
		return false
	}
	if ts.Compound != nil && o.Compound != nil {
		return compareNodes(ts.Compound, o.Compound)
	}
	return compareMaybe(ts.TimeSymbol, o.TimeSymbol)
}

func (ts *TimeSignature) Diff(other SyntaxNode) error {
	o, ok := other.(*TimeSignature)
	if !ok {
		return fmt.Errorf("expected time signature, got %T", other)
	}
	if ts.TimeValue.Cmp(o.TimeValue) != 0 {
		return fmt.Errorf(
			"expected time value %s, got %s",
			ts.TimeValue.RatString(), o.TimeValue.RatString(),
		)
	}
	if ts.Compound != nil && o.Compound != nil {
		if err := diffNodes(ts.Compound, o.Compound, "compound"); err != nil {
			return err
		}
	}
	return diffMaybe(ts.TimeSymbol, o.TimeSymbol, "time symbol")
}

// TimesigFraction is one numerator/denominator pair of a time
// signature.
type TimesigFraction struct {
	Numerator   *Numerator
	Denominator *Denominator
}

func NewTimesigFraction(num *Numerator, den *Denominator) *TimesigFraction {
	return &TimesigFraction{Numerator: num, Denominator: den}
}

func (f *TimesigFraction) Accept(v Visitor) any {
	return v.VisitTimesigFraction(f)
}

func (f *TimesigFraction) Compare(other SyntaxNode) bool {
	o, ok := other.(*TimesigFraction)
	if !ok {
		return false
	}
	return f.Numerator.Compare(o.Numerator) && compareMaybe(f.Denominator, o.Denominator)
}

func (f *TimesigFraction) Diff(other SyntaxNode) error {
	o, ok := other.(*TimesigFraction)
	if !ok {
		return fmt.Errorf("expected timesig fraction, got %T", other)
	}
	if err := f.Numerator.Diff(o.Numerator); err != nil {
		return fmt.Errorf("numerator: %w", err)
	}
	return diffMaybe(f.Denominator, o.Denominator, "denominator")
}

// Value is the fraction as an exact rational.
func (f *TimesigFraction) Value() *big.Rat {
	if f.Denominator == nil {
		return Frac(int64(f.Numerator.Value()), 1)
	}
	return Frac(int64(f.Numerator.Value()), int64(f.Denominator.Value()))
}

// Numerator is a time signature numerator, possibly a sum of numbers
// joined by plus tokens.
type Numerator struct {
	Parts []SyntaxNode // Number or Token
}

func NewNumerator(parts []SyntaxNode) *Numerator {
	return &Numerator{Parts: parts}
}

func (n *Numerator) Accept(v Visitor) any {
	return v.VisitNumerator(n)
}

func (n *Numerator) Compare(other SyntaxNode) bool {
	o, ok := other.(*Numerator)
	if !ok {
		return false
	}
	return compareNodes(n.Parts, o.Parts)
}

func (n *Numerator) Diff(other SyntaxNode) error {
	o, ok := other.(*Numerator)
	if !ok {
		return fmt.Errorf("expected numerator, got %T", other)
	}
	return diffNodes(n.Parts, o.Parts, "numerator")
}

// Value sums every number part of the numerator.
func (n *Numerator) Value() int {
	value := 0
	for _, part := range n.Parts {
		if num, ok := part.(*Number); ok {
			value += num.Value()
		}
	}
	return value
}

// Denominator is a time signature denominator.
type Denominator struct {
	Digits *Number
}

func NewDenominator(digits *Number) *Denominator {
	return &Denominator{Digits: digits}
}

func (d *Denominator) Accept(v Visitor) any {
	return v.VisitDenominator(d)
}

func (d *Denominator) Compare(other SyntaxNode) bool {
	o, ok := other.(*Denominator)
	if !ok {
		return false
	}
	return d.Digits.Compare(o.Digits)
}

func (d *Denominator) Diff(other SyntaxNode) error {
	o, ok := other.(*Denominator)
	if !ok {
		return fmt.Errorf("expected denominator, got %T", other)
	}
	return d.Digits.Diff(o.Digits)
}

func (d *Denominator) Value() int {
	return d.Digits.Value()
}

// Number is a printed number made of digit tokens.
type Number struct {
	Digits []*Token
}

func NewNumber(digits []*Token) *Number {
	return &Number{Digits: digits}
}

func (n *Number) Accept(v Visitor) any {
	return v.VisitNumber(n)
}

func (n *Number) Compare(other SyntaxNode) bool {
	o, ok := other.(*Number)
	if !ok {
		return false
	}
	return compareNodes(n.Digits, o.Digits)
}

func (n *Number) Diff(other SyntaxNode) error {
	o, ok := other.(*Number)
	if !ok {
		return fmt.Errorf("expected number, got %T", other)
	}
	return diffNodes(n.Digits, o.Digits, "digits")
}

// Value returns the numeric value the digit tokens spell.
func (n *Number) Value() int {
	value := 0
	for _, digit := range n.Digits {
		d, _ := strconv.Atoi(digit.Modifiers["type"])
		value = value*10 + d
	}
	return value
}

// Clef carries both the printed clef token and the semantics needed to
// resolve staff positions: the sign pitch, its octave and where the
// sign sits on the staff.
type Clef struct {
	ClefToken *Token
	Sign      NamedPitch
	Octave    int
	Position  StaffPosition
}

func NewClef(token *Token, sign NamedPitch, octave int, position StaffPosition) *Clef {
	return &Clef{ClefToken: token, Sign: sign, Octave: octave, Position: position}
}

// ClefFromToken distills full clef semantics from a clef token.
func ClefFromToken(token *Token) (*Clef, error) {
	ct := ClefType(token.Modifiers["type"])
	sign, ok := Clef2Sign[ct]
	if !ok {
		return nil, fmt.Errorf("invalid clef type %q", ct)
	}
	octave := DefaultClefOctave[sign]
	if oct, ok := token.Modifiers["oct"]; ok {
		mod, err := strconv.Atoi(oct)
		if err != nil {
			return nil, fmt.Errorf("invalid clef octave modifier %q", oct)
		}
		octave += mod
	}
	return NewClef(token, sign, octave, token.Position), nil
}

// DefaultClef is the G clef on the customary line of a staff.
func DefaultClef(staff int) *Clef {
	return NewClef(
		nil,
		PitchG,
		DefaultClefOctave[PitchG],
		NewStaffPosition(staff, DefaultClefPositions[PitchG]),
	)
}

func (c *Clef) Accept(v Visitor) any {
	return v.VisitClef(c)
}

func (c *Clef) Compare(other SyntaxNode) bool {
	o, ok := other.(*Clef)
	if !ok {
		return false
	}
	return compareMaybe(c.ClefToken, o.ClefToken) &&
		c.Sign == o.Sign &&
		c.Octave == o.Octave &&
		c.Position.Equal(o.Position)
}

func (c *Clef) Diff(other SyntaxNode) error {
	o, ok := other.(*Clef)
	if !ok {
		return fmt.Errorf("expected clef, got %T", other)
	}
	if err := diffMaybe(c.ClefToken, o.ClefToken, "clef token"); err != nil {
		return err
	}
	if c.Sign != o.Sign {
		return fmt.Errorf("expected clef sign %s, got %s", c.Sign, o.Sign)
	}
	if c.Octave != o.Octave {
		return fmt.Errorf("expected clef octave %d, got %d", c.Octave, o.Octave)
	}
	if !c.Position.Equal(o.Position) {
		return fmt.Errorf("expected clef position %s, got %s", c.Position, o.Position)
	}
	return nil
}

// Pitch2Pos converts a pitch into a staff position integer, counting
// from the first ledger line below the staff.
func (c *Clef) Pitch2Pos(pitch NotePitch) int {
	position, ok := c.Position.Position()
	if !ok {
		panic("uninitialised clef position")
	}
	offset := c.Octave*7 + int(c.Sign) - position
	return pitch.Ordinal() - offset
}

// Pos2Pitch converts a staff position integer back into the pitch it
// denotes under this clef.
func (c *Clef) Pos2Pitch(pos int) NotePitch {
	position, ok := c.Position.Position()
	if !ok {
		panic("uninitialised clef position")
	}
	offset := c.Octave*7 + int(c.Sign) - position
	absolute := pos + offset
	return NotePitch{
		Step:   NamedPitch(floorMod(absolute, 7)),
		Octave: floorDiv(absolute, 7),
	}
}

// Key is a key signature: the printed accidentals and naturals plus
// the per-tone alterations they imply.
type Key struct {
	Accidentals []*Token
	Naturals    []*Token
	Alterations []*AccidentalType // one entry per scale tone
	Fifths      *int
}

func NewKey(accidentals, naturals []*Token, alterations []*AccidentalType, fifths *int) *Key {
	if len(alterations) != 7 {
		panic("key alterations must cover all scale tones")
	}
	k := &Key{
		Accidentals: accidentals,
		Naturals:    naturals,
		Alterations: alterations,
		Fifths:      fifths,
	}
	k.Sort()
	return k
}

// DefaultKey is the accidental-free C major key.
func DefaultKey() *Key {
	fifths := 0
	return NewKey(nil, nil, make([]*AccidentalType, 7), &fifths)
}

func (k *Key) Accept(v Visitor) any {
	return v.VisitKey(k)
}

// Compare checks the printed tokens only. Alteration semantics are not
// preserved across serialization round trips, so they do not take part
// in equality.
func (k *Key) Compare(other SyntaxNode) bool {
	o, ok := other.(*Key)
	if !ok {
		return false
	}
	return compareNodes(k.Naturals, o.Naturals) &&
		compareNodes(k.Accidentals, o.Accidentals)
}

func (k *Key) Diff(other SyntaxNode) error {
	o, ok := other.(*Key)
	if !ok {
		return fmt.Errorf("expected key, got %T", other)
	}
	if err := diffNodes(k.Naturals, o.Naturals, "naturals"); err != nil {
		return err
	}
	return diffNodes(k.Accidentals, o.Accidentals, "accidentals")
}

// Sort orders printed key tokens by staff position.
func (k *Key) Sort() {
	sort.SliceStable(k.Naturals, func(i, j int) bool {
		return k.Naturals[i].Position.Key() < k.Naturals[j].Position.Key()
	})
	sort.SliceStable(k.Accidentals, func(i, j int) bool {
		return k.Accidentals[i].Position.Key() < k.Accidentals[j].Position.Key()
	})
}

// Direction gathers the performance directives written at a point in
// time.
type Direction struct {
	toplevel
	Directives []*Token
}

func NewDirection(delta *big.Rat, directives []*Token) *Direction {
	d := &Direction{toplevel: toplevel{delta: delta}, Directives: directives}
	d.Sort()
	return d
}

func (d *Direction) Accept(v Visitor) any {
	return v.VisitDirection(d)
}

func (d *Direction) Compare(other SyntaxNode) bool {
	o, ok := other.(*Direction)
	if !ok {
		return false
	}
	return d.delta.Cmp(o.delta) == 0 && compareNodes(d.Directives, o.Directives)
}

func (d *Direction) Diff(other SyntaxNode) error {
	o, ok := other.(*Direction)
	if !ok {
		return fmt.Errorf("expected direction, got %T", other)
	}
	if err := d.diffDelta(o); err != nil {
		return err
	}
	return diffNodes(d.Directives, o.Directives, "directives")
}

func (d *Direction) Position() StaffPosition {
	return AnyStaffPosition()
}

func (d *Direction) precedence() int { return 3 }

// MergeDirection combines two directions that happen simultaneously.
func (d *Direction) MergeDirection(other *Direction) {
	if d.delta.Cmp(other.delta) != 0 {
		panic("merging directions at different time increments")
	}
	d.Directives = append(d.Directives, other.Directives...)
	d.Sort()
}

// Sort orders directives by token type and type modifier.
func (d *Direction) Sort() {
	sort.SliceStable(d.Directives, func(i, j int) bool {
		return d.Directives[i].sortKey() < d.Directives[j].sortKey()
	})
}

// Barline is a barline anywhere within a measure, including the
// measure edges.
type Barline struct {
	toplevel
	BarlineTokens []*Token
	Modifiers     []*Token
}

func NewBarline(delta *big.Rat, barlineTokens, modifiers []*Token) *Barline {
	return &Barline{
		toplevel:      toplevel{delta: delta},
		BarlineTokens: barlineTokens,
		Modifiers:     modifiers,
	}
}

func (b *Barline) Accept(v Visitor) any {
	return v.VisitBarline(b)
}

func (b *Barline) Compare(other SyntaxNode) bool {
	o, ok := other.(*Barline)
	if !ok {
		return false
	}
	return b.delta.Cmp(o.delta) == 0 &&
		compareNodes(b.BarlineTokens, o.BarlineTokens) &&
		compareNodes(b.Modifiers, o.Modifiers)
}

func (b *Barline) Diff(other SyntaxNode) error {
	o, ok := other.(*Barline)
	if !ok {
		return fmt.Errorf("expected barline, got %T", other)
	}
	if err := b.diffDelta(o); err != nil {
		return err
	}
	if err := diffNodes(b.BarlineTokens, o.BarlineTokens, "barline tokens"); err != nil {
		return err
	}
	return diffNodes(b.Modifiers, o.Modifiers, "modifiers")
}

func (b *Barline) Position() StaffPosition {
	return AnyStaffPosition()
}

func (b *Barline) precedence() int { return 1 }

// Measure is a single measure of a single part.
type Measure struct {
	Elements     []TopLevel
	LeftBarline  *Barline
	RightBarline *Barline
	Staves       int
	MeasureID    string
	PartID       string
	Duration     *big.Rat
}

func NewMeasure(
	elements []TopLevel,
	left, right *Barline,
	staves int,
	measureID, partID string,
	duration *big.Rat,
) *Measure {
	return &Measure{
		Elements:     elements,
		LeftBarline:  left,
		RightBarline: right,
		Staves:       staves,
		MeasureID:    measureID,
		PartID:       partID,
		Duration:     duration,
	}
}

func (m *Measure) Accept(v Visitor) any {
	return v.VisitMeasure(m)
}

func (m *Measure) Compare(other SyntaxNode) bool {
	o, ok := other.(*Measure)
	if !ok {
		return false
	}
	if m.MeasureID != o.MeasureID || m.PartID != o.PartID || m.Staves != o.Staves {
		return false
	}
	return compareNodes(m.Elements, o.Elements) &&
		compareMaybe(m.LeftBarline, o.LeftBarline) &&
		compareMaybe(m.RightBarline, o.RightBarline)
}

func (m *Measure) Diff(other SyntaxNode) error {
	o, ok := other.(*Measure)
	if !ok {
		return fmt.Errorf("expected measure, got %T", other)
	}
	if m.MeasureID != o.MeasureID {
		return fmt.Errorf("expected measure id %q, got %q", m.MeasureID, o.MeasureID)
	}
	if m.PartID != o.PartID {
		return fmt.Errorf("expected part id %q, got %q", m.PartID, o.PartID)
	}
	if m.Staves != o.Staves {
		return fmt.Errorf("expected %d staves, got %d", m.Staves, o.Staves)
	}
	if err := diffNodes(m.Elements, o.Elements, "elements"); err != nil {
		return err
	}
	if err := diffMaybe(m.LeftBarline, o.LeftBarline, "left barline"); err != nil {
		return err
	}
	return diffMaybe(m.RightBarline, o.RightBarline, "right barline")
}

// Sort establishes the canonical element ordering of the measure.
func (m *Measure) Sort() {
	sort.SliceStable(m.Elements, func(i, j int) bool {
		return LessTopLevel(m.Elements[i], m.Elements[j])
	})
}

// Score is a full piece: the concatenation of every measure of every
// part.
type Score struct {
	Measures []*Measure
	ScoreID  string
}

func NewScore(measures []*Measure, scoreID string) *Score {
	return &Score{Measures: measures, ScoreID: scoreID}
}

func (s *Score) Accept(v Visitor) any {
	return v.VisitScore(s)
}

func (s *Score) Compare(other SyntaxNode) bool {
	o, ok := other.(*Score)
	if !ok {
		return false
	}
	return compareNodes(s.Measures, o.Measures)
}

func (s *Score) Diff(other SyntaxNode) error {
	o, ok := other.(*Score)
	if !ok {
		return fmt.Errorf("expected score, got %T", other)
	}
	return diffNodes(s.Measures, o.Measures, "measures")
}
