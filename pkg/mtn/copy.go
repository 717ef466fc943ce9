package mtn

import "math/big"

// Deep copies for attribute subtrees. The translator duplicates clef,
// key and time signature nodes when it broadcasts them to several
// staves or refreshes them at the start of an engraved line, and the
// copies must not share tokens with the originals.

func copyTokens(tokens []*Token) []*Token {
	if tokens == nil {
		return nil
	}
	out := make([]*Token, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Copy()
	}
	return out
}

func (k *Key) Copy() *Key {
	if k == nil {
		return nil
	}
	alterations := make([]*AccidentalType, len(k.Alterations))
	copy(alterations, k.Alterations)
	var fifths *int
	if k.Fifths != nil {
		v := *k.Fifths
		fifths = &v
	}
	return &Key{
		Accidentals: copyTokens(k.Accidentals),
		Naturals:    copyTokens(k.Naturals),
		Alterations: alterations,
		Fifths:      fifths,
	}
}

func (c *Clef) Copy() *Clef {
	if c == nil {
		return nil
	}
	var token *Token
	if c.ClefToken != nil {
		token = c.ClefToken.Copy()
	}
	return NewClef(token, c.Sign, c.Octave, c.Position)
}

func (n *Number) Copy() *Number {
	if n == nil {
		return nil
	}
	return NewNumber(copyTokens(n.Digits))
}

func (n *Numerator) Copy() *Numerator {
	if n == nil {
		return nil
	}
	parts := make([]SyntaxNode, len(n.Parts))
	for i, part := range n.Parts {
		switch p := part.(type) {
		case *Number:
			parts[i] = p.Copy()
		case *Token:
			parts[i] = p.Copy()
		default:
			parts[i] = part
		}
	}
	return NewNumerator(parts)
}

func (d *Denominator) Copy() *Denominator {
	if d == nil {
		return nil
	}
	return NewDenominator(d.Digits.Copy())
}

func (f *TimesigFraction) Copy() *TimesigFraction {
	if f == nil {
		return nil
	}
	return NewTimesigFraction(f.Numerator.Copy(), f.Denominator.Copy())
}

func (ts *TimeSignature) Copy() *TimeSignature {
	if ts == nil {
		return nil
	}
	out := &TimeSignature{TimeValue: new(big.Rat).Set(ts.TimeValue)}
	if ts.TimeSymbol != nil {
		out.TimeSymbol = ts.TimeSymbol.Copy()
	}
	if ts.Compound != nil {
		out.Compound = make([]SyntaxNode, len(ts.Compound))
		for i, part := range ts.Compound {
			switch p := part.(type) {
			case *TimesigFraction:
				out.Compound[i] = p.Copy()
			case *Token:
				out.Compound[i] = p.Copy()
			default:
				out.Compound[i] = part
			}
		}
	}
	return out
}

// DeepCopy clones the attributes object together with every nested
// key, clef and time signature.
func (a *Attributes) DeepCopy() *Attributes {
	keys := make(map[int]*Key, len(a.Keys))
	for staff, key := range a.Keys {
		keys[staff] = key.Copy()
	}
	clefs := make(map[int]*Clef, len(a.Clefs))
	for staff, clef := range a.Clefs {
		clefs[staff] = clef.Copy()
	}
	timesigs := make(map[int]*TimeSignature, len(a.Timesigs))
	for staff, timesig := range a.Timesigs {
		timesigs[staff] = timesig.Copy()
	}
	return NewAttributes(a.Delta(), a.NStaves, keys, clefs, timesigs)
}
