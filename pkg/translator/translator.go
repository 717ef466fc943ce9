// Package translator converts partwise MusicXML documents into MTN
// syntax trees and loads MTN XML documents back into them.
package translator

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// MeasureID identifies a measure within a score by part and measure
// number.
type MeasureID struct {
	Part    string
	Measure string
}

// FirstLineSet marks the measures that start an engraved line and thus
// need their clef and key restated.
type FirstLineSet map[MeasureID]struct{}

// Contains reports whether the measure starts a line.
func (s FirstLineSet) Contains(part, measure string) bool {
	if s == nil {
		return false
	}
	_, ok := s[MeasureID{Part: part, Measure: measure}]
	return ok
}

// ErrUnsupported wraps every construct the translator recognizes but
// cannot express.
var ErrUnsupported = errors.New("unsupported notation")

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnsupported}, args...)...)
}

// Translator converts an XML score document into an MTN score.
type Translator interface {
	Translate(doc *etree.Document, scoreID string, firstLine FirstLineSet) (*mtn.Score, error)
	Reset()
}
