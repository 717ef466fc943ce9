// Package converter orchestrates score conversions: input format
// detection, translation into the tree notation and rendering into the
// supported output formats.
package converter

import (
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

// Format represents a score file format.
type Format string

const (
	FormatMusicXML Format = "musicxml"
	FormatMXL      Format = "mxl"
	FormatMTN      Format = "mtn"
	FormatMEI      Format = "mei"
	FormatMIDI     Format = "midi"
	FormatSequence Format = "seq"
	FormatUnknown  Format = "unknown"
)

// ConversionResult holds the result of a conversion.
type ConversionResult struct {
	Data     []byte
	Filename string
	Format   string
	Error    error
}

// Converter handles score format conversions.
type Converter struct {
	translators map[Format]translator.Translator
	ignoreID    bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithIgnoreID strips token identifiers from MTN output.
func WithIgnoreID() Option {
	return func(c *Converter) {
		c.ignoreID = true
	}
}

// New creates a Converter with the default translator registry.
func New(opts ...Option) *Converter {
	c := &Converter{
		translators: map[Format]translator.Translator{
			FormatMusicXML: translator.NewMXMLTranslator(),
			FormatMXL:      translator.NewMXMLTranslator(),
			FormatMTN:      translator.NewMTNXMLTranslator(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translator returns the registered translator for a format, if any.
func (c *Converter) Translator(format Format) (translator.Translator, bool) {
	t, ok := c.translators[format]
	return t, ok
}
