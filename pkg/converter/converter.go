package converter

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/CVC-DAG/comref-converter/pkg/export"
	"github.com/CVC-DAG/comref-converter/pkg/mtn"
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

// DetectFormat detects the format of a file based on its extension.
// Bare .xml files are ambiguous and need content sniffing.
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".musicxml":
		return FormatMusicXML
	case ".mxl":
		return FormatMXL
	case ".mtn":
		return FormatMTN
	case ".mei":
		return FormatMEI
	case ".mid", ".midi":
		return FormatMIDI
	case ".seq":
		return FormatSequence
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects a format from file content.
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Compressed MusicXML is a zip archive.
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return FormatMXL
	}
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.Contains(head, []byte("<score-partwise")) {
		return FormatMusicXML
	}
	if bytes.Contains(head, []byte("<mei")) {
		return FormatMEI
	}
	if bytes.Contains(head, []byte("<score")) {
		return FormatMTN
	}
	return FormatUnknown
}

// LoadFirstLine reads the engraving feedback file: a JSON array of
// part and measure identifier pairs marking the measures that start an
// engraved line.
func LoadFirstLine(path string) (translator.FirstLineSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read first-line file: %w", err)
	}
	return ParseFirstLine(data)
}

// ParseFirstLine decodes engraving feedback from JSON bytes.
func ParseFirstLine(data []byte) (translator.FirstLineSet, error) {
	var entries []struct {
		Part    string `json:"part_id"`
		Measure string `json:"measure_id"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid first-line file: %w", err)
	}
	firstLine := make(translator.FirstLineSet, len(entries))
	for _, entry := range entries {
		firstLine[translator.MeasureID{Part: entry.Part, Measure: entry.Measure}] = struct{}{}
	}
	return firstLine, nil
}

// ConvertFile converts a score file into the format implied by the
// output path. An empty firstLinePath means no engraving feedback.
func (c *Converter) ConvertFile(inputPath, outputPath, firstLinePath string) error {
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}

	var firstLine translator.FirstLineSet
	if firstLinePath != "" {
		firstLine, err = LoadFirstLine(firstLinePath)
		if err != nil {
			return err
		}
	}

	scoreID := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputData, err := c.Convert(data, inputFormat, outputFormat, scoreID, firstLine)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// Convert translates score bytes between formats.
func (c *Converter) Convert(
	data []byte,
	inputFormat, outputFormat Format,
	scoreID string,
	firstLine translator.FirstLineSet,
) ([]byte, error) {
	score, err := c.Translate(data, inputFormat, scoreID, firstLine)
	if err != nil {
		return nil, err
	}

	switch outputFormat {
	case FormatMTN:
		doc := export.NewXMLWriter(c.ignoreID).WriteScore(score)
		doc.Indent(2)
		out, err := doc.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize score: %w", err)
		}
		return out, nil
	case FormatMIDI:
		return export.NewMIDIRenderer().Render(score)
	case FormatSequence:
		sequences := export.NewSequenceWriter(true, true).WriteScore(score)
		out, err := marshalSequences(sequences)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize sequences: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

// Translate parses score bytes into a syntax tree.
func (c *Converter) Translate(
	data []byte,
	format Format,
	scoreID string,
	firstLine translator.FirstLineSet,
) (score *mtn.Score, err error) {
	if format == FormatMXL {
		data, err = unwrapMXL(data)
		if err != nil {
			return nil, err
		}
		format = FormatMusicXML
	}

	trans, ok := c.translators[format]
	if !ok {
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
	defer trans.Reset()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse input document: %w", err)
	}
	return trans.Translate(doc, scoreID, firstLine)
}

// marshalSequences renders per-measure token sequences as JSON, keyed
// "part:measure".
func marshalSequences(sequences map[translator.MeasureID][]string) ([]byte, error) {
	keyed := make(map[string][]string, len(sequences))
	for id, tokens := range sequences {
		keyed[id.Part+":"+id.Measure] = tokens
	}
	return json.MarshalIndent(keyed, "", "  ")
}

// unwrapMXL extracts the score document from a compressed MusicXML
// archive: the first rootfile listed in META-INF/container.xml, or the
// first .xml entry outside META-INF when the container is missing.
func unwrapMXL(data []byte) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open mxl archive: %w", err)
	}

	if target := containerRootfile(archive); target != "" {
		for _, file := range archive.File {
			if file.Name == target {
				return readZipFile(file)
			}
		}
	}
	for _, file := range archive.File {
		if strings.HasPrefix(file.Name, "META-INF/") {
			continue
		}
		name := strings.ToLower(file.Name)
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".musicxml") {
			return readZipFile(file)
		}
	}
	return nil, errors.New("no score document inside mxl archive")
}

func containerRootfile(archive *zip.Reader) string {
	for _, file := range archive.File {
		if file.Name != "META-INF/container.xml" {
			continue
		}
		data, err := readZipFile(file)
		if err != nil {
			return ""
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(data); err != nil {
			return ""
		}
		if rootfile := doc.FindElement("//rootfile"); rootfile != nil {
			return rootfile.SelectAttrValue("full-path", "")
		}
		return ""
	}
	return ""
}

func readZipFile(file *zip.File) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// GetSupportedConversions returns the supported conversion paths.
func GetSupportedConversions() []string {
	return []string{
		"musicxml -> mtn",
		"musicxml -> midi",
		"musicxml -> seq",
		"mxl -> mtn",
		"mxl -> midi",
		"mxl -> seq",
		"mtn -> mtn",
		"mtn -> midi",
		"mtn -> seq",
	}
}
