// Package main is the entry point for the comref CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CVC-DAG/comref-converter/pkg/api"
	"github.com/CVC-DAG/comref-converter/pkg/converter"
	"github.com/CVC-DAG/comref-converter/pkg/export"
	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile    string
	firstLineFile string
	ignoreIDs     bool
	serverPort    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "comref",
	Short: "Convert scores between MusicXML, MTN and MIDI",
	Long: `comref converts music scores between partwise MusicXML (plain or
compressed), the MTN tree notation and Standard MIDI Files.

Examples:
  comref convert score.musicxml -o score.mtn
  comref convert score.mxl -o score.mid --first-line lines.json
  comref convert score.mtn -o score.seq
  comref count score.mtn
  comref serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Detects the input format from extension or content and converts to the format implied by the output file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var countCmd = &cobra.Command{
	Use:   "count <input>",
	Short: "Report node and token counts of a score",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported conversion paths",
	Run: func(cmd *cobra.Command, args []string) {
		for _, conversion := range converter.GetSupportedConversions() {
			fmt.Println(conversion)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	convertCmd.Flags().StringVar(&firstLineFile, "first-line", "", "Engraving first-line feedback JSON")
	convertCmd.Flags().BoolVar(&ignoreIDs, "ignore-ids", false, "Strip token identifiers from MTN output")
	_ = convertCmd.MarkFlagRequired("output")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(serveCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]

	var opts []converter.Option
	if ignoreIDs {
		opts = append(opts, converter.WithIgnoreID())
	}
	conv := converter.New(opts...)

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile, firstLineFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	input := args[0]

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	format := converter.DetectFormat(input)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}

	scoreID := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	score, err := converter.New().Translate(data, format, scoreID, nil)
	if err != nil {
		return err
	}

	fmt.Printf("measures: %d\n", len(score.Measures))
	fmt.Printf("nodes: %d\n", export.CountNodes(score))
	fmt.Printf("tokens: %d\n", len(mtn.CollectTokens(score)))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
