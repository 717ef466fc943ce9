// Package api provides the REST API server for the score converter.
package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CVC-DAG/comref-converter/pkg/converter"
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

// StartServer starts the API server on the specified port.
func StartServer(port int) error {
	r := NewRouter()
	return r.Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert", handleConvert)
		v1.GET("/formats", listFormats)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "comref-converter",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the supported file formats and conversion paths
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"musicxml", "mxl", "mtn", "midi", "seq"},
		"conversions": converter.GetSupportedConversions(),
	})
}

var outputExtensions = map[converter.Format]string{
	converter.FormatMTN:      ".mtn",
	converter.FormatMIDI:     ".mid",
	converter.FormatSequence: ".seq",
}

var outputContentTypes = map[converter.Format]string{
	converter.FormatMTN:      "application/xml",
	converter.FormatMIDI:     "audio/midi",
	converter.FormatSequence: "application/json",
}

// handleConvert godoc
// @Summary Convert a score file
// @Description Upload a score and receive it converted to the target format
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "Score file to convert"
// @Param to query string false "Target format (default: mtn)"
// @Param first_line formData file false "Engraving first-line feedback (JSON)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert [post]
func handleConvert(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	outputFormat := converter.Format(c.DefaultQuery("to", string(converter.FormatMTN)))
	outputExt, ok := outputExtensions[outputFormat]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported target format"})
		return
	}

	inputFormat := converter.DetectFormat(header.Filename)
	if inputFormat == converter.FormatUnknown {
		inputFormat = converter.DetectFormatFromContent(data)
	}

	firstLine, err := readFirstLine(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scoreID := scoreIDFromFilename(header.Filename)

	conv := converter.New()
	result, err := conv.Convert(data, inputFormat, outputFormat, scoreID, firstLine)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	outputName := scoreID + outputExt
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, outputContentTypes[outputFormat], result)
}

func readFirstLine(c *gin.Context) (translator.FirstLineSet, error) {
	file, _, err := c.Request.FormFile("first_line")
	if err != nil {
		// The feedback file is optional.
		return nil, nil
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read first-line file: %w", err)
	}
	return converter.ParseFirstLine(data)
}

// scoreIDFromFilename derives a score identifier from the uploaded
// filename, falling back to a random one for unusable names.
func scoreIDFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.TrimSpace(base)
	if base == "" || base == "." {
		return uuid.NewString()
	}
	return base
}
