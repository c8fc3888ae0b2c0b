package flow

import (
	colors "gopkg.in/go-playground/colors.v1"
)

// Stage categories of the triage pipeline. Each one carries its own color.
const (
	CategoryIngest     = "ingest"
	CategoryPreprocess = "preprocess"
	CategoryVision     = "vision"
	CategoryEmbedding  = "embedding"
	CategoryRetrieval  = "retrieval"
	CategorySummary    = "summary"
	CategorySeverity   = "severity"
	CategoryDiagnosis  = "diagnosis"
	CategoryReport     = "report"
)

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

var categoryColors = map[string]RGB{
	CategoryIngest:     {59, 130, 246},
	CategoryPreprocess: {168, 85, 247},
	CategoryVision:     {34, 197, 94},
	CategoryEmbedding:  {234, 179, 8},
	CategoryRetrieval:  {236, 72, 153},
	CategorySummary:    {249, 115, 22},
	CategorySeverity:   {20, 184, 166},
	CategoryDiagnosis:  {99, 102, 241},
	CategoryReport:     {244, 63, 94},
}

// NeutralColor is used for unknown categories.
var NeutralColor = RGB{148, 163, 184}

// TriagePipeline returns the nine stages an injury assessment passes through,
// from the image upload to the final report.
func TriagePipeline() []Descriptor {
	return []Descriptor{
		{ID: "upload", Label: "Image Upload", Category: CategoryIngest},
		{ID: "preprocessing", Label: "Image Preprocessing", Category: CategoryPreprocess},
		{ID: "classification", Label: "ResNet18 Classification", Category: CategoryVision},
		{ID: "embedding", Label: "Vector Embedding", Category: CategoryEmbedding},
		{ID: "agent1-query", Label: "Agent 1: Query KB", Category: CategoryRetrieval},
		{ID: "agent1-summarize", Label: "Agent 1: Summarize", Category: CategorySummary},
		{ID: "agent2-analyze", Label: "Agent 2: Severity Analysis", Category: CategorySeverity},
		{ID: "agent2-diagnose", Label: "Agent 2: Generate Diagnoses", Category: CategoryDiagnosis},
		{ID: "final", Label: "Generate Final Report", Category: CategoryReport},
	}
}

// CategoryRGB returns the color triple for category.
func CategoryRGB(category string) RGB {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return NeutralColor
}

// CategoryColor returns the hex color for category, e.g. "#3b82f6".
func CategoryColor(category string) string {
	return HexColor(CategoryRGB(category))
}

// HexColor formats c as a lowercase hex string.
func HexColor(c RGB) string {
	rgb, err := colors.RGB(c.R, c.G, c.B)
	if err != nil {
		return "#94a3b8"
	}
	return rgb.ToHEX().String()
}
