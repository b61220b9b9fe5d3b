package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const releaseAnalyzer = "release"

// buildIndexMapping creates the Bleve mapping for release documents.
//
// All text arrives pre-normalized (see Normalize), so analysis only
// needs to tokenize. The unicode tokenizer keeps alphanumeric runs
// intact, which matters for catalog numbers like "as 9203"; no stemming
// and no stop words, so short words in titles stay searchable.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(releaseAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = releaseAnalyzer

	docMapping := bleve.NewDocumentMapping()

	text := func(field string) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = releaseAnalyzer
		fm.Store = false
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// Field boosts live in the query, not the mapping, so every field
	// is plain searchable text.
	text("title")
	text("artists")
	text("label")
	text("catno")
	text("genre")
	text("style")

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping, nil
}
