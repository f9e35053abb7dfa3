// Package tokenizer turns raw text into normalised terms. Queries and
// documents must go through the same Tokenizer for scores to be meaningful,
// so every process builds one from the shared configuration before it
// enters its message loop.
package tokenizer

import (
	"os"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/huichen/sego"

	"github.com/anhducle98/simple-search/pkg/config"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// DictionaryName selects the dictionary-driven segmenter.
const DictionaryName = "dictionary"

// Tokenizer segments text into an ordered sequence of terms. Implementations
// are stateless after construction and safe for concurrent use.
type Tokenizer interface {
	Segment(text string) []string
	Name() string
}

// New builds the Tokenizer named by cfg.Analyzer: "builtin", "dictionary",
// or the name of any registered bleve analyzer ("standard", "simple", "en").
func New(cfg config.TokenizerConfig) (Tokenizer, error) {
	switch cfg.Analyzer {
	case "", BuiltinName:
		return Builtin{}, nil
	case DictionaryName:
		return NewDictionary(cfg.Dictionaries)
	default:
		return NewAnalyzer(cfg.Analyzer)
	}
}

// Analyzer adapts a bleve text analyzer.
type Analyzer struct {
	name     string
	analyzer analysis.Analyzer
}

func NewAnalyzer(name string) (*Analyzer, error) {
	a, err := registry.NewCache().AnalyzerNamed(name)
	if err != nil {
		return nil, apperrors.Configf("unknown analyzer %q: %v", name, err)
	}
	return &Analyzer{name: name, analyzer: a}, nil
}

func (a *Analyzer) Name() string { return a.name }

func (a *Analyzer) Segment(text string) []string {
	stream := a.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Dictionary segments text with a word dictionary, which handles scripts
// that do not separate words with spaces.
type Dictionary struct {
	segmenter *sego.Segmenter
}

// NewDictionary loads the comma-separated dictionary files. Missing files
// are reported as configuration errors rather than left to the segmenter,
// which aborts the process on them.
func NewDictionary(files string) (*Dictionary, error) {
	if strings.TrimSpace(files) == "" {
		return nil, apperrors.Configf("dictionary tokenizer needs at least one dictionary file")
	}
	for _, f := range strings.Split(files, ",") {
		if _, err := os.Stat(f); err != nil {
			return nil, apperrors.Configf("dictionary %s: %v", f, err)
		}
	}
	seg := new(sego.Segmenter)
	seg.LoadDictionary(files)
	return &Dictionary{segmenter: seg}, nil
}

func (d *Dictionary) Name() string { return DictionaryName }

func (d *Dictionary) Segment(text string) []string {
	segments := d.segmenter.Segment([]byte(text))
	terms := make([]string, 0, len(segments))
	for _, s := range segments {
		term := strings.ToLower(s.Token().Text())
		if !hasWordRune(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
