package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/anhducle98/simple-search/pkg/config"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

func TestBuiltinSegment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "cat dog cat", []string{"cat", "dog", "cat"}},
		{"case and punctuation", "Dog, DOG; dog!", []string{"dog", "dog", "dog"}},
		{"stop words dropped", "the cat and the dog", []string{"cat", "dog"}},
		{"one letter dropped", "a b cd", []string{"cd"}},
		{"stemmed", "searching indexes", []string{"search", "index"}},
		{"empty", "", []string{}},
		{"only punctuation", "... !!", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Builtin{}.Segment(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Segment(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewDefaultsToBuiltin(t *testing.T) {
	tok, err := New(config.TokenizerConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tok.Name() != BuiltinName {
		t.Fatalf("got %s, want %s", tok.Name(), BuiltinName)
	}
}

func TestAnalyzerStandard(t *testing.T) {
	tok, err := New(config.TokenizerConfig{Analyzer: "standard"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := tok.Segment("The Cat chased the DOG")
	want := []string{"cat", "chased", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segment = %v, want %v", got, want)
	}
}

func TestAnalyzerUnknown(t *testing.T) {
	_, err := New(config.TokenizerConfig{Analyzer: "no-such-analyzer"})
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDictionaryMissingFile(t *testing.T) {
	_, err := New(config.TokenizerConfig{
		Analyzer:     DictionaryName,
		Dictionaries: filepath.Join(t.TempDir(), "missing.txt"),
	})
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDictionaryRequiresFiles(t *testing.T) {
	_, err := New(config.TokenizerConfig{Analyzer: DictionaryName})
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDictionarySegment(t *testing.T) {
	dict := filepath.Join(t.TempDir(), "dict.txt")
	if err := os.WriteFile(dict, []byte("hello 100 n\nworld 100 n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tok, err := NewDictionary(dict)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	got := tok.Segment("Hello, world")
	joined := strings.Join(got, " ")
	for _, want := range []string{"hello", "world"} {
		if !strings.Contains(joined, want) {
			t.Errorf("segments %v missing %q", got, want)
		}
	}
	for _, term := range got {
		if !hasWordRune(term) {
			t.Errorf("punctuation or space leaked into terms: %q", term)
		}
	}
}

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"long": strings.Repeat(`Information retrieval systems form the backbone of modern search
        infrastructure. These systems combine tokenization, stemming, and stop word
        removal to normalize text into searchable terms. `, 20),
}

func BenchmarkBuiltinSegment(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Builtin{}.Segment(text)
			}
		})
	}
}

func BenchmarkAnalyzerSegment(b *testing.B) {
	tok, err := New(config.TokenizerConfig{Analyzer: "standard"})
	if err != nil {
		b.Fatal(err)
	}
	for _, size := range []int{100, 1000} {
		text := strings.Repeat("distributed search analytics platform indexing ", size/48+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Segment(text)
			}
		})
	}
}
