// Package protocol defines the tagged envelope exchanged between the
// coordinator and its workers, and its wire codec.
//
// Every message is a single Envelope whose Kind discriminates the payload, so
// a document identifier can never be mistaken for a stream marker. On the wire
// envelopes are newline-delimited JSON frames, each at most MaxFrameBytes
// long:
//
//	{"kind":"query","query":"cat dog"}
//	{"kind":"document","doc_id":"corpus/a.txt"}
//	{"kind":"end_of_documents"}
//	{"kind":"result","doc_id":"corpus/a.txt","score":0.5}
//	{"kind":"end_of_results"}
//
// Text fields that are not valid UTF-8 (file names on most Unix systems may
// hold arbitrary bytes) travel base64-encoded in a parallel "_raw" field so
// that identifiers survive the JSON round trip byte for byte:
//
//	{"kind":"document","doc_id_raw":"Y29ycHVzL3LpLnR4dA=="}
package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/anhducle98/simple-search/internal/topk"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// Kind discriminates an Envelope.
type Kind string

const (
	// KindHello is sent once by a worker after connecting, carrying its rank.
	KindHello          Kind = "hello"
	KindQuery          Kind = "query"
	KindDocument       Kind = "document"
	KindEndOfDocuments Kind = "end_of_documents"
	KindResult         Kind = "result"
	KindEndOfResults   Kind = "end_of_results"
	KindShutdown       Kind = "shutdown"
)

func (k Kind) Valid() bool {
	switch k {
	case KindHello, KindQuery, KindDocument, KindEndOfDocuments,
		KindResult, KindEndOfResults, KindShutdown:
		return true
	}
	return false
}

// Envelope is one protocol message. Only the fields relevant to Kind are set.
type Envelope struct {
	Kind  Kind
	Query string
	DocID string
	Score float64
	Rank  int
}

// wireEnvelope is the JSON form of an Envelope.
type wireEnvelope struct {
	Kind     Kind    `json:"kind"`
	Query    string  `json:"query,omitempty"`
	QueryRaw []byte  `json:"query_raw,omitempty"`
	DocID    string  `json:"doc_id,omitempty"`
	DocIDRaw []byte  `json:"doc_id_raw,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Rank     int     `json:"rank,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{Kind: e.Kind, Score: e.Score, Rank: e.Rank}
	w.Query, w.QueryRaw = splitText(e.Query)
	w.DocID, w.DocIDRaw = splitText(e.DocID)
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	query, err := joinText("query", w.Query, w.QueryRaw)
	if err != nil {
		return err
	}
	docID, err := joinText("doc_id", w.DocID, w.DocIDRaw)
	if err != nil {
		return err
	}
	*e = Envelope{Kind: w.Kind, Query: query, DocID: docID, Score: w.Score, Rank: w.Rank}
	return nil
}

// splitText keeps valid UTF-8 readable and moves anything else to raw bytes.
func splitText(s string) (string, []byte) {
	if utf8.ValidString(s) {
		return s, nil
	}
	return "", []byte(s)
}

func joinText(field, text string, raw []byte) (string, error) {
	if len(raw) == 0 {
		return text, nil
	}
	if text != "" {
		return "", fmt.Errorf("both %s and %s_raw set", field, field)
	}
	return string(raw), nil
}

func Hello(rank int) Envelope          { return Envelope{Kind: KindHello, Rank: rank} }
func Query(text string) Envelope       { return Envelope{Kind: KindQuery, Query: text} }
func Document(docID string) Envelope   { return Envelope{Kind: KindDocument, DocID: docID} }
func EndOfDocuments() Envelope         { return Envelope{Kind: KindEndOfDocuments} }
func EndOfResults() Envelope           { return Envelope{Kind: KindEndOfResults} }
func Shutdown() Envelope               { return Envelope{Kind: KindShutdown} }
func Result(c topk.Candidate) Envelope { return Envelope{Kind: KindResult, DocID: c.DocID, Score: c.Score} }

// Candidate returns the scored candidate carried by a Result envelope.
func (e Envelope) Candidate() topk.Candidate {
	return topk.Candidate{DocID: e.DocID, Score: e.Score}
}

// Validate checks that the envelope is well formed for its Kind.
func (e Envelope) Validate() error {
	if !e.Kind.Valid() {
		return apperrors.Protocolf("unknown envelope kind %q", e.Kind)
	}
	switch e.Kind {
	case KindHello:
		if e.Rank < 1 {
			return apperrors.Protocolf("hello with invalid rank %d", e.Rank)
		}
	case KindResult:
		if e.Score < 0 || e.Score > 1 || e.Score != e.Score {
			return apperrors.Protocolf("result %q has score %v outside [0,1]", e.DocID, e.Score)
		}
	}
	return nil
}

// Unexpected builds the protocol error for an envelope that arrived in a
// state that does not accept it.
func Unexpected(state string, got Envelope) error {
	return apperrors.Protocolf("unexpected %s envelope while %s", got.Kind, state)
}

func (e Envelope) String() string {
	switch e.Kind {
	case KindHello:
		return fmt.Sprintf("hello(rank=%d)", e.Rank)
	case KindQuery:
		return fmt.Sprintf("query(%q)", e.Query)
	case KindDocument:
		return fmt.Sprintf("document(%s)", e.DocID)
	case KindResult:
		return fmt.Sprintf("result(%s, %g)", e.DocID, e.Score)
	}
	return string(e.Kind)
}
