package topic

import (
	"context"
	"strings"
)

// stopwords are dropped from lexical tokens. Tracker nouns like "task"
// and "habit" match nearly every record, so they are excluded too.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "a": {}, "in": {}, "for": {},
	"with": {}, "on": {}, "at": {}, "by": {}, "an": {}, "is": {}, "it": {},
	"from": {}, "task": {}, "project": {}, "habit": {}, "todo": {},
	"how": {}, "am": {}, "i": {}, "my": {}, "doing": {}, "what": {},
}

var tokenSeparators = strings.NewReplacer("/", " ", "-", " ", "_", " ")

// Lexical is the offline interpreter: it tokenizes the query, drops
// stopwords and expands tokens through an optional synonym map.
type Lexical struct {
	// Synonyms maps a lower-case token to extra keywords.
	Synonyms map[string][]string
}

// NewLexical returns a lexical interpreter with lower-cased synonym keys.
func NewLexical(synonyms map[string][]string) *Lexical {
	norm := make(map[string][]string, len(synonyms))
	for k, v := range synonyms {
		k = strings.ToLower(strings.TrimSpace(k))
		norm[k] = append(norm[k], v...)
	}
	return &Lexical{Synonyms: norm}
}

// Interpret implements Interpreter.
func (l *Lexical) Interpret(_ context.Context, rawQuery string) ([]string, error) {
	tokens := Tokenize(rawQuery)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t)
		out = append(out, l.Synonyms[t]...)
	}
	return out, nil
}

// Tokenize splits on whitespace and / - _, strips surrounding
// punctuation, lower-cases and drops stopwords.
func Tokenize(text string) []string {
	fields := strings.Fields(tokenSeparators.Replace(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToLower(strings.Trim(f, ".,;:!?\"'()[]{}"))
		if t == "" {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}
