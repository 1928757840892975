// Package token counts tokens in file contents and memoizes the results.
package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ErrTokenizerUnsupported is returned for unknown tokenizer identifiers.
var ErrTokenizerUnsupported = errors.New("unsupported tokenizer")

// Default is used when no tokenizer is configured.
const Default = "cl100k"

// Simple estimates four bytes per token and needs no encoding tables.
const Simple = "simple"

// Tokenizer turns content into a token count. Count must be a pure
// function of its input.
type Tokenizer interface {
	ID() string
	Count(content []byte) int
}

var encodings = map[string]string{
	"o200k_base": "o200k_base",
	"cl100k":     "cl100k_base",
	"p50k_base":  "p50k_base",
	"p50k_edit":  "p50k_edit",
	"r50k_base":  "r50k_base",
}

var aliases = map[string]string{
	"cl100k_base": "cl100k",
	"gpt2":        "r50k_base",
	"o200k":       "o200k_base",
	"p50k":        "p50k_base",
	"r50k":        "r50k_base",
}

// IDs lists canonical identifiers in the order the settings view cycles.
func IDs() []string {
	return []string{"o200k_base", "cl100k", "p50k_base", "p50k_edit", "r50k_base", Simple}
}

// Canonical resolves aliases and validates id. An empty id is Default.
func Canonical(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Default, nil
	}
	if a, ok := aliases[id]; ok {
		id = a
	}
	if _, ok := encodings[id]; ok || id == Simple {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrTokenizerUnsupported, id, strings.Join(IDs(), ", "))
}

// New returns the tokenizer for id. BPE tables are loaded on first use.
func New(id string) (Tokenizer, error) {
	canon, err := Canonical(id)
	if err != nil {
		return nil, err
	}
	if canon == Simple {
		return simpleTokenizer{}, nil
	}
	return &bpeTokenizer{id: canon, encoding: encodings[canon]}, nil
}

type simpleTokenizer struct{}

func (simpleTokenizer) ID() string { return Simple }

func (simpleTokenizer) Count(content []byte) int {
	return (len(content) + 3) / 4
}

type bpeTokenizer struct {
	id       string
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func (b *bpeTokenizer) ID() string { return b.id }

// Load fetches the encoding tables. Count calls it implicitly; calling it
// up front surfaces download failures before the interface starts.
func (b *bpeTokenizer) Load() error {
	b.once.Do(func() {
		b.enc, b.err = tiktoken.GetEncoding(b.encoding)
	})
	return b.err
}

// Count falls back to the byte estimate when the tables are unavailable.
func (b *bpeTokenizer) Count(content []byte) int {
	if err := b.Load(); err != nil {
		return simpleTokenizer{}.Count(content)
	}
	// "all" keeps special-token markers in source files from panicking.
	return len(b.enc.Encode(string(content), []string{"all"}, nil))
}

// Loader is implemented by tokenizers that prepare resources lazily.
type Loader interface {
	Load() error
}

// Next returns the identifier after id in IDs, wrapping around.
func Next(id string, step int) string {
	ids := IDs()
	canon, err := Canonical(id)
	if err != nil {
		return ids[0]
	}
	for i, v := range ids {
		if v == canon {
			return ids[((i+step)%len(ids)+len(ids))%len(ids)]
		}
	}
	return ids[0]
}
