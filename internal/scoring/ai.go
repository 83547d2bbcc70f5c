package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/drususdark/audit-inventory-mvp/internal/llm"
)

// ParseError reports provider content that is not a valid scoring result.
type ParseError struct {
	Provider llm.ProviderName
	Content  string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scoring: parse %s response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseResult decodes provider content into a Result. The content must be a
// single JSON object; no repair is attempted.
func ParseResult(provider llm.ProviderName, content string) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))

	var r Result
	if err := dec.Decode(&r); err != nil {
		return nil, &ParseError{Provider: provider, Content: content, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Provider: provider, Content: content, Err: fmt.Errorf("trailing data after JSON object")}
	}
	if len(r.CriteriaScores) == 0 {
		return nil, &ParseError{Provider: provider, Content: content, Err: fmt.Errorf("criteria_scores is empty")}
	}
	if err := r.Validate(); err != nil {
		return nil, &ParseError{Provider: provider, Content: content, Err: err}
	}
	return &r, nil
}
