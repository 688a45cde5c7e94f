package api

import (
	"bytes"
	"encoding/json"
)

// Page is a list response. The backend returns either a bare JSON array or a
// paginated {"count", "next", "previous", "results"} object; both decode here.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Results  []T    `json:"results"`
}

// HasNext reports whether another page exists.
func (p Page[T]) HasNext() bool {
	return p.Next != ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{Count: len(items), Results: items}
		return nil
	}

	type page struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  []T     `json:"results"`
	}
	var raw page
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	*p = Page[T]{Count: raw.Count, Results: raw.Results}
	if raw.Next != nil {
		p.Next = *raw.Next
	}
	if raw.Previous != nil {
		p.Previous = *raw.Previous
	}
	return nil
}
