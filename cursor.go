package repository

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the position of the edge row of a keyset page: the value of
// every ordered column, keyed by column name.
type Cursor struct {
	Values map[string]any `json:"v"`
}

// CursorExtractor reads the cursor values of one item.
type CursorExtractor[T any] func(T) map[string]any

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

var cursorEncoding = base64.RawURLEncoding

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return cursorEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor. Integral numbers
// come back as int64 so keys beyond float64 precision compare exactly.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := cursorEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var c Cursor
	if err := dec.Decode(&c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if len(c.Values) == 0 {
		return Cursor{}, fmt.Errorf("%w: no values", ErrInvalidCursor)
	}

	for col, v := range c.Values {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		val, err := cursorNumber(n)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: %s: %v", ErrInvalidCursor, col, err)
		}
		c.Values[col] = val
	}
	return c, nil
}

func cursorNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

// buildKeysetSpec expands (c1, c2, ...) > (v1, v2, ...) into
// c1 > v1 OR (c1 = v1 AND c2 > v2) OR ..., flipping each comparison for
// descending columns and backward paging.
func buildKeysetSpec(orders []orderClause, values map[string]any, forward bool) Spec {
	if len(orders) == 0 {
		return nil
	}

	orParts := make([]Spec, 0, len(orders))
	for i, col := range orders {
		andParts := make([]Spec, 0, i+1)
		for _, prev := range orders[:i] {
			andParts = append(andParts, Eq(prev.column, values[prev.column]))
		}

		val := values[col.column]
		if (col.dir == Asc) == forward {
			andParts = append(andParts, Gt(col.column, val))
		} else {
			andParts = append(andParts, Lt(col.column, val))
		}
		orParts = append(orParts, combineSpecs(andParts))
	}
	return combineSpecs(orParts)
}
