// Package pagination follows AWS list API continuation tokens until exhausted.
//
// AWS list calls name their token NextToken, Marker, NextMarker, position or
// nextToken, and some also signal truncation with a separate boolean. A Shape
// captures those differences so every adapter shares one loop.
package pagination

import (
	"context"
	"errors"
	"fmt"
)

// ErrRepeatedToken is returned when a service hands back a token it already returned.
var ErrRepeatedToken = errors.New("pagination token repeated")

// Fetch calls a list API with the token of the previous page, nil for the first page.
type Fetch[Out any] func(ctx context.Context, token *string) (*Out, error)

// Shape describes where a page keeps its items and its continuation token.
type Shape[Out any, T any] struct {
	Items func(*Out) []T
	Next  func(*Out) *string
	// Truncated decides whether another page exists when set. Otherwise a
	// non-empty token does.
	Truncated func(*Out) bool
}

func (s Shape[Out, T]) more(out *Out) (*string, bool) {
	token := s.Next(out)
	if s.Truncated != nil && !s.Truncated(out) {
		return nil, false
	}
	if token == nil || *token == "" {
		return nil, false
	}
	return token, true
}

// Collect returns the items of every page in order.
func Collect[Out any, T any](ctx context.Context, fetch Fetch[Out], shape Shape[Out, T]) ([]T, error) {
	var (
		items []T
		token *string
		seen  = map[string]struct{}{}
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return items, nil
		}
		items = append(items, shape.Items(out)...)

		next, ok := shape.more(out)
		if !ok {
			return items, nil
		}
		if _, dup := seen[*next]; dup {
			return nil, fmt.Errorf("%w: %q", ErrRepeatedToken, *next)
		}
		seen[*next] = struct{}{}
		token = next
	}
}
