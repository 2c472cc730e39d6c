// Package search provides accent- and case-insensitive substring search
// over stored messages, so "reunion" finds "Reunión".
package search

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/acta-labs/acta/cmd/server/internal/store"
)

// Result is one message hit together with its meeting id.
type Result struct {
	Message *store.Message `json:"message"`
	Meeting *store.Meeting `json:"meeting"`
}

// Searcher scans stored messages for a query string.
type Searcher struct {
	store store.Store
}

// New creates a Searcher over the given store.
func New(s store.Store) *Searcher {
	return &Searcher{store: s}
}

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold lowercases s and strips combining marks (accents).
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Messages returns every message whose content contains query, folded.
// An empty query matches nothing. Results follow the store's meeting
// ordering, newest meeting first, messages in timestamp order.
func (s *Searcher) Messages(ctx context.Context, query string) ([]Result, error) {
	folded := Fold(strings.TrimSpace(query))
	if folded == "" {
		return []Result{}, nil
	}

	meetings, err := s.store.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}

	results := []Result{}
	for _, meeting := range meetings {
		messages, err := s.store.ListMessages(ctx, meeting.ID)
		if err != nil {
			return nil, err
		}
		for _, msg := range messages {
			if strings.Contains(Fold(msg.Content), folded) {
				results = append(results, Result{Message: msg, Meeting: meeting})
			}
		}
	}
	return results, nil
}
