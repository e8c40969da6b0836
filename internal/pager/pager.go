// Package pager pulls candidate URLs from storage in key order, one batch at a time.
package pager

import (
	"context"
	"fmt"
	"log"
	"time"

	"linkchecker/internal/linkurl"
	"linkchecker/internal/store"
)

// Page is one batch of candidates and the cursor to resume from after it.
type Page struct {
	URLs   []string
	Cursor string
}

// Empty reports whether the candidate set is exhausted.
func (p Page) Empty() bool {
	return len(p.URLs) == 0
}

// Pager fetches pages of candidates and extends each page so that every due URL sharing the
// last URL's scheme://host/ prefix lands in the same batch.
type Pager struct {
	source     store.CandidateSource
	pageSize   int
	recheckAge time.Duration
}

func New(source store.CandidateSource, pageSize int, recheckAge time.Duration) *Pager {
	return &Pager{source: source, pageSize: pageSize, recheckAge: recheckAge}
}

// NextBatch returns the candidates after cursor ("" = start of keyspace).
func (p *Pager) NextBatch(ctx context.Context, cursor string) (Page, error) {
	log.Printf("requesting batch after=%q size=%d", cursor, p.pageSize)
	urls, err := p.source.GetLinksForCheck(ctx, cursor, p.pageSize, p.recheckAge, "")
	if err != nil {
		return Page{}, fmt.Errorf("get links after %q: %w", cursor, err)
	}
	if len(urls) == 0 {
		return Page{}, nil
	}
	log.Printf("batch urls=%d", len(urls))

	last := urls[len(urls)-1]
	if prefix, ok := linkurl.BasePrefix(last); ok {
		log.Printf("requesting urls with common prefix=%s after=%s", prefix, last)
		more, err := p.source.GetLinksForCheck(ctx, last, 0, p.recheckAge, prefix)
		if err != nil {
			return Page{}, fmt.Errorf("get links with prefix %q: %w", prefix, err)
		}
		urls = append(urls, more...)
		log.Printf("batch total urls=%d", len(urls))
	}

	return Page{URLs: urls, Cursor: urls[len(urls)-1]}, nil
}
