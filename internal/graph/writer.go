package graph

import (
	"context"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"linkchecker/internal/models"
)

// Writer mirrors committed link statuses into Neo4j: one (:Link) node per URL and a
// MOVED_PERMANENTLY edge to the last permanent redirect target, if any.
type Writer struct {
	driver DriverSessioner
}

func NewWriter(driver DriverSessioner) *Writer {
	return &Writer{driver: driver}
}

// WriteStatus upserts the link node for event and replaces its permanent redirect edge.
func (w *Writer) WriteStatus(ctx context.Context, event models.LinkStatusEvent) error {
	if event.URL == "" {
		return nil
	}
	query, params := BuildStatusQuery(event)
	return w.runWrite(ctx, query, params)
}

func (w *Writer) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			log.Printf("neo4j session close error: %v", err)
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

// BuildStatusQuery returns the Cypher statement and parameters for one status event.
// A stale MOVED_PERMANENTLY edge is dropped when the target changed or disappeared.
func BuildStatusQuery(event models.LinkStatusEvent) (string, map[string]any) {
	query := "MERGE (l:Link {url: $url}) " +
		"SET l.status = $status, l.status_name = $status_name, " +
		"l.redirect = $redirect, l.size = $size, " +
		"l.checked_at = $checked_at, l.run_id = $run_id " +
		"WITH l " +
		"OPTIONAL MATCH (l)-[old:MOVED_PERMANENTLY]->(prev:Link) " +
		"WHERE $location IS NULL OR prev.url <> $location " +
		"DELETE old"
	if event.Location != nil {
		query += " WITH DISTINCT l " +
			"MERGE (t:Link {url: $location}) " +
			"MERGE (l)-[r:MOVED_PERMANENTLY]->(t) " +
			"SET r.run_id = $run_id"
	}

	var redirect any
	if event.Redirect != nil {
		redirect = int64(*event.Redirect)
	}
	var size any
	if event.Size != nil {
		size = *event.Size
	}
	var location any
	if event.Location != nil {
		location = *event.Location
	}
	params := map[string]any{
		"url":         event.URL,
		"status":      int64(event.Status),
		"status_name": event.Status.String(),
		"redirect":    redirect,
		"size":        size,
		"location":    location,
		"checked_at":  event.CheckedAt,
		"run_id":      event.RunID,
	}
	return query, params
}
