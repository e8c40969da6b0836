package graph_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"linkchecker/internal/graph"
	"linkchecker/internal/models"
	"linkchecker/mocks"
)

func TestBuildStatusQueryWithPermanentRedirect(t *testing.T) {
	redirect := 301
	loc := "https://a.com/new"
	event := models.NewLinkStatusEvent("run-1", models.LinkCheckResult{
		URL: "http://a.com/old", Status: 200, Redirect: &redirect, Location: &loc,
	}, time.Unix(0, 0).UTC())

	query, params := graph.BuildStatusQuery(event)
	if !strings.Contains(query, "MERGE (l)-[r:MOVED_PERMANENTLY]->(t)") {
		t.Fatalf("expected redirect edge in query: %s", query)
	}
	if params["url"] != "http://a.com/old" || params["location"] != loc || params["redirect"] != int64(301) {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params["status"] != int64(200) || params["status_name"] != "200" || params["run_id"] != "run-1" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params["size"] != nil {
		t.Fatalf("expected nil size, got %v", params["size"])
	}
}

func TestBuildStatusQueryWithoutRedirect(t *testing.T) {
	event := models.NewLinkStatusEvent("run-2", models.FailedResult("http://a.com/", models.StatusCannotConnect), time.Now())

	query, params := graph.BuildStatusQuery(event)
	if strings.Contains(query, "MERGE (t:Link") {
		t.Fatalf("unexpected redirect target in query: %s", query)
	}
	if !strings.Contains(query, "DELETE old") {
		t.Fatalf("expected stale edge cleanup in query: %s", query)
	}
	if params["location"] != nil || params["status"] != int64(-4) || params["status_name"] != "cannot_connect" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestWriteStatusRunsWriteSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)

	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, config neo4j.SessionConfig) graph.SessionRunner {
			if config.AccessMode != neo4j.AccessModeWrite {
				t.Fatalf("expected write session, got %v", config.AccessMode)
			}
			return session
		},
	)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, nil)
	session.EXPECT().Close(gomock.Any()).Return(nil)

	w := graph.NewWriter(driver)
	event := models.NewLinkStatusEvent("run", models.LinkCheckResult{URL: "http://a.com/", Status: 404}, time.Now())
	if err := w.WriteStatus(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteStatusPropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, errors.New("neo4j down"))
	session.EXPECT().Close(gomock.Any()).Return(nil)

	w := graph.NewWriter(driver)
	event := models.NewLinkStatusEvent("run", models.LinkCheckResult{URL: "http://a.com/", Status: 200}, time.Now())
	if err := w.WriteStatus(context.Background(), event); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestWriteStatusIgnoresEmptyURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	driver := mocks.NewMockDriverSessioner(ctrl)
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Times(0)

	if err := graph.NewWriter(driver).WriteStatus(context.Background(), models.LinkStatusEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
