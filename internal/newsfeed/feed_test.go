package newsfeed

import (
	"context"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/paddockai/apex/config"
	"github.com/paddockai/apex/internal/store"
)

func newTestFeed(t *testing.T) (*Feed, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFeed(&store.Store{DB: db}, config.NewsConfig{}, nil), mock
}

func TestIngestHeadlineOnly(t *testing.T) {
	f, mock := newTestFeed(t)

	mock.ExpectExec(`INSERT INTO news_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev, err := f.Ingest(context.Background(), "  Mercedes brings major floor upgrade  ", "autosport", "", "technical")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if ev.Headline != "Mercedes brings major floor upgrade" {
		t.Fatalf("headline not trimmed: %q", ev.Headline)
	}
	if ev.Processed {
		t.Fatal("new events must start unprocessed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIngestRejectsEmptyHeadline(t *testing.T) {
	f, _ := newTestFeed(t)
	if _, err := f.Ingest(context.Background(), "   ", "", "", ""); err == nil {
		t.Fatal("expected error for empty headline")
	}
}

func TestBuildContextListsHeadlines(t *testing.T) {
	f, mock := newTestFeed(t)

	mock.ExpectQuery(`SELECT .+ FROM news_events WHERE processed = FALSE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "headline", "body", "source", "url", "category", "processed", "created_at"}).
			AddRow("n1", "FIA tightens wing tests", "", "fia.com", "", "technical", false, time.Now()).
			AddRow("n2", "Rain expected at Spa", "", "", "", "prediction", false, time.Now()))

	got := f.BuildContext(context.Background(), 5)
	if !strings.Contains(got, "FIA tightens wing tests (fia.com)") {
		t.Fatalf("missing sourced headline: %q", got)
	}
	if !strings.Contains(got, "Rain expected at Spa\n") {
		t.Fatalf("missing plain headline: %q", got)
	}
}

func TestBuildContextEmptyQueue(t *testing.T) {
	f, mock := newTestFeed(t)

	mock.ExpectQuery(`SELECT .+ FROM news_events WHERE processed = FALSE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "headline", "body", "source", "url", "category", "processed", "created_at"}))

	if got := f.BuildContext(context.Background(), 5); got != "" {
		t.Fatalf("expected empty context got %q", got)
	}
}
