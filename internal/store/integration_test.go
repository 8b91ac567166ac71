//go:build integration

package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/newsrag/internal/server"
	"github.com/mohammad-safakhou/newsrag/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "newsrag",
			"POSTGRES_PASSWORD": "newsrag",
			"POSTGRES_DB":       "newsrag",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	dsn := fmt.Sprintf("postgres://newsrag:newsrag@%s:%s/newsrag?sslmode=disable", host, port.Port())
	return pg, dsn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}

func TestInteractionLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	var migErr error
	for i := 0; i < 6; i++ {
		if migErr = server.Migrate(findMigrationsDir(t), dsn, "up", 0); migErr == nil {
			break
		}
		time.Sleep(300 * time.Millisecond)
	}
	if migErr != nil {
		t.Fatalf("migrate up failed after retries: %v", migErr)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	for i, q := range []string{"first question", "second question"} {
		_, err := st.SaveInteraction(ctx, store.Interaction{
			SessionID:    "session-a",
			UserQuery:    q,
			LLMResponse:  fmt.Sprintf("answer %d", i),
			ResponseTime: 0.25,
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := st.SaveInteraction(ctx, store.Interaction{SessionID: "session-b", UserQuery: "q", LLMResponse: "a", ResponseTime: 1}); err != nil {
		t.Fatalf("save other session: %v", err)
	}

	got, err := st.ListInteractions(ctx, "session-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].UserQuery != "first question" || got[1].UserQuery != "second question" {
		t.Fatalf("unexpected history: %+v", got)
	}
	if got[0].ResponseTime != 0.25 {
		t.Fatalf("unexpected response time %v", got[0].ResponseTime)
	}

	deleted, err := st.DeleteInteractions(ctx, "session-a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	got, err = st.ListInteractions(ctx, "session-a")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history after delete, got %d", len(got))
	}
	other, err := st.ListInteractions(ctx, "session-b")
	if err != nil || len(other) != 1 {
		t.Fatalf("expected other session untouched, got %d (%v)", len(other), err)
	}
}
