package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID       *int64 `db:"id"`
	Email    string `db:",unique"`
	Age      int
	Nickname *string
	Active   bool
	Balance  float64
	Joined   time.Time
	Tags     []string
	Token    uuid.UUID
	Scratch  string `db:"-"`
}

func (account) TableName() string { return "accounts" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestContainer opens a fresh SQLite database in a temp directory.
func createTestContainer(t *testing.T, cfg Config) *Container {
	t.Helper()
	cfg.Driver = "sqlite3"
	cfg.DSN = filepath.Join(t.TempDir(), "test-"+uuid.NewString()+".db")
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// createAccountStore returns a set up account store.
func createAccountStore(t *testing.T, cfg Config) *PersistentStore[account] {
	t.Helper()
	s, err := For[account](createTestContainer(t, cfg))
	require.NoError(t, err)
	require.NoError(t, s.Setup(context.Background()))
	return s
}

func newAccount(email string, age int) *account {
	return &account{
		Email:   email,
		Age:     age,
		Active:  age%2 == 0,
		Balance: float64(age) * 1.5,
		Joined:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Tags:    []string{"new"},
		Token:   uuid.New(),
	}
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func ptr[T any](v T) *T { return &v }
