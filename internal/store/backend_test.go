package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	p "github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
)

// Server backends run only when a DSN is supplied, e.g.
//
//	SERVERDATA_MYSQL_DSN='root@tcp(localhost:3306)/serverdata_test?parseTime=true'
//	SERVERDATA_POSTGRES_DSN='postgres://localhost/serverdata_test?sslmode=disable'
//
// The database name must contain "test"; its tables are dropped.
func TestBackends(t *testing.T) {
	backends := []struct {
		driver string
		env    string
	}{
		{"mysql", "SERVERDATA_MYSQL_DSN"},
		{"postgres", "SERVERDATA_POSTGRES_DSN"},
	}

	for _, b := range backends {
		t.Run(b.driver, func(t *testing.T) {
			dsn := os.Getenv(b.env)
			if dsn == "" {
				t.Skipf("%s not set", b.env)
			}
			for _, in := range []string{"scalar", "array"} {
				t.Run(in, func(t *testing.T) {
					exerciseBackend(t, Config{Driver: b.driver, DSN: dsn, InBinding: in, Logger: quietLogger()})
				})
			}
		})
	}
}

func exerciseBackend(t *testing.T, cfg Config) {
	ctx := context.Background()
	c, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Drop(ctx))
	t.Cleanup(func() { c.Drop(context.Background()) })

	s, err := For[account](c)
	require.NoError(t, err)
	require.NoError(t, s.Setup(ctx))

	recs := []*account{
		newAccount("a@example.com", 30),
		newAccount("b@example.com", 40),
		newAccount("c@example.com", 50),
	}
	require.NoError(t, s.SaveAll(ctx, recs))
	for _, rec := range recs {
		require.NotNil(t, rec.ID)
	}

	dup := newAccount("a@example.com", 1)
	require.NoError(t, s.Save(ctx, dup))
	assert.Nil(t, dup.ID)

	got, err := s.Find(ctx, *recs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
	assert.Equal(t, recs[1].Token, got.Token)
	assert.True(t, recs[1].Joined.Equal(got.Joined))

	byAge := querysql.SortBy(s.Table().Registry(), "Age", querysql.Ascending)
	listed, err := s.List(ctx, ListOptions{
		Where: p.Member(p.Field("Age"), []int{30, 50}),
		Sort:  &byAge,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, emails(listed))

	require.NoError(t, c.Truncate(ctx))
	listed, err = s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}
