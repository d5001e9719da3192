package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vrnvu/dbfacade/internal/dsn"
)

const createTest = "CREATE TABLE Test (Value1 INTEGER, Value2 TEXT)"

func openMemory(t testing.TB, ctx context.Context) *DB {
	t.Helper()
	db, err := Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(ctx, createTest)
	require.NoError(t, err)
	return db
}

func TestOpenPingAlive(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	db := openMemory(t, ctx)
	defer db.Close()

	assert.NoError(t, db.Ping(ctx))
	assert.True(t, db.Alive(ctx))
	assert.Equal(t, dsn.SQLite, db.Driver())
	assert.NotEmpty(t, db.ID())
	assert.Equal(t, 1, db.PoolStats().MaxOpenConnections)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		driver string
		dsn    string
		cause  error
	}{
		{"empty connection string", "mysql", "", dsn.ErrEmpty},
		{"unknown driver", "oracle", "scott/tiger@db", dsn.ErrUnknownDriver},
		{"malformed mysql", "mysql", "user:password@tcp(127.0.0.1:3306)", dsn.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, err := Open(t.Context(), tt.driver, tt.dsn)
			assert.Nil(t, db)
			assert.ErrorIs(t, err, ErrConnection)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestOpenUnreachableBackend(t *testing.T) {
	t.Parallel()
	db, err := Open(t.Context(), "mysql", "user:password@tcp(127.0.0.1:1)/default",
		WithConnectTimeout(time.Second))
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestOpenUnreachableBackendRetriesThenFails(t *testing.T) {
	if testing.Short() {
		t.Skip("slow: connect backoff")
	}
	t.Parallel()

	start := time.Now()
	db, err := Open(t.Context(), "mysql", "user:password@tcp(127.0.0.1:1)/default",
		WithConnectTimeout(time.Second), WithConnectRetries(2))
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrConnection)
	// 2 backoff intervals, the first one alone is at least 250ms
	assert.Greater(t, time.Since(start), 250*time.Millisecond)
}

func TestExecInsertReturnsRowsAffected(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	res, err := db.Exec(ctx, "Insert Into Test (Value1,Value2) VALUES (5,'hellooo')")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	res, err = db.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (?, ?), (?, ?), (?, ?)", 1, "a", 2, "b", 3, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)

	res, err = db.Exec(ctx, "UPDATE Test SET Value2 = 'z' WHERE Value1 < 3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestQueryReturnsEveryRowAndColumn(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(rt, "rows")

		db, err := Open(ctx, "sqlite3", ":memory:")
		require.NoError(rt, err)
		defer db.Close()
		_, err = db.Exec(ctx, createTest)
		require.NoError(rt, err)

		for i := range n {
			res, err := db.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (?, ?)", i, fmt.Sprintf("row-%d", i))
			require.NoError(rt, err)
			require.Equal(rt, int64(1), res.RowsAffected)
		}

		result, err := db.Query(ctx, "SELECT * FROM Test")
		require.NoError(rt, err)
		assert.Equal(rt, []string{"Value1", "Value2"}, result.Columns)
		assert.Equal(rt, n, result.Len())
		for _, row := range result.Rows {
			assert.Len(rt, row, 2)
			assert.Contains(rt, row, "Value1")
			assert.Contains(rt, row, "Value2")
		}
	})
}

func TestQueryConvertsValues(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	_, err := db.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (5, 'hellooo'), (6, NULL)")
	require.NoError(t, err)

	result, err := db.Query(ctx, "SELECT Value1, Value2, CAST('raw' AS BLOB) AS Value3 FROM Test WHERE Value1 >= ? ORDER BY Value1", 5)
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	assert.Equal(t, Row{"Value1": int64(5), "Value2": "hellooo", "Value3": "raw"}, result.Rows[0])
	assert.Equal(t, Row{"Value1": int64(6), "Value2": nil, "Value3": "raw"}, result.Rows[1])
}

func TestQueryEmptyTableReturnsNoRows(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	result, err := db.Query(ctx, "SELECT * FROM Test")
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Equal(t, 0, result.Len())
}

func TestMalformedStatement(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	_, err := db.Exec(ctx, "INSERT INTO")
	assert.ErrorIs(t, err, ErrQuery)

	result, err := db.Query(ctx, "SELECT * FROM Missing")
	assert.ErrorIs(t, err, ErrQuery)
	assert.Nil(t, result)

	stats := db.Stats()
	assert.Equal(t, 2, stats.FailedQueries)
	assert.Equal(t, 1, stats.NumberOfQueries) // CREATE TABLE
}

func TestEmptyStatement(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	_, err := db.Exec(ctx, "  \n ")
	assert.ErrorIs(t, err, ErrEmptyStatement)
	assert.ErrorIs(t, err, ErrQuery)

	_, err = db.Query(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyStatement)

	assert.Equal(t, 2, db.Stats().SkippedQueries)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)

	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Ping(ctx), ErrClosed)
	assert.False(t, db.Alive(ctx))

	_, err := db.Exec(ctx, "INSERT INTO Test (Value1) VALUES (1)")
	assert.ErrorIs(t, err, ErrClosed)

	result, err := db.Query(ctx, "SELECT * FROM Test")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, result)

	err = db.Tx(ctx, func(context.Context, *Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	err = db.Close()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrConnection)
	snaps.MatchSnapshot(t, err.Error())
}

func TestStatementTimeout(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db, err := Open(ctx, "sqlite3", ":memory:", WithStatementTimeout(time.Nanosecond))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Query(ctx, "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM c WHERE x < 1000000) SELECT count(*) FROM c")
	assert.ErrorIs(t, err, ErrQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTxCommit(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	err := db.Tx(ctx, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (1, 'a')"); err != nil {
			return err
		}
		result, err := tx.Query(ctx, "SELECT * FROM Test")
		if err != nil {
			return err
		}
		assert.Equal(t, 1, result.Len())
		return nil
	})
	require.NoError(t, err)

	result, err := db.Query(ctx, "SELECT * FROM Test")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())
}

func TestTxRollback(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	boom := errors.New("boom")
	err := db.Tx(ctx, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (1, 'a')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	result, err := db.Query(ctx, "SELECT * FROM Test")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Len())
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := openMemory(t, ctx)
	defer db.Close()

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				_, err := db.Exec(ctx, "INSERT INTO Test (Value1, Value2) VALUES (?, ?)", w, fmt.Sprint(i))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	result, err := db.Query(ctx, "SELECT * FROM Test")
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, result.Len())
	assert.Equal(t, workers*perWorker+2, db.Stats().NumberOfQueries)
}

func TestAbbreviate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SELECT * FROM Test", abbreviate("SELECT *\n\tFROM   Test"))

	long := abbreviate(fmt.Sprintf("SELECT '%0200d'", 0))
	assert.Len(t, long, 123)
	assert.True(t, len(long) > 3 && long[len(long)-3:] == "...")

	// 'é' is 2 bytes, the limit falls in the middle of one
	multibyte := abbreviate("SELECT 'a" + strings.Repeat("é", 100) + "'")
	assert.True(t, utf8.ValidString(multibyte))
	assert.True(t, strings.HasSuffix(multibyte, "é..."))
}
