package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := map[string]Kind{
		"SELECT * FROM Test":                   KindQuery,
		"select 1":                             KindQuery,
		"(SELECT 1) UNION (SELECT 2)":          KindQuery,
		"WITH t AS (SELECT 1) SELECT * FROM t": KindQuery,
		"SHOW TABLES":                          KindQuery,
		"PRAGMA table_info(Test)":              KindQuery,
		"EXPLAIN SELECT 1":                     KindQuery,
		"DESCRIBE Test":                        KindQuery,
		"Insert Into Test (Value1,Value2) VALUES (5,'x')": KindExec,
		"UPDATE Test SET Value1 = 1":                      KindExec,
		"CREATE TABLE Test (Value1 INT)":                  KindExec,
		"":                                                KindExec,
	}

	for text, want := range tests {
		assert.Equal(t, want, New(text, 1).Kind, text)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"SELECT * FROM Test":                          "test",
		"Insert Into Test (Value1,Value2) VALUES (5)": "test",
		"UPDATE `Orders` SET total = 1":               "orders",
		"DELETE FROM \"Users\" WHERE id = 1":          "users",
		"CREATE TABLE IF NOT EXISTS Test (a INT)":     "test",
		"DROP TABLE Test":                             "test",
		"SELECT * FROM app.events WHERE id = 1":       "app.events",
		"SELECT 1":                                    "",
		"PRAGMA foreign_keys = ON":                    "",
	}

	for text, want := range tests {
		assert.Equal(t, want, New(text, 1).Key, text)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "query", KindQuery.String())
	assert.Equal(t, "exec", KindExec.String())
}
