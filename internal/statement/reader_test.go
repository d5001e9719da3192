package statement

import (
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func readAll(t *testing.T, script string) []Statement {
	t.Helper()
	r := NewScriptReader(strings.NewReader(script))
	var out []Statement
	for {
		s, hasMore, err := r.Next()
		require.NoError(t, err)
		if !hasMore {
			return out
		}
		out = append(out, s)
	}
}

func TestScriptReaderExampleScript(t *testing.T) {
	t.Parallel()
	script := `-- seed
CREATE TABLE Test (Value1 INT, Value2 TEXT);
Insert Into Test (Value1,Value2) VALUES (5,'hellooo');

/* read
   it back */
SELECT * FROM Test
`
	got := readAll(t, script)
	require.Len(t, got, 3)

	assert.Equal(t, Statement{Text: "CREATE TABLE Test (Value1 INT, Value2 TEXT)", Kind: KindExec, Key: "test", Line: 2}, got[0])
	assert.Equal(t, Statement{Text: "Insert Into Test (Value1,Value2) VALUES (5,'hellooo')", Kind: KindExec, Key: "test", Line: 3}, got[1])
	assert.Equal(t, Statement{Text: "SELECT * FROM Test", Kind: KindQuery, Key: "test", Line: 7}, got[2])
}

func TestScriptReaderQuotedSemicolons(t *testing.T) {
	t.Parallel()
	script := "INSERT INTO t VALUES ('a;b', \"c;d\", `e;f`, 'it''s', 'x\\';y');SELECT 2"
	got := readAll(t, script)
	require.Len(t, got, 2)
	assert.Equal(t, "INSERT INTO t VALUES ('a;b', \"c;d\", `e;f`, 'it''s', 'x\\';y')", got[0].Text)
	assert.Equal(t, "SELECT 2", got[1].Text)
}

func TestScriptReaderSkipsEmptyStatements(t *testing.T) {
	t.Parallel()
	got := readAll(t, ";;  ;\n-- only a comment;\n;SELECT 1;;")
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT 1", got[0].Text)
	assert.Equal(t, 3, got[0].Line)
}

func TestScriptReaderKeepsMinusAndSlash(t *testing.T) {
	t.Parallel()
	got := readAll(t, "SELECT 4 - 2, 8 / 2")
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT 4 - 2, 8 / 2", got[0].Text)
}

func TestScriptReaderUnterminatedQuote(t *testing.T) {
	t.Parallel()
	r := NewScriptReader(strings.NewReader("SELECT 1;\nSELECT 'oops"))

	s, hasMore, err := r.Next()
	assert.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, "SELECT 1", s.Text)

	s, hasMore, err = r.Next()
	assert.Error(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, s)
	snaps.MatchSnapshot(t, err.Error())

	// the reader stays finished
	_, hasMore, err = r.Next()
	assert.NoError(t, err)
	assert.False(t, hasMore)
}

func TestScriptReaderUnterminatedQuoteReportsOpeningLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		script string
		line   string
	}{
		{"SELECT 1,\n'oops", "line 2: unterminated '"},
		{"SELECT 'a\nb',\n\n\"oops", "line 4: unterminated \""},
		{"\n\nINSERT INTO t VALUES (`x", "line 3: unterminated `"},
	}

	for _, test := range tests {
		_, _, err := NewScriptReader(strings.NewReader(test.script)).Next()
		assert.EqualError(t, err, test.line, test.script)
	}
}

func TestScriptReaderUnterminatedComment(t *testing.T) {
	t.Parallel()
	r := NewScriptReader(strings.NewReader("SELECT 1 /* never closed"))
	_, hasMore, err := r.Next()
	assert.False(t, hasMore)
	assert.ErrorContains(t, err, "unterminated comment")
}

// For any list of simple statements, joining them with ';' and reading them back is lossless
func TestScriptReaderSplitProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		want := make([]string, n)
		for i := range want {
			table := rapid.StringMatching(`[a-z][a-z0-9_]{0,10}`).Draw(t, "table")
			value := rapid.StringMatching(`[a-z ;]{0,10}`).Draw(t, "value")
			want[i] = "INSERT INTO " + table + " VALUES ('" + value + "')"
		}

		r := NewScriptReader(strings.NewReader(strings.Join(want, ";\n")))
		for i := range want {
			s, hasMore, err := r.Next()
			assert.NoError(t, err)
			assert.True(t, hasMore)
			assert.Equal(t, want[i], s.Text)
			assert.Equal(t, i+1, s.Line)
			assert.Equal(t, KindExec, s.Kind)
		}

		_, hasMore, err := r.Next()
		assert.NoError(t, err)
		assert.False(t, hasMore)
	})
}
