package statement

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reader yields statements until hasMore is false
type Reader interface {
	Next() (Statement, bool, error)
}

// ScriptReader splits a SQL script on ';'
// Semicolons inside quotes, backticks and comments do not split, comments are dropped
type ScriptReader struct {
	r    *bufio.Reader
	line int
	done bool
}

var _ Reader = (*ScriptReader)(nil)

// NewScriptReader reads statements from r
func NewScriptReader(r io.Reader) *ScriptReader {
	return &ScriptReader{r: bufio.NewReader(r), line: 1}
}

// Next returns the next non-empty statement
// At the end of the script it returns hasMore false and a nil error
func (s *ScriptReader) Next() (Statement, bool, error) {
	for !s.done {
		text, line, err := s.scan()
		if err != nil {
			s.done = true
			return Statement{}, false, err
		}
		if strings.TrimSpace(text) != "" {
			return New(text, line), true, nil
		}
	}

	return Statement{}, false, nil
}

// scan reads up to the next top-level ';' or EOF
func (s *ScriptReader) scan() (string, int, error) {
	var sb strings.Builder
	var quote rune
	quoteLine := 0
	start := 0

	for {
		c, _, err := s.r.ReadRune()
		if err == io.EOF {
			s.done = true
			if quote != 0 {
				return "", start, fmt.Errorf("line %d: unterminated %c", quoteLine, quote)
			}
			return sb.String(), start, nil
		}
		if err != nil {
			return "", start, fmt.Errorf("line %d: %w", s.line, err)
		}

		if start == 0 && !isSpace(c) && c != '-' && c != '/' {
			start = s.line
		}
		if c == '\n' {
			s.line++
		}

		switch {
		case quote != 0:
			sb.WriteRune(c)
			if c == '\\' && quote != '`' {
				if err := s.copyEscaped(&sb); err != nil {
					return "", start, err
				}
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			quoteLine = s.line
			sb.WriteRune(c)
		case c == '-' && s.peek('-'):
			s.skipLine()
			sb.WriteRune('\n')
		case c == '/' && s.peek('*'):
			if err := s.skipBlock(); err != nil {
				return "", start, err
			}
			sb.WriteRune(' ')
		case c == ';':
			return sb.String(), start, nil
		default:
			if start == 0 && (c == '-' || c == '/') {
				start = s.line
			}
			sb.WriteRune(c)
		}
	}
}

func (s *ScriptReader) copyEscaped(sb *strings.Builder) error {
	c, _, err := s.r.ReadRune()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if c == '\n' {
		s.line++
	}
	sb.WriteRune(c)
	return nil
}

// peek consumes the next rune when it equals want
func (s *ScriptReader) peek(want rune) bool {
	c, _, err := s.r.ReadRune()
	if err != nil {
		return false
	}
	if c == want {
		return true
	}
	_ = s.r.UnreadRune()
	return false
}

func (s *ScriptReader) skipLine() {
	for {
		c, _, err := s.r.ReadRune()
		if err != nil {
			return
		}
		if c == '\n' {
			s.line++
			return
		}
	}
}

func (s *ScriptReader) skipBlock() error {
	opened := s.line
	var prev rune
	for {
		c, _, err := s.r.ReadRune()
		if err == io.EOF {
			return fmt.Errorf("line %d: unterminated comment", opened)
		}
		if err != nil {
			return err
		}
		if c == '\n' {
			s.line++
		}
		if prev == '*' && c == '/' {
			return nil
		}
		prev = c
	}
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
