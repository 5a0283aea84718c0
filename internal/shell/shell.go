// Package shell is a line-oriented SQL console for inspecting loaded tables.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
)

// StatementTimeout bounds a single statement.
const StatementTimeout = 30 * time.Second

const (
	prompt         = "flatload=> "
	continuePrompt = "flatload-> "
)

// Querier runs SQL; *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Shell reads statements from in and writes results to out.
type Shell struct {
	db  Querier
	in  io.Reader
	out io.Writer
}

// New creates a Shell.
func New(db Querier, in io.Reader, out io.Writer) *Shell {
	return &Shell{db: db, in: in, out: out}
}

// Run reads until EOF, \q or ctx is done. Statement errors are printed and
// do not stop the shell.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	var sp splitter

	fmt.Fprint(s.out, prompt)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()

		if sp.empty() {
			if cmd := strings.TrimSpace(line); strings.HasPrefix(cmd, `\`) {
				if quit := s.meta(cmd); quit {
					return nil
				}
				fmt.Fprint(s.out, prompt)
				continue
			}
		}

		for _, stmt := range sp.feed(line) {
			s.Execute(ctx, stmt)
		}
		if sp.empty() {
			fmt.Fprint(s.out, prompt)
		} else {
			fmt.Fprint(s.out, continuePrompt)
		}
	}
	fmt.Fprintln(s.out)
	return scanner.Err()
}

// meta handles backslash commands and reports whether to quit.
func (s *Shell) meta(cmd string) bool {
	switch cmd {
	case `\q`:
		return true
	case `\?`:
		fmt.Fprintln(s.out, `Terminate statements with ";". \q quits.`)
	default:
		fmt.Fprintf(s.out, "unknown command %s; try \\?\n", cmd)
	}
	return false
}

// Execute runs one statement and prints its result or error.
func (s *Shell) Execute(ctx context.Context, stmt string) {
	ctx, cancel := context.WithTimeout(ctx, StatementTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		fmt.Fprintf(s.out, "ERROR: %v\n", err)
		return
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if len(fields) == 0 {
		rows.Close()
		if err := rows.Err(); err != nil {
			fmt.Fprintf(s.out, "ERROR: %v\n", err)
			return
		}
		fmt.Fprintln(s.out, rows.CommandTag().String())
		return
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	names := make([]string, len(fields))
	rule := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		rule[i] = strings.Repeat("-", max(len(f.Name), 3))
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	fmt.Fprintln(tw, strings.Join(rule, "\t"))

	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			tw.Flush()
			fmt.Fprintf(s.out, "ERROR: %v\n", err)
			return
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = format(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
		n++
	}
	tw.Flush()

	if err := rows.Err(); err != nil {
		fmt.Fprintf(s.out, "ERROR: %v\n", err)
		return
	}
	if n == 1 {
		fmt.Fprintln(s.out, "(1 row)")
	} else {
		fmt.Fprintf(s.out, "(%d rows)\n", n)
	}
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
	case string:
		return strings.NewReplacer("\t", `\t`, "\n", `\n`).Replace(v)
	default:
		return fmt.Sprint(v)
	}
}

// splitter accumulates input lines into statements terminated by ';'.
// Semicolons inside quotes and "--" comments do not terminate.
type splitter struct {
	buf   strings.Builder
	quote byte
}

func (sp *splitter) empty() bool {
	return sp.quote == 0 && strings.TrimSpace(sp.buf.String()) == ""
}

// feed adds a line and returns the statements it completes.
func (sp *splitter) feed(line string) []string {
	var out []string
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case sp.quote != 0:
			if c == sp.quote {
				sp.quote = 0
			}
		case c == '\'' || c == '"':
			sp.quote = c
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			i = len(line)
			continue
		case c == ';':
			if stmt := strings.TrimSpace(sp.buf.String()); stmt != "" {
				out = append(out, stmt)
			}
			sp.buf.Reset()
			continue
		}
		sp.buf.WriteByte(c)
	}
	if sp.buf.Len() > 0 {
		sp.buf.WriteByte('\n')
	}
	return out
}
