package loader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid table name")

// PostgreSQL truncates identifiers longer than this many bytes.
const maxIdentifier = 63

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved columns every load table carries.
var reserved = map[string]bool{"load_id": true, "row_number": true}

// ValidateTable accepts letters, digits and underscores, not starting with a digit.
func ValidateTable(name string) error {
	if len(name) > maxIdentifier || !tableName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// ColumnNames turns header names into count unique lowercase identifiers.
// Missing or unusable names become column_N (1-based).
func ColumnNames(names []string, count int) []string {
	out := make([]string, count)
	seen := make(map[string]bool, count)

	for i := range count {
		var base string
		if i < len(names) {
			base = normalize(names[i])
		}
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		if reserved[base] {
			base = "src_" + base
		}

		name := base
		for n := 2; seen[name]; n++ {
			suffix := "_" + strconv.Itoa(n)
			name = truncate(base, maxIdentifier-len(suffix)) + suffix
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// normalize lowercases s and replaces runs of other characters with '_'.
func normalize(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "c_" + name
	}
	return truncate(name, maxIdentifier)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
