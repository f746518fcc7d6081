package store

import "strings"

// InBatches calls fn with consecutive slices of rows holding at most size
// elements each. A non-positive size sends everything in one batch. It bounds
// the length of UNWIND parameter lists.
func InBatches[T any](rows []T, size int, fn func(batch []T) error) error {
	if size <= 0 {
		size = len(rows)
	}
	for len(rows) > 0 {
		n := min(size, len(rows))
		if err := fn(rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
	}
	return nil
}

// EntityNames prepares entity names for a graph lookup. Names are trimmed,
// blanks are dropped and repeats removed in first-seen order. Matching stays
// case sensitive because Entity nodes are merged by exact name.
func EntityNames(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
