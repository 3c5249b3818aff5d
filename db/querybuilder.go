package db

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

type filterBuilder struct {
	mu sync.Mutex

	where []string
	args  []any
	pos   int
}

func (q *filterBuilder) Where() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.where) == 0 {
		return "1 = 1"
	}

	return strings.Join(q.where, " AND ")
}

func (q *filterBuilder) Args() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.args)
}

// AddConstraint inserts a new constraint with the correct positional parameters.
// The `wh` string MUST have `%s` for each position to be replaced by a positional parameter.
func (q *filterBuilder) AddConstraint(wh string, args ...any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// If no parameters are added
	if len(args) == 0 {
		q.where = append(q.where, strings.TrimSpace(wh))
		return
	}

	positionals := []any{}
	for range args {
		positionals = append(positionals, "$"+strconv.Itoa(q.pos))
		q.pos++
	}
	q.where = append(q.where, strings.TrimSpace(fmt.Sprintf(wh, positionals...)))
	q.args = append(q.args, args...)
}

func newFilterBuilder() *filterBuilder {
	return &filterBuilder{
		where: []string{},
		args:  []any{},
		pos:   1,
	}
}
