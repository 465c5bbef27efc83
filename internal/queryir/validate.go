package queryir

import (
	"github.com/roach88/bandmap/internal/apierr"
)

// Validate checks the structural rules of a chain:
//  1. the chain is not empty
//  2. every link but a terminal names an entity
//  3. at most one link carries a limit or offset
//  4. a GroupBy terminal is last and follows at least one link
//
// Violations are planner bugs, so they are reported as server errors.
func Validate(chain []Link) error {
	if len(chain) == 0 {
		return apierr.ServerError("Query chain is empty.")
	}

	limited := ""
	for i := range chain {
		l := &chain[i]
		if l.IsTerminal() {
			if i != len(chain)-1 {
				return apierr.ServerError("Group by '%s' must be the last link of a query chain.", l.GroupBy)
			}
			if i == 0 {
				return apierr.ServerError("Group by '%s' has no objects to group.", l.GroupBy)
			}
		} else if l.Path == "" {
			return apierr.ServerError("Query chain link %d has no object path.", i)
		}

		if !l.HasPaging() {
			continue
		}
		name := l.Path
		if name == "" {
			name = l.GroupBy
		}
		if limited != "" {
			return apierr.ServerError("Unexpected limit/offset found while fetching object '%s' when there was already a limit/offset set on object '%s'.", name, limited)
		}
		limited = name
	}
	return nil
}
