package store

import (
	"context"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// Boundary mirrors tools.Boundary without importing the tools package (which
// depends on store for its registry wiring, not the other way around).
type Boundary struct {
	RestrictsTools      []string
	RestrictsCategories []string
	Reason              string
}

// ActiveBoundaries returns every memory of category "boundary", which the
// tool policy pipeline treats as a standing restriction (§4.C step 3).
func (a *Adapter) ActiveBoundaries(ctx context.Context) ([]Boundary, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT restricts_tools, restricts_categories, content
		FROM memories WHERE category = 'boundary'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()

	var out []Boundary
	for rows.Next() {
		var b Boundary
		if err := rows.Scan(&b.RestrictsTools, &b.RestrictsCategories, &b.Reason); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
