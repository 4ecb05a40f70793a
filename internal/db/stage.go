package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Staged describes an insert-if-absent load into Table. Rows whose Keys
// already exist in the target are left untouched.
type Staged struct {
	Table   string   // may be schema-qualified, e.g. "public.authoritative_sales"
	Columns []string // column order of each row
	Keys    []string // unique constraint used for conflict detection
}

// InsertStaged COPYs rows into a transaction-scoped staging table and moves
// them into the target with ON CONFLICT DO NOTHING. It returns the number of
// rows that were new.
func InsertStaged(ctx context.Context, pool Pool, st Staged, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(st.Columns) == 0 {
		return 0, eris.Errorf("db: stage %s: no columns", st.Table)
	}
	if len(st.Keys) == 0 {
		return 0, eris.Errorf("db: stage %s: no conflict keys", st.Table)
	}

	target := tableIdent(st.Table)
	staging := stagingName(st.Table)

	var inserted int64
	err := RunInTx(ctx, pool, func(tx pgx.Tx) error {
		ddl := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			pgx.Identifier{staging}.Sanitize(), target.Sanitize())
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return eris.Wrapf(err, "db: stage %s: create staging table", st.Table)
		}

		if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, st.Columns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrapf(err, "db: stage %s: copy", st.Table)
		}

		cols := identList(st.Columns)
		move := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
			target.Sanitize(), cols, cols, pgx.Identifier{staging}.Sanitize(), identList(st.Keys))
		tag, err := tx.Exec(ctx, move)
		if err != nil {
			return eris.Wrapf(err, "db: stage %s: move rows", st.Table)
		}
		inserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, eris.Wrapf(err, "db: stage %s", st.Table)
	}
	return inserted, nil
}

func stagingName(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

func tableIdent(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func identList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(parts, ", ")
}
