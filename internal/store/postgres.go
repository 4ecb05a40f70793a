package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/db"
	"github.com/sells-group/sales-tracker/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID is the advisory lock key held while migrating.
const migrationLockID = 7720451

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies pending embedded migrations in lexicographic order. All
// files run in one transaction holding an advisory lock, so concurrent
// deploys serialise and a failed file leaves nothing half-applied.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin migrate")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit migrate")
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: applied migrations iterate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Provisional sales ---

var provisionalInsertColumns = []string{
	"id", "source_tag", "external_id", "unit", "house_number", "street_name", "suburb", "postcode",
	"property_type", "price", "sold_date", "address_key", "status", "listing_url", "raw_payload", "ingested_at",
}

func (s *PostgresStore) InsertProvisionalSales(ctx context.Context, recs []model.ProvisionalRecord) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		if r.ExternalID == "" || r.SourceTag == "" {
			zap.L().Warn("postgres: skipping provisional record without identity",
				zap.String("source_tag", r.SourceTag),
				zap.String("external_id", r.ExternalID),
			)
			continue
		}
		var raw any
		if len(r.RawPayload) > 0 {
			raw = []byte(r.RawPayload)
		}
		var sold any
		if r.SoldDate != nil && !r.SoldDate.IsZero() {
			sold = model.CivilDate(*r.SoldDate)
		}
		rows = append(rows, []any{
			uuid.New().String(), r.SourceTag, r.ExternalID,
			r.Address.Unit, r.Address.HouseNumber, r.Address.StreetName, r.Address.Suburb, r.Address.Postcode,
			string(r.PropertyType), r.Price, sold, provisionalKey(r.Address),
			string(model.ProvisionalUnconfirmed), r.ListingURL, raw, now,
		})
	}

	n, err := db.InsertStaged(ctx, s.pool, db.Staged{
		Table:   "provisional_sales",
		Columns: provisionalInsertColumns,
		Keys:    []string{"source_tag", "external_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert provisional sales")
	}
	return int(n), nil
}

func (s *PostgresStore) UnconfirmedProvisionalSales(ctx context.Context, filter model.ProvisionalFilter) ([]model.ProvisionalSale, error) {
	query := `SELECT ` + provisionalColumns + ` FROM provisional_sales WHERE status = 'unconfirmed'`
	args := []any{}
	argIdx := 1

	if filter.Suburb != "" {
		query += fmt.Sprintf(` AND lower(suburb) = $%d`, argIdx)
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Suburb)))
		argIdx++
	}
	if filter.PropertyType != "" {
		query += fmt.Sprintf(` AND property_type = $%d`, argIdx)
		args = append(args, string(filter.PropertyType))
		argIdx++
	}
	if filter.PriceMin != nil {
		query += fmt.Sprintf(` AND price >= $%d`, argIdx)
		args = append(args, *filter.PriceMin)
		argIdx++
	}
	if filter.PriceMax != nil {
		query += fmt.Sprintf(` AND price <= $%d`, argIdx)
		args = append(args, *filter.PriceMax)
	}
	query += ` ORDER BY sold_date DESC NULLS LAST, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unconfirmed provisional")
	}
	defer rows.Close()

	var out []model.ProvisionalSale
	for rows.Next() {
		var (
			p   model.ProvisionalSale
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.SourceTag,
			&p.Address.Unit, &p.Address.HouseNumber, &p.Address.StreetName, &p.Address.Suburb, &p.Address.Postcode,
			&p.PropertyType, &p.Price, &p.SoldDate, &p.AddressKey, &p.MatchedSaleID, &p.Status, &p.ListingURL, &raw, &p.IngestedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provisional")
		}
		if len(raw) > 0 {
			p.RawPayload = raw
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unconfirmed provisional iterate")
}

func (s *PostgresStore) ConfirmProvisionalSale(ctx context.Context, provisionalID, authoritativeID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provisional_sales SET status = 'confirmed', matched_sale_id = $1, confirmed_at = now()
		 WHERE id = $2 AND status = 'unconfirmed'`,
		authoritativeID, provisionalID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: confirm provisional %s", provisionalID)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Authoritative sales ---

var authoritativeInsertColumns = []string{
	"id", "unit", "house_number", "street_name", "suburb", "postcode", "property_type", "contract_date",
	"price", "area_sqm", "zone_code", "year_built", "description", "listing_url",
}

func (s *PostgresStore) InsertAuthoritativeSales(ctx context.Context, sales []model.AuthoritativeSale) (int, error) {
	rows := make([][]any, 0, len(sales))
	for _, a := range sales {
		rows = append(rows, []any{
			a.ID, a.Address.Unit, a.Address.HouseNumber, a.Address.StreetName, a.Address.Suburb, a.Address.Postcode,
			string(a.PropertyType), model.CivilDate(a.ContractDate),
			a.Price, a.AreaSqm, a.ZoneCode, a.YearBuilt, a.Description, a.ListingURL,
		})
	}

	n, err := db.InsertStaged(ctx, s.pool, db.Staged{
		Table:   "authoritative_sales",
		Columns: authoritativeInsertColumns,
		Keys:    []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert authoritative sales")
	}
	return int(n), nil
}

func (s *PostgresStore) MatchCandidates(ctx context.Context, suburb string, propertyType model.PropertyType, from, to time.Time) ([]model.AuthoritativeSale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+authoritativeColumns+` FROM authoritative_sales a
		 WHERE lower(a.suburb) = $1 AND a.property_type = $2 AND a.contract_date BETWEEN $3 AND $4
		 ORDER BY a.contract_date, a.id`,
		strings.ToLower(strings.TrimSpace(suburb)), string(propertyType),
		model.CivilDate(from), model.CivilDate(to),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match candidates")
	}
	return collectAuthoritativePG(rows)
}

func (s *PostgresStore) UnclassifiedSales(ctx context.Context, filter model.SaleFilter, limit int) ([]model.AuthoritativeSale, error) {
	where, args := pgSaleFilter(filter, 1)
	query := `SELECT ` + authoritativeColumns + ` FROM authoritative_sales a
		LEFT JOIN sale_classifications c ON c.sale_id = a.id
		WHERE c.sale_id IS NULL` + where + fmt.Sprintf(`
		ORDER BY a.contract_date DESC, a.id LIMIT $%d`, len(args)+1)
	args = append(args, pgLimit(limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unclassified sales")
	}
	return collectAuthoritativePG(rows)
}

func (s *PostgresStore) SalePrices(ctx context.Context, filter model.SaleFilter, mode model.PriceMode) ([]model.SalePrice, error) {
	where, args := pgSaleFilter(filter, 1)
	query := `SELECT a.id, a.contract_date, a.price FROM authoritative_sales a`
	if mode == model.PriceModeReviewed {
		query += ` JOIN sale_classifications c ON c.sale_id = a.id AND c.use_in_median`
	}
	query += ` WHERE true` + where + ` ORDER BY a.contract_date, a.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sale prices")
	}
	defer rows.Close()

	var out []model.SalePrice
	for rows.Next() {
		var p model.SalePrice
		if err := rows.Scan(&p.SaleID, &p.ContractDate, &p.Price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sale price")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: sale prices iterate")
}

// --- Classifications ---

func (s *PostgresStore) InsertClassification(ctx context.Context, c model.SaleClassification) (bool, error) {
	if err := checkInsertable(c); err != nil {
		return false, err
	}
	var reason *string
	if c.Outcome.Kind() == model.OutcomeExcluded {
		r := c.Outcome.Reason()
		reason = &r
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO sale_classifications
			(sale_id, address, zoning, year_built, has_keywords, is_auto_excluded, exclusion_reason,
			 review_status, listing_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (sale_id) DO NOTHING`,
		c.SaleID, c.Address, c.Enrichment.Zoning, c.Enrichment.YearBuilt, c.Enrichment.HasKeywords,
		c.Outcome.Kind() == model.OutcomeExcluded, reason, string(model.ReviewPending), c.ListingURL,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert classification %s", c.SaleID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetClassification(ctx context.Context, saleID string) (*model.SaleClassification, error) {
	var (
		c          model.SaleClassification
		excluded   bool
		reason     *string
		status     model.ReviewStatus
		reviewedAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT sale_id, address, zoning, year_built, has_keywords, is_auto_excluded, exclusion_reason,
		        review_status, reviewed_at, review_notes, listing_url, review_sent_at, created_at, updated_at
		 FROM sale_classifications WHERE sale_id = $1`,
		saleID,
	).Scan(&c.SaleID, &c.Address, &c.Enrichment.Zoning, &c.Enrichment.YearBuilt, &c.Enrichment.HasKeywords,
		&excluded, &reason, &status, &reviewedAt, &c.ReviewNotes, &c.ListingURL, &c.ReviewSentAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: classification %s", saleID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get classification %s", saleID)
	}
	c.Outcome = model.OutcomeFromColumns(excluded, reason, status, reviewedAt)
	return &c, nil
}

func (s *PostgresStore) ApplyVerdict(ctx context.Context, saleID string, v model.Verdict, note string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sale_classifications
		 SET reviewed_at   = CASE WHEN review_status = $1 THEN reviewed_at ELSE $2 END,
		     updated_at    = CASE WHEN review_status = $1 THEN updated_at ELSE $2 END,
		     review_status = $1,
		     review_notes  = COALESCE($3, review_notes)
		 WHERE sale_id = $4 AND NOT is_auto_excluded`,
		string(v.Status()), at.UTC(), noteOrNil(note), saleID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply verdict %s", saleID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var excluded bool
	err = s.pool.QueryRow(ctx, `SELECT is_auto_excluded FROM sale_classifications WHERE sale_id = $1`, saleID).Scan(&excluded)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return eris.Wrapf(ErrNotFound, "postgres: classification %s", saleID)
	case err != nil:
		return eris.Wrapf(err, "postgres: check classification %s", saleID)
	case excluded:
		return eris.Wrapf(ErrExcluded, "postgres: classification %s", saleID)
	}
	return nil
}

func (s *PostgresStore) PendingReviews(ctx context.Context, filter model.SaleFilter, limit int) ([]model.PendingReview, error) {
	where, args := pgSaleFilter(filter, 1)
	query := `SELECT a.id, a.unit, a.house_number, a.street_name, a.suburb, a.postcode, a.price, a.area_sqm,
			a.contract_date, c.zoning, c.year_built, c.has_keywords, COALESCE(c.listing_url, a.listing_url)
		FROM sale_classifications c
		JOIN authoritative_sales a ON a.id = c.sale_id
		WHERE c.review_status = 'pending' AND NOT c.is_auto_excluded` + where + fmt.Sprintf(`
		ORDER BY a.contract_date DESC, a.id LIMIT $%d`, len(args)+1)
	args = append(args, pgLimit(limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending reviews")
	}
	defer rows.Close()

	var out []model.PendingReview
	for rows.Next() {
		var p model.PendingReview
		if err := rows.Scan(&p.SaleID, &p.Address.Unit, &p.Address.HouseNumber, &p.Address.StreetName,
			&p.Address.Suburb, &p.Address.Postcode, &p.Price, &p.AreaSqm, &p.ContractDate,
			&p.Enrichment.Zoning, &p.Enrichment.YearBuilt, &p.Enrichment.HasKeywords, &p.ListingURL,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending review")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: pending reviews iterate")
}

// --- Review digests ---

func (s *PostgresStore) CreateDigest(ctx context.Context, segment string, saleIDs []string, at time.Time) (*model.ReviewDigest, error) {
	d := &model.ReviewDigest{ID: uuid.New().String(), Segment: segment, SaleIDs: saleIDs, CreatedAt: at.UTC()}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin digest")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO review_digests (id, segment, sale_ids, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Segment, saleIDs, d.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert digest")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sale_classifications SET review_sent_at = $1 WHERE sale_id = ANY($2)`,
		d.CreatedAt, saleIDs,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: stamp review_sent_at")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit digest")
	}
	return d, nil
}

func (s *PostgresStore) GetDigest(ctx context.Context, id string) (*model.ReviewDigest, error) {
	var d model.ReviewDigest
	err := s.pool.QueryRow(ctx,
		`SELECT id, segment, sale_ids, created_at FROM review_digests WHERE id = $1`, id,
	).Scan(&d.ID, &d.Segment, &d.SaleIDs, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: digest %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get digest %s", id)
	}
	return &d, nil
}

// --- Operations ---

func (s *PostgresStore) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{Provisional: make(map[model.ProvisionalStatus]int)}

	if err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM authoritative_sales),
			(SELECT COUNT(*) FROM authoritative_sales a
			 LEFT JOIN sale_classifications c ON c.sale_id = a.id WHERE c.sale_id IS NULL),
			COUNT(*) FILTER (WHERE is_auto_excluded),
			COUNT(*) FILTER (WHERE NOT is_auto_excluded AND review_status = 'pending'),
			COUNT(*) FILTER (WHERE NOT is_auto_excluded AND review_status = 'comparable'),
			COUNT(*) FILTER (WHERE NOT is_auto_excluded AND review_status = 'not_comparable')
		 FROM sale_classifications`,
	).Scan(&c.AuthoritativeSales, &c.Unclassified, &c.Excluded, &c.Pending, &c.Comparable, &c.NotComparable); err != nil {
		return nil, eris.Wrap(err, "postgres: count sales")
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM provisional_sales GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count provisional")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status model.ProvisionalStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provisional count")
		}
		c.Provisional[status] = n
	}
	return c, eris.Wrap(rows.Err(), "postgres: count provisional iterate")
}

func (s *PostgresStore) AcquireJobLock(ctx context.Context, name string) (func(context.Context) error, error) {
	return db.TryJobLock(ctx, s.pool, name)
}

// helpers

func collectAuthoritativePG(rows pgx.Rows) ([]model.AuthoritativeSale, error) {
	defer rows.Close()
	var out []model.AuthoritativeSale
	for rows.Next() {
		var a model.AuthoritativeSale
		if err := rows.Scan(&a.ID, &a.Address.Unit, &a.Address.HouseNumber, &a.Address.StreetName, &a.Address.Suburb,
			&a.Address.Postcode, &a.PropertyType, &a.ContractDate, &a.Price, &a.AreaSqm, &a.ZoneCode, &a.YearBuilt,
			&a.Description, &a.ListingURL,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan authoritative")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: authoritative iterate")
}

// pgSaleFilter renders f as " AND ..." clauses over alias a, numbering
// placeholders from argIdx.
func pgSaleFilter(f model.SaleFilter, argIdx int) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	add := func(clause string, v any) {
		fmt.Fprintf(&b, clause, argIdx)
		args = append(args, v)
		argIdx++
	}
	if len(f.Suburbs) > 0 {
		subs := make([]string, len(f.Suburbs))
		for i, sub := range f.Suburbs {
			subs[i] = strings.ToLower(strings.TrimSpace(sub))
		}
		add(` AND lower(a.suburb) = ANY($%d)`, subs)
	}
	if f.PropertyType != "" {
		add(` AND a.property_type = $%d`, string(f.PropertyType))
	}
	if f.AreaMin != nil {
		add(` AND a.area_sqm >= $%d`, *f.AreaMin)
	}
	if f.AreaMax != nil {
		add(` AND a.area_sqm <= $%d`, *f.AreaMax)
	}
	if !f.From.IsZero() {
		add(` AND a.contract_date >= $%d`, model.CivilDate(f.From))
	}
	if !f.To.IsZero() {
		add(` AND a.contract_date <= $%d`, model.CivilDate(f.To))
	}
	return b.String(), args
}

// pgLimit maps a non-positive limit to NULL, which Postgres treats as no limit.
func pgLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
