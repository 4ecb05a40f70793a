package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sales-tracker/internal/db"
	"github.com/sells-group/sales-tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Per-connection pragmas only stick with a single connection.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

//go:embed sqlite_migrations/*.sql
var sqliteMigrationFS embed.FS


// Migrate runs every embedded SQLite schema file in lexicographic order.
// The files only use IF NOT EXISTS statements so reruns are no-ops.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(sqliteMigrationFS, "sqlite_migrations")
	if err != nil {
		return eris.Wrap(err, "sqlite: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		data, err := sqliteMigrationFS.ReadFile("sqlite_migrations/" + entry.Name())
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", entry.Name())
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", entry.Name())
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Provisional sales ---

func (s *SQLiteStore) InsertProvisionalSales(ctx context.Context, recs []model.ProvisionalRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin provisional insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO provisional_sales
		(id, source_tag, external_id, unit, house_number, street_name, suburb, postcode,
		 property_type, price, sold_date, address_key, status, listing_url, raw_payload, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_tag, external_id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare provisional insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for _, r := range recs {
		if r.ExternalID == "" || r.SourceTag == "" {
			zap.L().Warn("sqlite: skipping provisional record without identity",
				zap.String("source_tag", r.SourceTag),
				zap.String("external_id", r.ExternalID),
			)
			continue
		}
		var raw *string
		if len(r.RawPayload) > 0 {
			p := string(r.RawPayload)
			raw = &p
		}
		res, err := stmt.ExecContext(ctx,
			uuid.New().String(), r.SourceTag, r.ExternalID,
			r.Address.Unit, r.Address.HouseNumber, r.Address.StreetName, r.Address.Suburb, r.Address.Postcode,
			string(r.PropertyType), r.Price, dateString(r.SoldDate), provisionalKey(r.Address),
			string(model.ProvisionalUnconfirmed), r.ListingURL, raw, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert provisional %s/%s", r.SourceTag, r.ExternalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit provisional insert")
	}
	return inserted, nil
}

const provisionalColumns = `id, source_tag, unit, house_number, street_name, suburb, postcode,
	property_type, price, sold_date, address_key, matched_sale_id, status, listing_url, raw_payload, ingested_at`

func (s *SQLiteStore) UnconfirmedProvisionalSales(ctx context.Context, filter model.ProvisionalFilter) ([]model.ProvisionalSale, error) {
	query := `SELECT ` + provisionalColumns + ` FROM provisional_sales WHERE status = 'unconfirmed'`
	var args []any
	if filter.Suburb != "" {
		query += ` AND lower(suburb) = ?`
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Suburb)))
	}
	if filter.PropertyType != "" {
		query += ` AND property_type = ?`
		args = append(args, string(filter.PropertyType))
	}
	if filter.PriceMin != nil {
		query += ` AND price >= ?`
		args = append(args, *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		query += ` AND price <= ?`
		args = append(args, *filter.PriceMax)
	}
	query += ` ORDER BY sold_date DESC NULLS LAST, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unconfirmed provisional")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProvisionalSale
	for rows.Next() {
		var (
			p        model.ProvisionalSale
			soldDate *string
			raw      *string
		)
		if err := rows.Scan(&p.ID, &p.SourceTag,
			&p.Address.Unit, &p.Address.HouseNumber, &p.Address.StreetName, &p.Address.Suburb, &p.Address.Postcode,
			&p.PropertyType, &p.Price, &soldDate, &p.AddressKey, &p.MatchedSaleID, &p.Status, &p.ListingURL, &raw, &p.IngestedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provisional")
		}
		if p.SoldDate, err = parseDatePtr(soldDate); err != nil {
			zap.L().Warn("sqlite: unreadable sold date", zap.String("id", p.ID), zap.Error(err))
		}
		if raw != nil {
			p.RawPayload = json.RawMessage(*raw)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unconfirmed provisional iterate")
}

func (s *SQLiteStore) ConfirmProvisionalSale(ctx context.Context, provisionalID, authoritativeID string) (bool, error) {
	// One statement sets status and link together.
	res, err := s.db.ExecContext(ctx,
		`UPDATE provisional_sales SET status = 'confirmed', matched_sale_id = ?, confirmed_at = ?
		 WHERE id = ? AND status = 'unconfirmed'`,
		authoritativeID, time.Now().UTC(), provisionalID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: confirm provisional %s", provisionalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

// --- Authoritative sales ---

func (s *SQLiteStore) InsertAuthoritativeSales(ctx context.Context, sales []model.AuthoritativeSale) (int, error) {
	if len(sales) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin authoritative insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO authoritative_sales
		(id, unit, house_number, street_name, suburb, postcode, property_type, contract_date,
		 price, area_sqm, zone_code, year_built, description, listing_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare authoritative insert")
	}
	defer stmt.Close() //nolint:errcheck

	inserted := 0
	for _, a := range sales {
		res, err := stmt.ExecContext(ctx,
			a.ID, a.Address.Unit, a.Address.HouseNumber, a.Address.StreetName, a.Address.Suburb, a.Address.Postcode,
			string(a.PropertyType), a.ContractDate.UTC().Format(model.DateLayout),
			a.Price, a.AreaSqm, a.ZoneCode, a.YearBuilt, a.Description, a.ListingURL,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert authoritative %s", a.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit authoritative insert")
	}
	return inserted, nil
}

const authoritativeColumns = `a.id, a.unit, a.house_number, a.street_name, a.suburb, a.postcode, a.property_type,
	a.contract_date, a.price, a.area_sqm, a.zone_code, a.year_built, a.description, a.listing_url`

func (s *SQLiteStore) MatchCandidates(ctx context.Context, suburb string, propertyType model.PropertyType, from, to time.Time) ([]model.AuthoritativeSale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authoritativeColumns+` FROM authoritative_sales a
		 WHERE lower(a.suburb) = ? AND a.property_type = ? AND a.contract_date BETWEEN ? AND ?
		 ORDER BY a.contract_date, a.id`,
		strings.ToLower(strings.TrimSpace(suburb)), string(propertyType),
		from.UTC().Format(model.DateLayout), to.UTC().Format(model.DateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match candidates")
	}
	return collectAuthoritative(rows)
}

func (s *SQLiteStore) UnclassifiedSales(ctx context.Context, filter model.SaleFilter, limit int) ([]model.AuthoritativeSale, error) {
	where, args := sqliteSaleFilter(filter)
	query := `SELECT ` + authoritativeColumns + ` FROM authoritative_sales a
		LEFT JOIN sale_classifications c ON c.sale_id = a.id
		WHERE c.sale_id IS NULL` + where + `
		ORDER BY a.contract_date DESC, a.id LIMIT ?`
	args = append(args, sqliteLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unclassified sales")
	}
	return collectAuthoritative(rows)
}

func (s *SQLiteStore) SalePrices(ctx context.Context, filter model.SaleFilter, mode model.PriceMode) ([]model.SalePrice, error) {
	where, args := sqliteSaleFilter(filter)
	query := `SELECT a.id, a.contract_date, a.price FROM authoritative_sales a`
	if mode == model.PriceModeReviewed {
		query += ` JOIN sale_classifications c ON c.sale_id = a.id AND c.use_in_median = 1`
	}
	query += ` WHERE 1=1` + where + ` ORDER BY a.contract_date, a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sale prices")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SalePrice
	for rows.Next() {
		var (
			p        model.SalePrice
			contract string
		)
		if err := rows.Scan(&p.SaleID, &contract, &p.Price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sale price")
		}
		if p.ContractDate, err = model.ParseDate(contract); err != nil {
			return nil, eris.Wrapf(err, "sqlite: contract date for %s", p.SaleID)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: sale prices iterate")
}

// --- Classifications ---

func (s *SQLiteStore) InsertClassification(ctx context.Context, c model.SaleClassification) (bool, error) {
	if err := checkInsertable(c); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	var reason *string
	if c.Outcome.Kind() == model.OutcomeExcluded {
		r := c.Outcome.Reason()
		reason = &r
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sale_classifications
			(sale_id, address, zoning, year_built, has_keywords, is_auto_excluded, exclusion_reason,
			 review_status, listing_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sale_id) DO NOTHING`,
		c.SaleID, c.Address, c.Enrichment.Zoning, c.Enrichment.YearBuilt, c.Enrichment.HasKeywords,
		c.Outcome.Kind() == model.OutcomeExcluded, reason, string(model.ReviewPending), c.ListingURL, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert classification %s", c.SaleID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetClassification(ctx context.Context, saleID string) (*model.SaleClassification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sale_id, address, zoning, year_built, has_keywords, is_auto_excluded, exclusion_reason,
		        review_status, reviewed_at, review_notes, listing_url, review_sent_at, created_at, updated_at
		 FROM sale_classifications WHERE sale_id = ?`,
		saleID,
	)
	var (
		c          model.SaleClassification
		excluded   bool
		reason     *string
		status     model.ReviewStatus
		reviewedAt *time.Time
	)
	err := row.Scan(&c.SaleID, &c.Address, &c.Enrichment.Zoning, &c.Enrichment.YearBuilt, &c.Enrichment.HasKeywords,
		&excluded, &reason, &status, &reviewedAt, &c.ReviewNotes, &c.ListingURL, &c.ReviewSentAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: classification %s", saleID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get classification %s", saleID)
	}
	c.Outcome = model.OutcomeFromColumns(excluded, reason, status, reviewedAt)
	return &c, nil
}

func (s *SQLiteStore) ApplyVerdict(ctx context.Context, saleID string, v model.Verdict, note string, at time.Time) error {
	status := string(v.Status())
	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sale_classifications
		 SET reviewed_at   = CASE WHEN review_status = ? THEN reviewed_at ELSE ? END,
		     updated_at    = CASE WHEN review_status = ? THEN updated_at ELSE ? END,
		     review_status = ?,
		     review_notes  = COALESCE(?, review_notes)
		 WHERE sale_id = ? AND is_auto_excluded = 0`,
		status, at, status, at, status, noteOrNil(note), saleID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply verdict %s", saleID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return nil
	}

	var excluded bool
	err = s.db.QueryRowContext(ctx, `SELECT is_auto_excluded FROM sale_classifications WHERE sale_id = ?`, saleID).Scan(&excluded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return eris.Wrapf(ErrNotFound, "sqlite: classification %s", saleID)
	case err != nil:
		return eris.Wrapf(err, "sqlite: check classification %s", saleID)
	case excluded:
		return eris.Wrapf(ErrExcluded, "sqlite: classification %s", saleID)
	}
	return nil
}

func (s *SQLiteStore) PendingReviews(ctx context.Context, filter model.SaleFilter, limit int) ([]model.PendingReview, error) {
	where, args := sqliteSaleFilter(filter)
	query := `SELECT a.id, a.unit, a.house_number, a.street_name, a.suburb, a.postcode, a.price, a.area_sqm,
			a.contract_date, c.zoning, c.year_built, c.has_keywords, COALESCE(c.listing_url, a.listing_url)
		FROM sale_classifications c
		JOIN authoritative_sales a ON a.id = c.sale_id
		WHERE c.review_status = 'pending' AND c.is_auto_excluded = 0` + where + `
		ORDER BY a.contract_date DESC, a.id LIMIT ?`
	args = append(args, sqliteLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending reviews")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PendingReview
	for rows.Next() {
		var (
			p        model.PendingReview
			contract string
		)
		if err := rows.Scan(&p.SaleID, &p.Address.Unit, &p.Address.HouseNumber, &p.Address.StreetName,
			&p.Address.Suburb, &p.Address.Postcode, &p.Price, &p.AreaSqm, &contract,
			&p.Enrichment.Zoning, &p.Enrichment.YearBuilt, &p.Enrichment.HasKeywords, &p.ListingURL,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending review")
		}
		if p.ContractDate, err = model.ParseDate(contract); err != nil {
			return nil, eris.Wrapf(err, "sqlite: contract date for %s", p.SaleID)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pending reviews iterate")
}

// --- Review digests ---

func (s *SQLiteStore) CreateDigest(ctx context.Context, segment string, saleIDs []string, at time.Time) (*model.ReviewDigest, error) {
	ids, err := json.Marshal(saleIDs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal digest ids")
	}
	d := &model.ReviewDigest{ID: uuid.New().String(), Segment: segment, SaleIDs: saleIDs, CreatedAt: at.UTC()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin digest")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO review_digests (id, segment, sale_ids, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Segment, string(ids), d.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert digest")
	}
	for _, id := range saleIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sale_classifications SET review_sent_at = ? WHERE sale_id = ?`,
			d.CreatedAt, id,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: stamp review_sent_at %s", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit digest")
	}
	return d, nil
}

func (s *SQLiteStore) GetDigest(ctx context.Context, id string) (*model.ReviewDigest, error) {
	var (
		d   model.ReviewDigest
		ids string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, segment, sale_ids, created_at FROM review_digests WHERE id = ?`, id,
	).Scan(&d.ID, &d.Segment, &ids, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: digest %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get digest %s", id)
	}
	if err := json.Unmarshal([]byte(ids), &d.SaleIDs); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal digest %s", id)
	}
	return &d, nil
}

// --- Operations ---

func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{Provisional: make(map[model.ProvisionalStatus]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authoritative_sales`).Scan(&c.AuthoritativeSales); err != nil {
		return nil, eris.Wrap(err, "sqlite: count authoritative")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authoritative_sales a
		 LEFT JOIN sale_classifications c ON c.sale_id = a.id WHERE c.sale_id IS NULL`,
	).Scan(&c.Unclassified); err != nil {
		return nil, eris.Wrap(err, "sqlite: count unclassified")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN is_auto_excluded = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_auto_excluded = 0 AND review_status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_auto_excluded = 0 AND review_status = 'comparable' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_auto_excluded = 0 AND review_status = 'not_comparable' THEN 1 ELSE 0 END), 0)
		 FROM sale_classifications`,
	).Scan(&c.Excluded, &c.Pending, &c.Comparable, &c.NotComparable); err != nil {
		return nil, eris.Wrap(err, "sqlite: count classifications")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM provisional_sales GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count provisional")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var (
			status model.ProvisionalStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provisional count")
		}
		c.Provisional[status] = n
	}
	return c, eris.Wrap(rows.Err(), "sqlite: count provisional iterate")
}

// AcquireJobLock records a named lock row. Rows older than staleLockAfter
// are treated as abandoned by a crashed holder.
func (s *SQLiteStore) AcquireJobLock(ctx context.Context, name string) (func(context.Context) error, error) {
	holder := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin lock")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM job_locks WHERE name = ? AND acquired_at < ?`,
		name, now.Add(-staleLockAfter).Unix(),
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: clear stale lock %s", name)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO job_locks (name, holder, acquired_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		name, holder, now.Unix(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: acquire lock %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, eris.Wrapf(db.ErrLocked, "sqlite: lock %s", name)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit lock")
	}

	return func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM job_locks WHERE name = ? AND holder = ?`, name, holder)
		return eris.Wrapf(err, "sqlite: release lock %s", name)
	}, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAuthoritative(row scannable) (model.AuthoritativeSale, error) {
	var (
		a        model.AuthoritativeSale
		contract string
	)
	if err := row.Scan(&a.ID, &a.Address.Unit, &a.Address.HouseNumber, &a.Address.StreetName, &a.Address.Suburb,
		&a.Address.Postcode, &a.PropertyType, &contract, &a.Price, &a.AreaSqm, &a.ZoneCode, &a.YearBuilt,
		&a.Description, &a.ListingURL,
	); err != nil {
		return a, eris.Wrap(err, "sqlite: scan authoritative")
	}
	d, err := model.ParseDate(contract)
	if err != nil {
		return a, &badRowError{id: a.ID, err: eris.Wrapf(err, "sqlite: contract date for %s", a.ID)}
	}
	a.ContractDate = d
	return a, nil
}

// badRowError marks a row that scanned but holds a value the model rejects.
// Listings skip such rows instead of failing the whole query.
type badRowError struct {
	id  string
	err error
}

func (e *badRowError) Error() string { return e.err.Error() }
func (e *badRowError) Unwrap() error { return e.err }

func collectAuthoritative(rows *sql.Rows) ([]model.AuthoritativeSale, error) {
	defer rows.Close() //nolint:errcheck
	var out []model.AuthoritativeSale
	for rows.Next() {
		a, err := scanAuthoritative(rows)
		var bad *badRowError
		switch {
		case errors.As(err, &bad):
			zap.L().Warn("sqlite: skipping authoritative sale", zap.String("sale_id", bad.id), zap.Error(err))
			continue
		case err != nil:
			return nil, err
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: authoritative iterate")
}

// sqliteSaleFilter renders f as " AND ..." clauses over alias a.
func sqliteSaleFilter(f model.SaleFilter) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	if len(f.Suburbs) > 0 {
		b.WriteString(` AND lower(a.suburb) IN (`)
		for i, sub := range f.Suburbs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, strings.ToLower(strings.TrimSpace(sub)))
		}
		b.WriteString(")")
	}
	if f.PropertyType != "" {
		b.WriteString(` AND a.property_type = ?`)
		args = append(args, string(f.PropertyType))
	}
	if f.AreaMin != nil {
		b.WriteString(` AND a.area_sqm >= ?`)
		args = append(args, *f.AreaMin)
	}
	if f.AreaMax != nil {
		b.WriteString(` AND a.area_sqm <= ?`)
		args = append(args, *f.AreaMax)
	}
	if !f.From.IsZero() {
		b.WriteString(` AND a.contract_date >= ?`)
		args = append(args, f.From.UTC().Format(model.DateLayout))
	}
	if !f.To.IsZero() {
		b.WriteString(` AND a.contract_date <= ?`)
		args = append(args, f.To.UTC().Format(model.DateLayout))
	}
	return b.String(), args
}

// sqliteLimit maps a non-positive limit to SQLite's "no limit".
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
