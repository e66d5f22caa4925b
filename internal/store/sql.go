package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQL implements Store against MariaDB using hand-written parameterized
// queries, mirroring internal/plugins/audit/repository.go: no ORM, a
// scan helper per row shape, explicit error wrapping with %w.
type SQL struct {
	db *sql.DB
}

// NewSQL wraps an existing *sql.DB (see internal/database.NewMariaDB).
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) InsertEvent(ctx context.Context, row EventRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, tenant_id, template_id, data_json, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.TenantID, row.TemplateID, row.DataJSON, row.Slug, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *SQL) GetEvent(ctx context.Context, tenantID, id string) (*EventRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, template_id, data_json, slug, created_at, updated_at
		FROM events WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return scanEventRow(row)
}

func (s *SQL) GetEventBySlug(ctx context.Context, tenantID, slug string) (*EventRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, template_id, data_json, slug, created_at, updated_at
		FROM events WHERE tenant_id = ? AND slug = ?`, tenantID, slug)
	return scanEventRow(row)
}

func scanEventRow(row *sql.Row) (*EventRow, bool, error) {
	var e EventRow
	err := row.Scan(&e.ID, &e.TenantID, &e.TemplateID, &e.DataJSON, &e.Slug, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scanning event row: %w", err)
	}
	return &e, true, nil
}

func (s *SQL) ListEvents(ctx context.Context, f EventFilter) ([]EventRow, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE tenant_id = ?`, f.TenantID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, template_id, data_json, slug, created_at, updated_at
		FROM events WHERE tenant_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		f.TenantID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TemplateID, &e.DataJSON, &e.Slug, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning event row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating event rows: %w", err)
	}
	return out, total, nil
}

func (s *SQL) UpdateEvent(ctx context.Context, row EventRow) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events SET data_json = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		row.DataJSON, row.UpdatedAt, row.TenantID, row.ID)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	return nil
}

func (s *SQL) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE tenant_id = ? AND slug = ?`, tenantID, slug,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking slug existence: %w", err)
	}
	return count > 0, nil
}

func (s *SQL) GetSponsor(ctx context.Context, tenantID, id string) (*SponsorRow, bool, error) {
	var row SponsorRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(logo_url, ''), COALESCE(website, '')
		FROM sponsors WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&row.ID, &row.TenantID, &row.Name, &row.LogoURL, &row.Website)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting sponsor: %w", err)
	}
	return &row, true, nil
}

func (s *SQL) ListSponsors(ctx context.Context, tenantID string, ids []string) ([]SponsorRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]any, 0, len(ids)+1)
	placeholders = append(placeholders, tenantID)
	query := `SELECT id, tenant_id, name, COALESCE(logo_url, ''), COALESCE(website, '') FROM sponsors WHERE tenant_id = ? AND id IN (`
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders = append(placeholders, id)
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("listing sponsors: %w", err)
	}
	defer rows.Close()

	var out []SponsorRow
	for rows.Next() {
		var row SponsorRow
		if err := rows.Scan(&row.ID, &row.TenantID, &row.Name, &row.LogoURL, &row.Website); err != nil {
			return nil, fmt.Errorf("scanning sponsor row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQL) ListAllSponsors(ctx context.Context, tenantID string) ([]SponsorRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(logo_url, ''), COALESCE(website, '')
		FROM sponsors WHERE tenant_id = ? ORDER BY id ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing all sponsors: %w", err)
	}
	defer rows.Close()

	var out []SponsorRow
	for rows.Next() {
		var row SponsorRow
		if err := rows.Scan(&row.ID, &row.TenantID, &row.Name, &row.LogoURL, &row.Website); err != nil {
			return nil, fmt.Errorf("scanning sponsor row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQL) InsertShortlink(ctx context.Context, row ShortlinkRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shortlinks (token, target_url, event_id, sponsor_id, surface, tenant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Token, row.TargetURL, row.EventID, row.SponsorID, row.Surface, row.TenantID, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting shortlink: %w", err)
	}
	return nil
}

func (s *SQL) GetShortlink(ctx context.Context, token string) (*ShortlinkRow, bool, error) {
	var row ShortlinkRow
	var eventID, sponsorID, surface sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT token, target_url, event_id, sponsor_id, surface, tenant_id, created_at
		FROM shortlinks WHERE token = ?`, token,
	).Scan(&row.Token, &row.TargetURL, &eventID, &sponsorID, &surface, &row.TenantID, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting shortlink: %w", err)
	}
	row.EventID, row.SponsorID, row.Surface = eventID.String, sponsorID.String, surface.String
	return &row, true, nil
}

func (s *SQL) HasShortlinksForEvent(ctx context.Context, tenantID, eventID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM shortlinks WHERE tenant_id = ? AND event_id = ? LIMIT 1`,
		tenantID, eventID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking shortlinks for event: %w", err)
	}
	return true, nil
}

func (s *SQL) AppendAnalytics(ctx context.Context, row AnalyticsRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics (ts, event_id, surface, metric, sponsor_id, value, token, user_agent, session_id, visible_sponsor_ids_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp, row.EventID, row.Surface, row.Metric, row.SponsorID, row.Value,
		row.Token, row.UserAgent, row.SessionID, row.VisibleSponsorIDsJSON)
	if err != nil {
		return fmt.Errorf("appending analytics row: %w", err)
	}
	return nil
}

func (s *SQL) ListAnalyticsByEvent(ctx context.Context, eventID string) ([]AnalyticsRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, event_id, surface, metric, COALESCE(sponsor_id,''), value,
		       COALESCE(token,''), COALESCE(user_agent,''), COALESCE(session_id,''), COALESCE(visible_sponsor_ids_json,'')
		FROM analytics WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing analytics: %w", err)
	}
	defer rows.Close()

	var out []AnalyticsRow
	for rows.Next() {
		var r AnalyticsRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.EventID, &r.Surface, &r.Metric, &r.SponsorID,
			&r.Value, &r.Token, &r.UserAgent, &r.SessionID, &r.VisibleSponsorIDsJSON); err != nil {
			return nil, fmt.Errorf("scanning analytics row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) ListAnalyticsBySponsor(ctx context.Context, sponsorID string, from, to time.Time) ([]AnalyticsRow, error) {
	query := `
		SELECT id, ts, event_id, surface, metric, COALESCE(sponsor_id,''), value,
		       COALESCE(token,''), COALESCE(user_agent,''), COALESCE(session_id,''), COALESCE(visible_sponsor_ids_json,'')
		FROM analytics WHERE sponsor_id = ?`
	args := []any{sponsorID}
	if !from.IsZero() {
		query += " AND ts >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND ts <= ?"
		args = append(args, to)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing analytics by sponsor: %w", err)
	}
	defer rows.Close()

	var out []AnalyticsRow
	for rows.Next() {
		var r AnalyticsRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.EventID, &r.Surface, &r.Metric, &r.SponsorID,
			&r.Value, &r.Token, &r.UserAgent, &r.SessionID, &r.VisibleSponsorIDsJSON); err != nil {
			return nil, fmt.Errorf("scanning analytics row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) AppendDiagnostic(ctx context.Context, row DiagnosticRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (ts, level, where_, msg, meta_json) VALUES (?, ?, ?, ?, ?)`,
		row.Ts, row.Level, row.Where, row.Msg, row.MetaJSON)
	if err != nil {
		return fmt.Errorf("appending diagnostic row: %w", err)
	}
	return nil
}

func (s *SQL) CountDiagnostics(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnostics`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting diagnostics: %w", err)
	}
	return n, nil
}

func (s *SQL) CountDiagnosticsToday(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM diagnostics WHERE DATE(ts) = DATE(?)`, day,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting today's diagnostics: %w", err)
	}
	return n, nil
}

func (s *SQL) DeleteOldestDiagnostics(ctx context.Context, n int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM diagnostics ORDER BY ts ASC LIMIT ?`, n)
	if err != nil {
		return fmt.Errorf("deleting oldest diagnostics: %w", err)
	}
	return nil
}

func (s *SQL) DeleteOldestDiagnosticsOnDay(ctx context.Context, day time.Time, n int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM diagnostics WHERE DATE(ts) = DATE(?) ORDER BY ts ASC LIMIT ?`, day, n)
	if err != nil {
		return fmt.Errorf("deleting oldest diagnostics for day: %w", err)
	}
	return nil
}
