package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outbound-dialer/pkg/utils"

	"github.com/google/uuid"
)

// NOTE: This repository assumes the tables from migrations/0001_init.sql:
// - campaigns
// - contacts (call_id nullable, ordered by created_at, id)
// - call_logs (UNIQUE call_id)

// PostgresStore implements Store on database/sql with the pgx driver.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const campaignColumns = `
id, owner_id, title, COALESCE(description, ''), agent_profile_id, COALESCE(outbound_number, ''),
local_touch_enabled, status, progress, has_run, created_at, updated_at`

func scanCampaign(row interface{ Scan(dest ...any) error }) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Description,
		&c.AgentID,
		&c.OutboundNumber,
		&c.LocalTouchEnabled,
		&c.Status,
		&c.Progress,
		&c.HasRun,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *PostgresStore) GetCampaign(ctx context.Context, ownerID, id string) (Campaign, error) {
	q := `SELECT` + campaignColumns + `
FROM campaigns
WHERE owner_id = $1 AND id = $2`
	c, err := scanCampaign(s.db.QueryRowContext(ctx, q, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, ownerID, id string) (Status, error) {
	const q = `SELECT status FROM campaigns WHERE owner_id = $1 AND id = $2`
	var st Status
	if err := s.db.QueryRowContext(ctx, q, ownerID, id).Scan(&st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return st, nil
}

func (s *PostgresStore) MarkStarted(ctx context.Context, ownerID, id string) error {
	const q = `
UPDATE campaigns
SET has_run = true, status = $3, updated_at = $4
WHERE owner_id = $1 AND id = $2 AND has_run = false
`
	res, err := s.db.ExecContext(ctx, q, ownerID, id, StatusInProgress, s.clock().UTC())
	if err != nil {
		return err
	}
	if err := utils.RowsAffectedOne(res, ErrAlreadyRun); err != nil {
		if !errors.Is(err, ErrAlreadyRun) {
			return err
		}
		// Zero rows: either the campaign is missing or it lost the has_run race.
		if _, gerr := s.GetStatus(ctx, ownerID, id); gerr != nil {
			return gerr
		}
		return ErrAlreadyRun
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, ownerID, id string, status Status) (Campaign, error) {
	if !status.Valid() {
		return Campaign{}, ErrInvalidArgument
	}
	q := `
UPDATE campaigns
SET status = $3, updated_at = $4
WHERE owner_id = $1 AND id = $2 AND (status <> $5 OR $3 = $5)
RETURNING` + campaignColumns
	c, err := scanCampaign(s.db.QueryRowContext(ctx, q, ownerID, id, status, s.clock().UTC(), StatusCompleted))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, err
	}
	if _, gerr := s.GetStatus(ctx, ownerID, id); gerr != nil {
		return Campaign{}, gerr
	}
	return Campaign{}, ErrCompleted
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, ownerID, id string, st RunState) error {
	const q = `
UPDATE campaigns
SET status = COALESCE($3, status),
    progress = COALESCE($4, progress),
    updated_at = $5
WHERE owner_id = $1 AND id = $2
`
	var status, progress any
	if st.Status != nil {
		status = string(*st.Status)
	}
	if st.Progress != nil {
		progress = *st.Progress
	}
	res, err := s.db.ExecContext(ctx, q, ownerID, id, status, progress, s.clock().UTC())
	if err != nil {
		return err
	}
	return utils.RowsAffectedOne(res, ErrNotFound)
}

func (s *PostgresStore) ListRecoverable(ctx context.Context) ([]Campaign, error) {
	q := `SELECT` + campaignColumns + `
FROM campaigns
WHERE has_run = true AND status IN ($1, $2)
ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, StatusInProgress, StatusPaused)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c Campaign, contacts []Contact) error {
	if c.OwnerID == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const insCampaign = `
INSERT INTO campaigns (
  id, owner_id, title, description, agent_profile_id, outbound_number,
  local_touch_enabled, status, progress, has_run, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
		if _, err := tx.ExecContext(ctx, insCampaign,
			c.ID,
			c.OwnerID,
			c.Title,
			c.Description,
			c.AgentID,
			c.OutboundNumber,
			c.LocalTouchEnabled,
			c.Status,
			c.Progress,
			c.HasRun,
			c.CreatedAt,
			now,
		); err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}

		const insContact = `
INSERT INTO contacts (id, campaign_id, phone_number, first_name, dynamic_variables, call_id, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6, ''),$7)
`
		for i, ct := range contacts {
			if ct.ID == "" {
				ct.ID = uuid.NewString()
			}
			if ct.CreatedAt.IsZero() {
				ct.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			}
			vars, err := encodeVars(ct.DynamicVariables)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insContact,
				ct.ID, c.ID, ct.PhoneNumber, ct.FirstName, vars, ct.CallID, ct.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert contact: %w", err)
			}
		}
		return nil
	})
}

const contactColumns = `
id, campaign_id, phone_number, COALESCE(first_name, ''), COALESCE(dynamic_variables, '{}'::jsonb),
COALESCE(call_id, ''), created_at`

func scanContact(row interface{ Scan(dest ...any) error }) (Contact, error) {
	var (
		ct   Contact
		vars []byte
	)
	if err := row.Scan(&ct.ID, &ct.CampaignID, &ct.PhoneNumber, &ct.FirstName, &vars, &ct.CallID, &ct.CreatedAt); err != nil {
		return Contact{}, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &ct.DynamicVariables); err != nil {
			return Contact{}, fmt.Errorf("decode dynamic_variables: %w", err)
		}
	}
	return ct, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, campaignID string) ([]Contact, error) {
	q := `SELECT` + contactColumns + `
FROM contacts
WHERE campaign_id = $1
ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contact, 0)
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetContact(ctx context.Context, contactID string) (Contact, error) {
	q := `SELECT` + contactColumns + ` FROM contacts WHERE id = $1`
	ct, err := scanContact(s.db.QueryRowContext(ctx, q, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrContactNotFound
		}
		return Contact{}, err
	}
	return ct, nil
}

func (s *PostgresStore) SetContactCallID(ctx context.Context, contactID, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE contacts
SET call_id = $2
WHERE id = $1 AND COALESCE(call_id, '') = ''
`
	res, err := s.db.ExecContext(ctx, q, contactID, callID)
	if err != nil {
		return err
	}
	if err := utils.RowsAffectedOne(res, ErrContactAlreadyCall); err == nil || !errors.Is(err, ErrContactAlreadyCall) {
		return err
	}
	ct, err := s.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if ct.CallID == callID {
		return nil
	}
	return ErrContactAlreadyCall
}

func (s *PostgresStore) InsertCallLog(ctx context.Context, l CallLog) error {
	if l.CallID == "" || l.CampaignID == "" {
		return ErrInvalidArgument
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.clock().UTC()
	}
	const q = `
INSERT INTO call_logs (id, campaign_id, contact_id, phone_number, first_name, call_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := s.db.ExecContext(ctx, q, l.ID, l.CampaignID, l.ContactID, l.PhoneNumber, l.FirstName, l.CallID, l.CreatedAt)
	if err != nil && utils.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *PostgresStore) ListCallLogs(ctx context.Context, campaignID string) ([]CallLog, error) {
	const q = `
SELECT id, campaign_id, contact_id, phone_number, COALESCE(first_name, ''), call_id,
       COALESCE(disconnection_reason, ''), COALESCE(transcript, ''), COALESCE(summary, ''),
       COALESCE(recording_url, ''), start_time, end_time, COALESCE(duration_seconds, 0),
       COALESCE(user_sentiment, ''), COALESCE(direction, ''), analyzed_at, created_at
FROM call_logs
WHERE campaign_id = $1
ORDER BY created_at, id
`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallLog, 0)
	for rows.Next() {
		var (
			l                      CallLog
			start, end, analyzedAt sql.NullTime
		)
		if err := rows.Scan(
			&l.ID,
			&l.CampaignID,
			&l.ContactID,
			&l.PhoneNumber,
			&l.FirstName,
			&l.CallID,
			&l.DisconnectionReason,
			&l.Transcript,
			&l.Summary,
			&l.RecordingURL,
			&start,
			&end,
			&l.DurationSeconds,
			&l.UserSentiment,
			&l.Direction,
			&analyzedAt,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		l.StartTime = nullTimePtr(start)
		l.EndTime = nullTimePtr(end)
		l.AnalyzedAt = nullTimePtr(analyzedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCallLogDetails(ctx context.Context, logID string, d CallLogEnrichment) error {
	const q = `
UPDATE call_logs
SET disconnection_reason = $2,
    transcript = $3,
    summary = $4,
    recording_url = $5,
    start_time = $6,
    end_time = $7,
    duration_seconds = $8,
    user_sentiment = $9,
    direction = $10,
    analyzed_at = $11
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		logID,
		d.DisconnectionReason,
		d.Transcript,
		d.Summary,
		d.RecordingURL,
		d.StartTime,
		d.EndTime,
		d.DurationSeconds,
		d.UserSentiment,
		d.Direction,
		d.AnalyzedAt,
	)
	if err != nil {
		return err
	}
	return utils.RowsAffectedOne(res, ErrCallLogNotFound)
}

func encodeVars(vars map[string]string) ([]byte, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("encode dynamic_variables: %w", err)
	}
	return raw, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
