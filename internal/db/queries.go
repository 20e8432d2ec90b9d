package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"protectbox/internal/forms"
	"protectbox/internal/model"
	"protectbox/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries implements store.Store on Postgres. Each record is kept as a JSONB
// document next to the columns it is filtered on.
type Queries struct {
	*pgxpool.Pool
}

var _ store.Store = (*Queries)(nil)

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// getDoc loads the JSON document of a row and returns its version
func (q *Queries) getDoc(ctx context.Context, table, id string, dst interface{}) (int64, error) {
	var (
		raw     []byte
		version int64
	)
	err := q.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT data, version FROM %s WHERE id = $1", table),
		id,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return 0, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	return version, nil
}

// versionMiss tells a missing row apart from a stale version after an update hit nothing
func (q *Queries) versionMiss(ctx context.Context, table, id string) error {
	var exists bool
	err := q.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table),
		id,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, store.ErrVersionConflict)
}

func (q *Queries) NextSequence(ctx context.Context, name string) (int64, error) {
	var v int64
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`,
		name,
	).Scan(&v)
	return v, err
}

// Request queries
func (q *Queries) CreateRequest(ctx context.Context, r *model.ProtectionRequest) error {
	r.Version = 1
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = q.Pool.Exec(ctx,
		`INSERT INTO protection_requests (id, status, document_number, is_active, radicado, data, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)`,
		r.ID, r.Status, r.Applicant.DocumentNumber, r.IsActive, nullIfEmpty(r.Radicado), data,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("request %s: %w", r.ID, store.ErrAlreadyExists)
	}
	return err
}

func (q *Queries) GetRequest(ctx context.Context, id string) (*model.ProtectionRequest, error) {
	var r model.ProtectionRequest
	v, err := q.getDoc(ctx, "protection_requests", id, &r)
	if err != nil {
		return nil, err
	}
	r.Version = v
	return &r, nil
}

func (q *Queries) ListRequests(ctx context.Context, f store.RequestFilter) ([]model.ProtectionRequest, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.DocumentNumber != "" {
		args = append(args, f.DocumentNumber)
		where = append(where, fmt.Sprintf("document_number = $%d", len(args)))
	}

	rows, err := q.Pool.Query(ctx,
		"SELECT data, version FROM protection_requests WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at, id",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProtectionRequest{}
	for rows.Next() {
		var (
			raw []byte
			r   model.ProtectionRequest
		)
		if err := rows.Scan(&raw, &r.Version); err != nil {
			return nil, err
		}
		v := r.Version
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		r.Version = v
		// free-text search runs over the decoded document
		if f.Match(&r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func (q *Queries) UpdateRequest(ctx context.Context, r *model.ProtectionRequest) error {
	prev := r.Version
	r.Version++
	data, err := json.Marshal(r)
	if err != nil {
		r.Version = prev
		return err
	}
	result, err := q.Pool.Exec(ctx,
		`UPDATE protection_requests
		SET status = $3, is_active = $4, radicado = $5, data = $6, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		r.ID, prev, r.Status, r.IsActive, nullIfEmpty(r.Radicado), data,
	)
	if err != nil {
		r.Version = prev
		return err
	}
	if result.RowsAffected() == 0 {
		r.Version = prev
		return q.versionMiss(ctx, "protection_requests", r.ID)
	}
	return nil
}

// Case queries
func (q *Queries) CreateCase(ctx context.Context, c *model.ProtectionCase) error {
	c.Version = 1
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = q.Pool.Exec(ctx,
		`INSERT INTO protection_cases (id, document_number, related_case_id, data, version)
		VALUES ($1, $2, $3, $4, 1)`,
		c.ID, c.Requester.DocumentNumber, nullIfEmpty(c.RelatedCaseID), data,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("case %s: %w", c.ID, store.ErrAlreadyExists)
	}
	return err
}

func (q *Queries) GetCase(ctx context.Context, id string) (*model.ProtectionCase, error) {
	var c model.ProtectionCase
	v, err := q.getDoc(ctx, "protection_cases", id, &c)
	if err != nil {
		return nil, err
	}
	c.Version = v
	return &c, nil
}

func (q *Queries) FindCaseByDocument(ctx context.Context, documentNumber string) (*model.ProtectionCase, error) {
	var id string
	err := q.Pool.QueryRow(ctx,
		`SELECT id FROM protection_cases WHERE document_number = $1
		ORDER BY (related_case_id IS NOT NULL), created_at, id LIMIT 1`,
		documentNumber,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("case for document %s: %w", documentNumber, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return q.GetCase(ctx, id)
}

func (q *Queries) ListCases(ctx context.Context) ([]model.ProtectionCase, error) {
	rows, err := q.Pool.Query(ctx, "SELECT data, version FROM protection_cases ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProtectionCase{}
	for rows.Next() {
		var (
			raw     []byte
			version int64
			c       model.ProtectionCase
		)
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		c.Version = version
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateCase(ctx context.Context, c *model.ProtectionCase) error {
	prev := c.Version
	c.Version++
	data, err := json.Marshal(c)
	if err != nil {
		c.Version = prev
		return err
	}
	result, err := q.Pool.Exec(ctx,
		`UPDATE protection_cases
		SET document_number = $3, related_case_id = $4, data = $5, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		c.ID, prev, c.Requester.DocumentNumber, nullIfEmpty(c.RelatedCaseID), data,
	)
	if err != nil {
		c.Version = prev
		return err
	}
	if result.RowsAffected() == 0 {
		c.Version = prev
		return q.versionMiss(ctx, "protection_cases", c.ID)
	}
	return nil
}

// Opening queries
func (q *Queries) CreateOpening(ctx context.Context, o *model.CaseOpening) error {
	o.Version = 1
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = q.Pool.Exec(ctx,
		"INSERT INTO case_openings (id, status, data, version) VALUES ($1, $2, $3, 1)",
		o.ID, o.Status, data,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("opening %s: %w", o.ID, store.ErrAlreadyExists)
	}
	return err
}

func (q *Queries) GetOpening(ctx context.Context, id string) (*model.CaseOpening, error) {
	var o model.CaseOpening
	v, err := q.getDoc(ctx, "case_openings", id, &o)
	if err != nil {
		return nil, err
	}
	o.Version = v
	return &o, nil
}

func (q *Queries) UpdateOpening(ctx context.Context, o *model.CaseOpening) error {
	prev := o.Version
	o.Version++
	data, err := json.Marshal(o)
	if err != nil {
		o.Version = prev
		return err
	}
	result, err := q.Pool.Exec(ctx,
		`UPDATE case_openings SET status = $3, data = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		o.ID, prev, o.Status, data,
	)
	if err != nil {
		o.Version = prev
		return err
	}
	if result.RowsAffected() == 0 {
		o.Version = prev
		return q.versionMiss(ctx, "case_openings", o.ID)
	}
	return nil
}

// Mission queries
func (q *Queries) CreateMission(ctx context.Context, m *model.Mission) error {
	m.Version = 1
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = q.Pool.Exec(ctx,
		`INSERT INTO missions (id, number, case_id, status, regional, assigned_official, data, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`,
		m.ID, m.Number, m.CaseID, m.Status, m.Regional, m.AssignedOfficial, data,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("mission %s: %w", m.ID, store.ErrAlreadyExists)
	}
	return err
}

func (q *Queries) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	var m model.Mission
	v, err := q.getDoc(ctx, "missions", id, &m)
	if err != nil {
		return nil, err
	}
	m.Version = v
	return &m, nil
}

func (q *Queries) ListMissions(ctx context.Context, f store.MissionFilter) ([]model.Mission, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	if f.CaseID != "" {
		args = append(args, f.CaseID)
		where = append(where, fmt.Sprintf("case_id = $%d", len(args)))
	}
	if f.Regional != "" {
		args = append(args, f.Regional)
		where = append(where, fmt.Sprintf("lower(regional) = lower($%d)", len(args)))
	}
	if f.Official != "" {
		args = append(args, f.Official)
		where = append(where, fmt.Sprintf("assigned_official = $%d", len(args)))
	}

	rows, err := q.Pool.Query(ctx,
		"SELECT data, version FROM missions WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at, id",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Mission{}
	for rows.Next() {
		var (
			raw     []byte
			version int64
			m       model.Mission
		)
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m.Version = version
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateMission(ctx context.Context, m *model.Mission) error {
	prev := m.Version
	m.Version++
	data, err := json.Marshal(m)
	if err != nil {
		m.Version = prev
		return err
	}
	result, err := q.Pool.Exec(ctx,
		`UPDATE missions
		SET status = $3, regional = $4, assigned_official = $5, data = $6, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		m.ID, prev, m.Status, m.Regional, m.AssignedOfficial, data,
	)
	if err != nil {
		m.Version = prev
		return err
	}
	if result.RowsAffected() == 0 {
		m.Version = prev
		return q.versionMiss(ctx, "missions", m.ID)
	}
	return nil
}

// Form queries, overwrite in place
func (q *Queries) saveForm(ctx context.Context, table, id, missionID string, f interface{}) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = q.Pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, mission_id, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, table),
		id, missionID, data,
	)
	return err
}

func (q *Queries) getForm(ctx context.Context, table, id string, dst interface{}) error {
	var raw []byte
	err := q.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE id = $1", table),
		id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (q *Queries) SaveInterview(ctx context.Context, f *forms.InterviewForm) error {
	return q.saveForm(ctx, "interview_forms", f.ID, f.MissionID, f)
}

func (q *Queries) GetInterview(ctx context.Context, id string) (*forms.InterviewForm, error) {
	var f forms.InterviewForm
	if err := q.getForm(ctx, "interview_forms", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *Queries) SaveITVR(ctx context.Context, f *forms.ITVRForm) error {
	return q.saveForm(ctx, "itvr_forms", f.ID, f.MissionID, f)
}

func (q *Queries) GetITVR(ctx context.Context, id string) (*forms.ITVRForm, error) {
	var f forms.ITVRForm
	if err := q.getForm(ctx, "itvr_forms", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
