package playbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
)

var (
	// ErrTemplateNotFound is returned when a template (or the requested
	// version of it) does not exist or is not owned by the user.
	ErrTemplateNotFound = errors.New("playbook template not found")

	// ErrResponseNotFound is returned when a response does not exist or
	// is not owned by the user.
	ErrResponseNotFound = errors.New("playbook response not found")
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores playbook templates, their version archive and the
// submitted responses. Template versions are immutable: every edit
// bumps the version and archives the new snapshot, so an old response
// always re-reads the exact schema it was graded against.
type Repository struct {
	q querier
}

// NewRepository creates a new playbook repository on the pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// WithTx returns a repository bound to the given transaction
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// ---------- Templates ----------

// InsertTemplate persists a new template at version 1 and archives the
// initial snapshot.
func (r *Repository) InsertTemplate(ctx context.Context, t *contracts.PlaybookTemplate) error {
	schemaJSON, thresholdsJSON, scheduleJSON, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}

	t.Version = 1

	query := `
		INSERT INTO playbook_templates (
			user_id, name, purpose, schema_json, version, active,
			grade_thresholds_json, risk_schedule_json, template_max_risk_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		t.UserID, t.Name, t.Purpose, schemaJSON, t.Version, t.Active,
		thresholdsJSON, scheduleJSON, t.TemplateMaxRiskPct,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert playbook template: %w", err)
	}

	return r.archiveVersion(ctx, t)
}

// UpdateTemplate saves an edited template as the next version and
// archives the snapshot. The caller passes the full new state; the
// stored version is bumped atomically with the update.
func (r *Repository) UpdateTemplate(ctx context.Context, t *contracts.PlaybookTemplate) error {
	schemaJSON, thresholdsJSON, scheduleJSON, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE playbook_templates
		SET name = $3, purpose = $4, schema_json = $5, version = version + 1,
		    active = $6, grade_thresholds_json = $7, risk_schedule_json = $8,
		    template_max_risk_pct = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING version, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		t.ID, t.UserID, t.Name, t.Purpose, schemaJSON, t.Active,
		thresholdsJSON, scheduleJSON, t.TemplateMaxRiskPct,
	).Scan(&t.Version, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTemplateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update playbook template: %w", err)
	}

	return r.archiveVersion(ctx, t)
}

// archiveVersion records the template's current snapshot in the
// version archive.
func (r *Repository) archiveVersion(ctx context.Context, t *contracts.PlaybookTemplate) error {
	schemaJSON, thresholdsJSON, scheduleJSON, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO playbook_template_versions (
			template_id, version, schema_json, grade_thresholds_json,
			risk_schedule_json, template_max_risk_pct
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.q.Exec(ctx, query,
		t.ID, t.Version, schemaJSON, thresholdsJSON, scheduleJSON, t.TemplateMaxRiskPct,
	)
	if err != nil {
		return fmt.Errorf("failed to archive template version: %w", err)
	}

	return nil
}

const templateColumns = `
	id, user_id, name, purpose, schema_json, version, active,
	grade_thresholds_json, risk_schedule_json, template_max_risk_pct,
	created_at, updated_at
`

// GetTemplate returns one template at its current version
func (r *Repository) GetTemplate(ctx context.Context, userID, templateID int64) (*contracts.PlaybookTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM playbook_templates WHERE id = $1 AND user_id = $2`

	t, err := scanTemplate(r.q.QueryRow(ctx, query, templateID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ListTemplates returns a user's templates, optionally active only
func (r *Repository) ListTemplates(ctx context.Context, userID int64, activeOnly bool) ([]contracts.PlaybookTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM playbook_templates WHERE user_id = $1`
	if activeOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playbook templates: %w", err)
	}
	defer rows.Close()

	var templates []contracts.PlaybookTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// DeleteTemplate removes a template and its version archive
func (r *Repository) DeleteTemplate(ctx context.Context, userID, templateID int64) error {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM playbook_templates WHERE id = $1 AND user_id = $2`, templateID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete playbook template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// TemplateSnapshot is one immutable template version as the evaluator
// consumes it.
type TemplateSnapshot struct {
	TemplateID         int64
	Version            int
	Schema             contracts.ChecklistSchema
	GradeThresholds    contracts.GradeThresholds
	RiskSchedule       contracts.RiskSchedule
	TemplateMaxRiskPct *float64
}

// GetSnapshot returns the template snapshot at a specific version from
// the archive, checking ownership against the template row. A nil
// version means the current one.
func (r *Repository) GetSnapshot(ctx context.Context, userID, templateID int64, version *int) (*TemplateSnapshot, error) {
	tmpl, err := r.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	if version == nil || *version == tmpl.Version {
		return &TemplateSnapshot{
			TemplateID:         tmpl.ID,
			Version:            tmpl.Version,
			Schema:             tmpl.Schema,
			GradeThresholds:    tmpl.GradeThresholds,
			RiskSchedule:       tmpl.RiskSchedule,
			TemplateMaxRiskPct: tmpl.TemplateMaxRiskPct,
		}, nil
	}

	query := `
		SELECT schema_json, grade_thresholds_json, risk_schedule_json, template_max_risk_pct
		FROM playbook_template_versions
		WHERE template_id = $1 AND version = $2
	`

	snap := &TemplateSnapshot{TemplateID: templateID, Version: *version}
	var schemaJSON, thresholdsJSON, scheduleJSON []byte

	err = r.q.QueryRow(ctx, query, templateID, *version).Scan(
		&schemaJSON, &thresholdsJSON, &scheduleJSON, &snap.TemplateMaxRiskPct,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template version: %w", err)
	}

	if err := unmarshalTemplateJSON(schemaJSON, thresholdsJSON, scheduleJSON,
		&snap.Schema, &snap.GradeThresholds, &snap.RiskSchedule); err != nil {
		return nil, err
	}

	return snap, nil
}

// ---------- Responses ----------

const responseColumns = `
	id, user_id, trade_id, journal_id, template_id, template_version,
	values_json, comments_json, intended_risk_pct, computed_grade,
	compliance_score, created_at, updated_at
`

// UpsertResponse inserts or replaces the response identified by
// (user, subject, template, version). Re-submitting the same checklist
// for the same trade overwrites the previous answers in place.
func (r *Repository) UpsertResponse(ctx context.Context, resp *contracts.PlaybookResponse) error {
	valuesJSON, err := json.Marshal(resp.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal response values: %w", err)
	}
	var commentsJSON []byte
	if resp.Comments != nil {
		commentsJSON, err = json.Marshal(resp.Comments)
		if err != nil {
			return fmt.Errorf("failed to marshal response comments: %w", err)
		}
	}

	// NOT DISTINCT FROM keeps NULL subjects comparable: a journal-less,
	// trade-less response is one logical row per template version.
	update := `
		UPDATE playbook_responses
		SET values_json = $6, comments_json = $7, intended_risk_pct = $8,
		    computed_grade = $9, compliance_score = $10, updated_at = NOW()
		WHERE user_id = $1
		  AND trade_id IS NOT DISTINCT FROM $2
		  AND journal_id IS NOT DISTINCT FROM $3
		  AND template_id = $4
		  AND template_version = $5
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, update,
		resp.UserID, resp.TradeID, resp.JournalID, resp.TemplateID, resp.TemplateVersion,
		valuesJSON, commentsJSON, resp.IntendedRiskPct,
		resp.ComputedGrade, resp.ComplianceScore,
	).Scan(&resp.ID, &resp.CreatedAt, &resp.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update playbook response: %w", err)
	}

	insert := `
		INSERT INTO playbook_responses (
			user_id, trade_id, journal_id, template_id, template_version,
			values_json, comments_json, intended_risk_pct, computed_grade, compliance_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, insert,
		resp.UserID, resp.TradeID, resp.JournalID, resp.TemplateID, resp.TemplateVersion,
		valuesJSON, commentsJSON, resp.IntendedRiskPct,
		resp.ComputedGrade, resp.ComplianceScore,
	).Scan(&resp.ID, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert playbook response: %w", err)
	}

	return nil
}

// ResponseFilter narrows ListResponses results
type ResponseFilter struct {
	TradeID    *int64
	JournalID  *int64
	TemplateID *int64
}

// ListResponses returns a user's responses, most recent first
func (r *Repository) ListResponses(ctx context.Context, userID int64, filter ResponseFilter) ([]contracts.PlaybookResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM playbook_responses WHERE user_id = $1`
	args := []any{userID}

	if filter.TradeID != nil {
		args = append(args, *filter.TradeID)
		query += fmt.Sprintf(" AND trade_id = $%d", len(args))
	}
	if filter.JournalID != nil {
		args = append(args, *filter.JournalID)
		query += fmt.Sprintf(" AND journal_id = $%d", len(args))
	}
	if filter.TemplateID != nil {
		args = append(args, *filter.TemplateID)
		query += fmt.Sprintf(" AND template_id = $%d", len(args))
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list playbook responses: %w", err)
	}
	defer rows.Close()

	var responses []contracts.PlaybookResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	return responses, rows.Err()
}

// GetResponse returns one response by ID
func (r *Repository) GetResponse(ctx context.Context, userID, responseID int64) (*contracts.PlaybookResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM playbook_responses WHERE id = $1 AND user_id = $2`

	resp, err := scanResponse(r.q.QueryRow(ctx, query, responseID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ---------- scanning helpers ----------

func marshalTemplateJSON(t *contracts.PlaybookTemplate) (schema, thresholds, schedule []byte, err error) {
	schema, err = json.Marshal(t.Schema)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal template schema: %w", err)
	}
	if t.GradeThresholds != nil {
		thresholds, err = json.Marshal(t.GradeThresholds)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal grade thresholds: %w", err)
		}
	}
	if t.RiskSchedule != nil {
		schedule, err = json.Marshal(t.RiskSchedule)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal risk schedule: %w", err)
		}
	}
	return schema, thresholds, schedule, nil
}

func unmarshalTemplateJSON(schemaJSON, thresholdsJSON, scheduleJSON []byte,
	schema *contracts.ChecklistSchema, thresholds *contracts.GradeThresholds, schedule *contracts.RiskSchedule) error {

	if err := json.Unmarshal(schemaJSON, schema); err != nil {
		return fmt.Errorf("failed to unmarshal template schema: %w", err)
	}
	if len(thresholdsJSON) > 0 {
		if err := json.Unmarshal(thresholdsJSON, thresholds); err != nil {
			return fmt.Errorf("failed to unmarshal grade thresholds: %w", err)
		}
	}
	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, schedule); err != nil {
			return fmt.Errorf("failed to unmarshal risk schedule: %w", err)
		}
	}
	return nil
}

func scanTemplate(row pgx.Row) (contracts.PlaybookTemplate, error) {
	var t contracts.PlaybookTemplate
	var schemaJSON, thresholdsJSON, scheduleJSON []byte

	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Purpose, &schemaJSON, &t.Version, &t.Active,
		&thresholdsJSON, &scheduleJSON, &t.TemplateMaxRiskPct,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan playbook template: %w", err)
	}

	if err := unmarshalTemplateJSON(schemaJSON, thresholdsJSON, scheduleJSON,
		&t.Schema, &t.GradeThresholds, &t.RiskSchedule); err != nil {
		return t, err
	}

	return t, nil
}

func scanResponse(row pgx.Row) (contracts.PlaybookResponse, error) {
	var resp contracts.PlaybookResponse
	var valuesJSON, commentsJSON []byte

	err := row.Scan(
		&resp.ID, &resp.UserID, &resp.TradeID, &resp.JournalID,
		&resp.TemplateID, &resp.TemplateVersion,
		&valuesJSON, &commentsJSON, &resp.IntendedRiskPct,
		&resp.ComputedGrade, &resp.ComplianceScore,
		&resp.CreatedAt, &resp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resp, err
		}
		return resp, fmt.Errorf("failed to scan playbook response: %w", err)
	}

	if len(valuesJSON) > 0 {
		if err := json.Unmarshal(valuesJSON, &resp.Values); err != nil {
			return resp, fmt.Errorf("failed to unmarshal response values: %w", err)
		}
	}
	if len(commentsJSON) > 0 {
		if err := json.Unmarshal(commentsJSON, &resp.Comments); err != nil {
			return resp, fmt.Errorf("failed to unmarshal response comments: %w", err)
		}
	}

	return resp, nil
}
