package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/out"
)

//go:embed triage_schema.sql
var schemaSQL string

// ComplaintAdapter implements out.ComplaintRepository on PostgreSQL.
type ComplaintAdapter struct {
	db *sqlx.DB
}

// NewComplaintAdapter creates a new ComplaintAdapter
func NewComplaintAdapter(db *sqlx.DB) *ComplaintAdapter {
	return &ComplaintAdapter{db: db}
}

var _ out.ComplaintRepository = (*ComplaintAdapter)(nil)

// EnsureSchema creates the complaints table and indexes when missing.
func (a *ComplaintAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure complaint schema: %w", err)
	}
	return nil
}

// =============================================================================
// Row mapping
// =============================================================================

const complaintColumns = `
	id, complaint_key, customer_name, customer_email, subject, body, channel,
	received_at, category, priority, sentiment, entities, summary,
	suggested_action, classification_source, assigned_team, escalation_actions,
	status, escalated, created_at, updated_at, resolved_at`

type complaintRow struct {
	ID                int64          `db:"id"`
	Key               string         `db:"complaint_key"`
	CustomerName      string         `db:"customer_name"`
	CustomerEmail     string         `db:"customer_email"`
	Subject           string         `db:"subject"`
	Body              string         `db:"body"`
	Channel           string         `db:"channel"`
	ReceivedAt        time.Time      `db:"received_at"`
	Category          string         `db:"category"`
	Priority          string         `db:"priority"`
	Sentiment         string         `db:"sentiment"`
	Entities          []byte         `db:"entities"`
	Summary           string         `db:"summary"`
	SuggestedAction   string         `db:"suggested_action"`
	Source            string         `db:"classification_source"`
	AssignedTeam      string         `db:"assigned_team"`
	EscalationActions pq.StringArray `db:"escalation_actions"`
	Status            string         `db:"status"`
	Escalated         bool           `db:"escalated"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	ResolvedAt        sql.NullTime   `db:"resolved_at"`
}

// toDomain maps a row back onto the closed enums. Values written by an older
// build that no longer parse coerce to the enum defaults.
func (r *complaintRow) toDomain() *domain.Complaint {
	category, _ := domain.ParseCategory(r.Category)
	priority, _ := domain.ParsePriority(r.Priority)
	sentiment, _ := domain.ParseSentiment(r.Sentiment)

	entities := domain.Entities{}
	if len(r.Entities) > 0 {
		var raw map[string]string
		if err := json.Unmarshal(r.Entities, &raw); err == nil {
			for k, v := range raw {
				if kind := domain.EntityKind(k); kind.Valid() && v != "" {
					entities[kind] = v
				}
			}
		}
	}

	actions := make([]domain.EscalationAction, 0, len(r.EscalationActions))
	for _, a := range r.EscalationActions {
		actions = append(actions, domain.EscalationAction(a))
	}

	c := &domain.Complaint{
		ID:                r.ID,
		Key:               r.Key,
		CustomerName:      r.CustomerName,
		CustomerEmail:     r.CustomerEmail,
		Subject:           r.Subject,
		Body:              r.Body,
		Channel:           domain.Channel(r.Channel),
		ReceivedAt:        r.ReceivedAt,
		Category:          category,
		Priority:          priority,
		Sentiment:         sentiment,
		Entities:          entities,
		Summary:           r.Summary,
		SuggestedAction:   r.SuggestedAction,
		Source:            domain.ClassificationSource(r.Source),
		AssignedTeam:      domain.Team(r.AssignedTeam),
		EscalationActions: actions,
		Status:            domain.ComplaintStatus(r.Status),
		Escalated:         r.Escalated,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time
		c.ResolvedAt = &t
	}
	return c
}

// entitiesJSON encodes e for the JSONB column. It is passed as text so the
// simple query protocol sends a literal rather than bytea.
func entitiesJSON(e domain.Entities) (string, error) {
	if len(e) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func actionStrings(actions []domain.EscalationAction) []string {
	strs := make([]string, len(actions))
	for i, a := range actions {
		strs[i] = string(a)
	}
	return strs
}

// =============================================================================
// Complaint CRUD
// =============================================================================

func (a *ComplaintAdapter) FindByKey(ctx context.Context, key string) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE complaint_key = $1`

	var row complaintRow
	if err := a.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find complaint by key: %w", err)
	}
	return row.toDomain(), nil
}

func (a *ComplaintAdapter) Get(ctx context.Context, id int64) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`

	var row complaintRow
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return row.toDomain(), nil
}

func (a *ComplaintAdapter) Insert(ctx context.Context, c *domain.Complaint) (int64, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = c.CreatedAt
	}
	entities, err := entitiesJSON(c.Entities)
	if err != nil {
		return 0, fmt.Errorf("encode entities: %w", err)
	}

	query := `
		INSERT INTO complaints (
			complaint_key, customer_name, customer_email, subject, body, channel,
			received_at, category, priority, sentiment, entities, summary,
			suggested_action, classification_source, assigned_team,
			escalation_actions, status, escalated, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		RETURNING id`

	var id int64
	err = a.db.QueryRowxContext(ctx, query,
		c.Key, c.CustomerName, c.CustomerEmail, c.Subject, c.Body, string(c.Channel),
		c.ReceivedAt, string(c.Category), string(c.Priority), string(c.Sentiment), entities, c.Summary,
		c.SuggestedAction, string(c.Source), string(c.AssignedTeam),
		pq.Array(actionStrings(c.EscalationActions)), string(c.Status), c.Escalated, c.CreatedAt, c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert complaint: %w", err)
	}
	return id, nil
}

// updateStatusQuery never touches a Resolved row, so a concurrent resolve
// cannot be undone by a stale transition.
const updateStatusQuery = `
	UPDATE complaints SET
		status = $2,
		assigned_team = COALESCE($3, assigned_team),
		resolved_at = CASE WHEN $2 = 'Resolved' THEN NOW() ELSE resolved_at END,
		updated_at = NOW()
	WHERE id = $1 AND status <> 'Resolved'`

// UpdateStatus returns false, nil for an unknown id and
// domain.ErrAlreadyResolved when the row was resolved in the meantime.
func (a *ComplaintAdapter) UpdateStatus(ctx context.Context, id int64, status domain.ComplaintStatus, team *domain.Team) (bool, error) {
	var teamArg sql.NullString
	if team != nil {
		teamArg = sql.NullString{String: string(*team), Valid: true}
	}

	res, err := a.db.ExecContext(ctx, updateStatusQuery, id, string(status), teamArg)
	if err != nil {
		return false, fmt.Errorf("update complaint status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update complaint status: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var current string
	err = a.db.GetContext(ctx, &current, `SELECT status FROM complaints WHERE id = $1`, id)
	return false, statusNotUpdated(current, err)
}

// statusNotUpdated explains a status UPDATE that matched no row.
func statusNotUpdated(current string, lookupErr error) error {
	switch {
	case errors.Is(lookupErr, sql.ErrNoRows):
		return nil
	case lookupErr != nil:
		return fmt.Errorf("update complaint status: %w", lookupErr)
	case domain.ComplaintStatus(current) == domain.StatusResolved:
		return domain.ErrAlreadyResolved
	default:
		return nil
	}
}

func (a *ComplaintAdapter) UpdateClassification(ctx context.Context, c *domain.Complaint) error {
	entities, err := entitiesJSON(c.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	query := `
		UPDATE complaints SET
			customer_name = $2, category = $3, priority = $4, sentiment = $5,
			entities = $6, summary = $7, suggested_action = $8,
			classification_source = $9, assigned_team = $10,
			escalation_actions = $11, updated_at = NOW()
		WHERE id = $1`

	res, err := a.db.ExecContext(ctx, query,
		c.ID, c.CustomerName, string(c.Category), string(c.Priority), string(c.Sentiment),
		entities, c.Summary, c.SuggestedAction,
		string(c.Source), string(c.AssignedTeam),
		pq.Array(actionStrings(c.EscalationActions)),
	)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *ComplaintAdapter) SetEscalated(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE complaints SET escalated = TRUE, updated_at = NOW()
		WHERE id = $1 AND escalated = FALSE AND status <> 'Resolved'`

	res, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("set escalated: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set escalated: %w", err)
	}
	return n > 0, nil
}

// =============================================================================
// Listing
// =============================================================================

// buildListWhere turns filter into a WHERE clause and its positional args.
func buildListWhere(filter *domain.ComplaintFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, string(filter.Priority))
		argIdx++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.Team != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_team = $%d", argIdx))
		args = append(args, string(filter.Team))
		argIdx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(subject ILIKE $%d OR body ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (a *ComplaintAdapter) List(ctx context.Context, filter *domain.ComplaintFilter) ([]*domain.Complaint, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := a.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM complaints "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM complaints %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		complaintColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	var rows []complaintRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	complaints := make([]*domain.Complaint, len(rows))
	for i := range rows {
		complaints[i] = rows[i].toDomain()
	}
	return complaints, total, nil
}

func (a *ComplaintAdapter) ListResolved(ctx context.Context, since time.Time) ([]domain.ResolvedSample, error) {
	query := `
		SELECT priority, created_at, COALESCE(resolved_at, updated_at) AS resolved_at
		FROM complaints
		WHERE status = 'Resolved' AND created_at >= $1`

	var rows []struct {
		Priority   string    `db:"priority"`
		CreatedAt  time.Time `db:"created_at"`
		ResolvedAt time.Time `db:"resolved_at"`
	}
	if err := a.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("list resolved complaints: %w", err)
	}

	samples := make([]domain.ResolvedSample, len(rows))
	for i, r := range rows {
		p, _ := domain.ParsePriority(r.Priority)
		samples[i] = domain.ResolvedSample{Priority: p, CreatedAt: r.CreatedAt, ResolvedAt: r.ResolvedAt}
	}
	return samples, nil
}

// =============================================================================
// Aggregates
// =============================================================================

type countRow struct {
	Key   string `db:"k"`
	Count int64  `db:"n"`
}

func (a *ComplaintAdapter) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	var rows []countRow
	query := fmt.Sprintf(`SELECT %s AS k, COUNT(*) AS n FROM complaints GROUP BY %s`, column, column)
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Count
	}
	return m, nil
}

const avgResponseHoursSQL = `
	SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (COALESCE(resolved_at, updated_at) - created_at)) / 3600), 0)
	FROM complaints
	WHERE status = 'Resolved'`

func (a *ComplaintAdapter) Analytics(ctx context.Context) (*domain.Analytics, error) {
	res := &domain.Analytics{}

	if err := a.db.GetContext(ctx, &res.Total, `SELECT COUNT(*) FROM complaints`); err != nil {
		return nil, fmt.Errorf("count complaints: %w", err)
	}

	var err error
	if res.ByCategory, err = a.groupCount(ctx, "category"); err != nil {
		return nil, err
	}
	if res.ByPriority, err = a.groupCount(ctx, "priority"); err != nil {
		return nil, err
	}
	if res.ByStatus, err = a.groupCount(ctx, "status"); err != nil {
		return nil, err
	}
	if res.ByTeam, err = a.groupCount(ctx, "assigned_team"); err != nil {
		return nil, err
	}

	if err := a.db.GetContext(ctx, &res.AvgResponseHours, avgResponseHoursSQL); err != nil {
		return nil, fmt.Errorf("average response hours: %w", err)
	}
	if err := a.db.GetContext(ctx, &res.RecentCount,
		`SELECT COUNT(*) FROM complaints WHERE created_at >= NOW() - INTERVAL '1 day'`); err != nil {
		return nil, fmt.Errorf("count recent complaints: %w", err)
	}
	return res, nil
}

func (a *ComplaintAdapter) Dashboard(ctx context.Context, dayStart time.Time) (*domain.DashboardStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE created_at >= $1) AS today,
			COUNT(*) FILTER (WHERE status <> 'Resolved') AS pending,
			COUNT(*) FILTER (WHERE escalated) AS escalated
		FROM complaints`

	var row struct {
		Total     int64 `db:"total"`
		Today     int64 `db:"today"`
		Pending   int64 `db:"pending"`
		Escalated int64 `db:"escalated"`
	}
	if err := a.db.GetContext(ctx, &row, query, dayStart); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	stats := &domain.DashboardStats{
		Total:     row.Total,
		Today:     row.Today,
		Pending:   row.Pending,
		Escalated: row.Escalated,
	}
	if err := a.db.GetContext(ctx, &stats.AvgResponseHours, avgResponseHoursSQL); err != nil {
		return nil, fmt.Errorf("average response hours: %w", err)
	}
	return stats, nil
}
