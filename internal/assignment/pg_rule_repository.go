package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PgRuleRepository — PostgreSQL хранилище правил назначения.
type PgRuleRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPgRuleRepository создает новый экземпляр репозитория.
func NewPgRuleRepository(pool *pgxpool.Pool, log zerolog.Logger) *PgRuleRepository {
	return &PgRuleRepository{pool: pool, log: log}
}

// ListAll возвращает все правила по возрастанию приоритета.
func (r *PgRuleRepository) ListAll(ctx context.Context) ([]*Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, priority, company_id,
		       EXTRACT(EPOCH FROM time_slot_start)::bigint,
		       EXTRACT(EPOCH FROM time_slot_end)::bigint,
		       day_of_week, is_blocked, created_at
		FROM assignment_rules
		ORDER BY priority ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query assignment rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule := &Rule{}
		var startSec, endSec int64
		if err := rows.Scan(
			&rule.ID,
			&rule.Priority,
			&rule.CompanyID,
			&startSec,
			&endSec,
			&rule.DayOfWeek,
			&rule.IsBlocked,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan assignment rule: %w", err)
		}
		rule.SlotStart = time.Duration(startSec) * time.Second
		rule.SlotEnd = time.Duration(endSec) * time.Second
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
