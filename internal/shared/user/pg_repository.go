package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

const userColumns = `
	id, email, password_hash, full_name, role, company_id, is_available,
	total_rides, total_km, total_earnings, created_at, updated_at
`

// PgRepository — PostgreSQL репозиторий пользователей. Также реализует
// порты DriverDirectory и ActorDirectory ядра поездок.
type PgRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPgRepository создает новый экземпляр репозитория.
func NewPgRepository(pool *pgxpool.Pool, log zerolog.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

func (r *PgRepository) scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.CompanyID,
		&u.IsAvailable,
		&u.TotalRides,
		&u.TotalKm,
		&u.TotalEarning,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByID возвращает пользователя по ID.
func (r *PgRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := r.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "user", ID: id}
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// FindByEmail возвращает пользователя по email.
func (r *PgRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := r.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "user", ID: email}
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

// ListOperational возвращает пользователей операционных ролей.
func (r *PgRepository) ListOperational(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role IN ($1, $2) ORDER BY id`,
		RoleAdmin, RoleAssistant,
	)
	if err != nil {
		return nil, fmt.Errorf("query operational users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListOperationalIDs реализует out.ActorDirectory.
func (r *PgRepository) ListOperationalIDs(ctx context.Context) ([]string, error) {
	users, err := r.ListOperational(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Get реализует out.DriverDirectory: водитель по ID.
func (r *PgRepository) Get(ctx context.Context, driverID string) (*out.Driver, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT u.id, u.company_id, u.is_available,
		       COALESCE(c.status = 'active', TRUE)
		FROM users u
		LEFT JOIN ncc_companies c ON c.id = u.company_id
		WHERE u.id = $1 AND u.role = $2
	`, driverID, RoleDriver)

	d := &out.Driver{}
	if err := row.Scan(&d.ID, &d.CompanyID, &d.Available, &d.CompanyActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "driver", ID: driverID}
		}
		return nil, fmt.Errorf("query driver: %w", err)
	}
	return d, nil
}

// ListAvailable реализует out.DriverDirectory: доступные водители активных компаний.
func (r *PgRepository) ListAvailable(ctx context.Context) ([]*out.Driver, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.company_id, u.is_available,
		       COALESCE(c.status = 'active', TRUE)
		FROM users u
		LEFT JOIN ncc_companies c ON c.id = u.company_id
		WHERE u.role = $1
		  AND u.is_available
		  AND (u.company_id IS NULL OR c.status = 'active')
		ORDER BY u.id
	`, RoleDriver)
	if err != nil {
		return nil, fmt.Errorf("query available drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*out.Driver
	for rows.Next() {
		d := &out.Driver{}
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Available, &d.CompanyActive); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}
