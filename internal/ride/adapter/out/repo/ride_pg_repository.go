package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

const rideColumns = `
	id, external_id, source_platform, status, version,
	pickup_address, dropoff_address,
	scheduled_at, started_at, completed_at,
	passenger_name, passenger_phone, passenger_count,
	route_type, distance_km, duration_min, price, driver_share, notes,
	driver_id, assigned_by,
	critical_at, critical_resolved_at, critical_resolution_type,
	created_at, updated_at
`

// RidePgRepository — PostgreSQL хранилище поездок. Метод Transition —
// единственный путь записи статуса: блокировка строки, проверка версии и
// ребра, обновление и запись истории в одной транзакции.
type RidePgRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewRidePgRepository создает новый экземпляр репозитория.
func NewRidePgRepository(pool *pgxpool.Pool, log zerolog.Logger) *RidePgRepository {
	return &RidePgRepository{pool: pool, log: log}
}

func scanRide(row pgx.Row) (*domain.Ride, error) {
	ride := &domain.Ride{}
	err := row.Scan(
		&ride.ID,
		&ride.ExternalID,
		&ride.SourcePlatform,
		&ride.Status,
		&ride.Version,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&ride.ScheduledAt,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.PassengerName,
		&ride.PassengerPhone,
		&ride.PassengerCount,
		&ride.RouteType,
		&ride.DistanceKm,
		&ride.DurationMin,
		&ride.Price,
		&ride.DriverShare,
		&ride.Notes,
		&ride.DriverID,
		&ride.AssignedBy,
		&ride.CriticalAt,
		&ride.CriticalResolvedAt,
		&ride.CriticalResolutionType,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Create создает поездку и первую запись истории. Повторная доставка того же
// (source_platform, external_id) возвращает существующую поездку.
func (r *RidePgRepository) Create(ctx context.Context, ride *domain.Ride, createdBy *string, notes string) (bool, *domain.Ride, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO rides (
			id, external_id, source_platform, status, version,
			pickup_address, dropoff_address,
			scheduled_at, started_at, completed_at,
			passenger_name, passenger_phone, passenger_count,
			route_type, distance_km, duration_min, price, driver_share, notes,
			driver_id, assigned_by,
			critical_at, critical_resolved_at, critical_resolution_type,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`

	_, err = tx.Exec(ctx, query,
		ride.ID,
		ride.ExternalID,
		ride.SourcePlatform,
		ride.Status,
		ride.Version,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.ScheduledAt,
		ride.StartedAt,
		ride.CompletedAt,
		ride.PassengerName,
		ride.PassengerPhone,
		ride.PassengerCount,
		ride.RouteType,
		ride.DistanceKm,
		ride.DurationMin,
		ride.Price,
		ride.DriverShare,
		ride.Notes,
		ride.DriverID,
		ride.AssignedBy,
		ride.CriticalAt,
		ride.CriticalResolvedAt,
		ride.CriticalResolutionType,
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 — уникальный ключ (source_platform, external_id): дубликат вебхука
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && ride.ExternalID != nil {
			existing, ferr := r.FindByExternalKey(ctx, ride.SourcePlatform, *ride.ExternalID)
			if ferr != nil {
				return false, nil, ferr
			}
			return false, existing, nil
		}
		r.log.Error().Err(err).Str("ride_id", ride.ID).Msg("insert ride failed")
		return false, nil, fmt.Errorf("insert ride: %w", err)
	}

	if err := insertHistory(ctx, tx, ride.ID, nil, ride.Status, createdBy, ride.CreatedAt, notes); err != nil {
		return false, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("commit create: %w", err)
	}
	return true, ride, nil
}

// FindByID возвращает поездку по ID.
func (r *RidePgRepository) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, rideID)
	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "ride", ID: rideID}
		}
		return nil, fmt.Errorf("query ride by id: %w", err)
	}
	return ride, nil
}

// FindByExternalKey возвращает поездку по ключу идемпотентности.
func (r *RidePgRepository) FindByExternalKey(ctx context.Context, sourcePlatform, externalID string) (*domain.Ride, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE source_platform = $1 AND external_id = $2`,
		sourcePlatform, externalID,
	)
	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "ride", ID: sourcePlatform + "/" + externalID}
		}
		return nil, fmt.Errorf("query ride by external key: %w", err)
	}
	return ride, nil
}

// List возвращает страницу поездок по фильтрам и общее количество.
func (r *RidePgRepository) List(ctx context.Context, f out.ListFilter) ([]*domain.Ride, int, error) {
	where := " WHERE TRUE"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where += " AND status = " + arg(f.Status)
	}
	if f.DateFrom != nil {
		where += " AND scheduled_at >= " + arg(*f.DateFrom)
	}
	if f.DateTo != nil {
		where += " AND scheduled_at <= " + arg(*f.DateTo)
	}
	if f.DriverID != "" {
		where += " AND driver_id = " + arg(f.DriverID)
	}
	if f.SourcePlatform != "" {
		where += " AND source_platform = " + arg(f.SourcePlatform)
	}
	if f.VisibleToDriver != "" {
		// Водитель видит свои поездки и неназначенный пул
		where += " AND (driver_id = " + arg(f.VisibleToDriver) +
			" OR status IN ('" + domain.StatusToAssign + "', '" + domain.StatusCritical + "'))"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(id) FROM rides`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := `SELECT ` + rideColumns + ` FROM rides` + where +
		` ORDER BY scheduled_at DESC LIMIT ` + arg(pageSize) + ` OFFSET ` + arg((page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, total, rows.Err()
}

// ListUnassignedDue возвращает to_assign поездки с подачей в окне (now, until].
func (r *RidePgRepository) ListUnassignedDue(ctx context.Context, now, until time.Time) ([]*domain.Ride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = $1
		  AND scheduled_at > $2
		  AND scheduled_at <= $3
		ORDER BY scheduled_at ASC
	`, domain.StatusToAssign, now, until)
	if err != nil {
		return nil, fmt.Errorf("query unassigned due rides: %w", err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// CountActiveByDriver — количество незавершенных поездок, назначенных водителю.
func (r *RidePgRepository) CountActiveByDriver(ctx context.Context, driverID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(id) FROM rides
		WHERE driver_id = $1 AND status IN ($2, $3)
	`, driverID, domain.StatusBooked, domain.StatusInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active rides: %w", err)
	}
	return count, nil
}

// Transition выполняет атомарный переход статуса.
func (r *RidePgRepository) Transition(ctx context.Context, req out.TransitionRequest) (*domain.Ride, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, req.RideID)
	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "ride", ID: req.RideID}
		}
		return nil, fmt.Errorf("lock ride: %w", err)
	}

	if ride.Version != req.ExpectedVersion {
		return nil, &domain.ConflictError{
			RideID: req.RideID,
			From:   ride.Status,
			To:     req.NewStatus,
			Reason: fmt.Sprintf("stale version: expected %d, stored %d", req.ExpectedVersion, ride.Version),
		}
	}

	if err := domain.CanTransition(ride.Status, req.NewStatus); err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			ce.RideID = req.RideID
		}
		return nil, err
	}

	oldStatus := ride.Status
	now := time.Now().UTC()

	if req.Apply != nil {
		req.Apply(ride)
	}
	ride.Status = req.NewStatus
	ride.Version++
	ride.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		UPDATE rides SET
			status = $2,
			version = $3,
			started_at = $4,
			completed_at = $5,
			driver_id = $6,
			assigned_by = $7,
			critical_at = $8,
			critical_resolved_at = $9,
			critical_resolution_type = $10,
			updated_at = $11
		WHERE id = $1
	`,
		ride.ID,
		ride.Status,
		ride.Version,
		ride.StartedAt,
		ride.CompletedAt,
		ride.DriverID,
		ride.AssignedBy,
		ride.CriticalAt,
		ride.CriticalResolvedAt,
		ride.CriticalResolutionType,
		ride.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("ride_id", ride.ID).Msg("update ride status failed")
		return nil, fmt.Errorf("update ride: %w", err)
	}

	if err := insertHistory(ctx, tx, ride.ID, &oldStatus, ride.Status, req.ChangedBy, now, req.Notes); err != nil {
		return nil, err
	}

	if d := req.StatsDelta; d != nil {
		_, err = tx.Exec(ctx, `
			UPDATE users SET
				total_rides = total_rides + $2,
				total_km = total_km + $3,
				total_earnings = total_earnings + $4,
				updated_at = $5
			WHERE id = $1
		`, d.DriverID, d.Rides, d.Km, d.Earnings, now)
		if err != nil {
			return nil, fmt.Errorf("update driver stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	r.log.Info().
		Str("ride_id", ride.ID).
		Str("from", oldStatus).
		Str("to", ride.Status).
		Int64("version", ride.Version).
		Msg("ride status transition")

	return ride, nil
}

// UpdateFields применяет amendment-патч. Статус и связанные с назначением
// поля этим путем не изменяются.
func (r *RidePgRepository) UpdateFields(ctx context.Context, rideID string, patch out.RidePatch) (*domain.Ride, error) {
	set := "updated_at = now()"
	args := []any{rideID}
	add := func(col string, v any) {
		args = append(args, v)
		set += fmt.Sprintf(", %s = $%d", col, len(args))
	}

	if patch.ScheduledAt != nil {
		add("scheduled_at", *patch.ScheduledAt)
	}
	if patch.PickupAddress != nil {
		add("pickup_address", *patch.PickupAddress)
	}
	if patch.DropoffAddress != nil {
		add("dropoff_address", *patch.DropoffAddress)
	}
	if patch.PassengerName != nil {
		add("passenger_name", *patch.PassengerName)
	}
	if patch.PassengerPhone != nil {
		add("passenger_phone", *patch.PassengerPhone)
	}
	if patch.PassengerCount != nil {
		add("passenger_count", *patch.PassengerCount)
	}
	if patch.RouteType != nil {
		add("route_type", *patch.RouteType)
	}
	if patch.DistanceKm != nil {
		add("distance_km", *patch.DistanceKm)
	}
	if patch.DurationMin != nil {
		add("duration_min", *patch.DurationMin)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE rides SET `+set+` WHERE id = $1 RETURNING `+rideColumns, args...)
	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "ride", ID: rideID}
		}
		return nil, fmt.Errorf("patch ride: %w", err)
	}
	return ride, nil
}

// History возвращает историю переходов поездки в порядке коммитов.
func (r *RidePgRepository) History(ctx context.Context, rideID string) ([]*domain.RideHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ride_id, old_status, new_status, changed_by, changed_at, notes
		FROM ride_history
		WHERE ride_id = $1
		ORDER BY changed_at ASC, id ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query ride history: %w", err)
	}
	defer rows.Close()

	var history []*domain.RideHistory
	for rows.Next() {
		h := &domain.RideHistory{}
		if err := rows.Scan(&h.ID, &h.RideID, &h.OldStatus, &h.NewStatus, &h.ChangedBy, &h.ChangedAt, &h.Notes); err != nil {
			return nil, fmt.Errorf("scan ride history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, rideID string, oldStatus *string, newStatus string, changedBy *string, at time.Time, notes string) error {
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ride_history (id, ride_id, old_status, new_status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), rideID, oldStatus, newStatus, changedBy, at, notesPtr)
	if err != nil {
		return fmt.Errorf("insert ride history: %w", err)
	}
	return nil
}
