package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"census/internal/citizens/models"
	"census/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const (
	citizenColumns    = "citizen_id, town, street, building, apartment, name, birth_date, gender, relatives"
	pgUniqueViolation = "23505"
	sqlDateLayout     = "2006-01-02"
)

// PostgresStore persists imports in PostgreSQL. Relatives live in a BIGINT[]
// column of the citizen row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in one transaction carried by the context. Store calls made
// with that context join it, and GetCitizen locks the rows it reads.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return unavailable(s.db.PingContext(ctx))
}

func (s *PostgresStore) ListImportIDs(ctx context.Context) ([]int64, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `SELECT id FROM imports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan import id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imports: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ImportExists(ctx context.Context, importID int64) (bool, error) {
	var exists bool
	err := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM imports WHERE id = $1)`, importID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check import %d: %w", importID, err)
	}
	return exists, nil
}

// CreateImport allocates max(id)+1 under an exclusive table lock and bulk
// loads the citizens with COPY.
func (s *PostgresStore) CreateImport(ctx context.Context, citizens []models.Citizen) (int64, error) {
	var importID int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.QuerierFrom(ctx, s.db)
		if _, err := q.ExecContext(ctx, `LOCK TABLE imports IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock imports: %w", err)
		}
		if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM imports`).Scan(&importID); err != nil {
			return fmt.Errorf("next import id: %w", err)
		}
		if _, err := q.ExecContext(ctx, `INSERT INTO imports (id) VALUES ($1)`, importID); err != nil {
			return fmt.Errorf("insert import: %w", err)
		}
		return copyCitizens(ctx, q, importID, citizens)
	})
	if err != nil {
		return 0, mapPQError(err)
	}
	return importID, nil
}

func copyCitizens(ctx context.Context, q tx.Querier, importID int64, citizens []models.Citizen) error {
	stmt, err := q.PrepareContext(ctx, pq.CopyIn("citizens",
		"import_id", "citizen_id", "town", "street", "building", "apartment", "name", "birth_date", "gender", "relatives"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, c := range citizens {
		_, err := stmt.ExecContext(ctx, importID, c.ID, c.Town, c.Street, c.Building, c.Apartment, c.Name,
			c.BirthDate.Time().Format(sqlDateLayout), string(c.Gender), pq.Int64Array(nonNil(c.Relatives)))
		if err != nil {
			return fmt.Errorf("copy citizen %d: %w", c.ID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	return nil
}

// GetCitizen reads one citizen. Inside RunInTx the row is locked FOR UPDATE.
func (s *PostgresStore) GetCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error) {
	query := `SELECT ` + citizenColumns + ` FROM citizens WHERE import_id = $1 AND citizen_id = $2`
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	c, err := scanCitizen(tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, query, importID, citizenID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get citizen %d/%d: %w", importID, citizenID, err)
	}
	return c, nil
}

func (s *PostgresStore) ListCitizens(ctx context.Context, importID int64) ([]models.Citizen, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE import_id = $1 ORDER BY citizen_id`, importID)
	if err != nil {
		return nil, fmt.Errorf("list citizens of %d: %w", importID, err)
	}
	defer rows.Close()

	citizens := []models.Citizen{}
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, fmt.Errorf("scan citizen: %w", err)
		}
		citizens = append(citizens, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citizens: %w", err)
	}

	if len(citizens) == 0 {
		exists, err := s.ImportExists(ctx, importID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	}
	return citizens, nil
}

func (s *PostgresStore) CitizenExists(ctx context.Context, importID, citizenID int64) (bool, error) {
	var exists bool
	err := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM citizens WHERE import_id = $1 AND citizen_id = $2)`,
		importID, citizenID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check citizen %d/%d: %w", importID, citizenID, err)
	}
	return exists, nil
}

func (s *PostgresStore) UpdateCitizen(ctx context.Context, importID int64, c models.Citizen) error {
	res, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE citizens
		SET town = $3, street = $4, building = $5, apartment = $6, name = $7,
		    birth_date = $8, gender = $9, relatives = $10
		WHERE import_id = $1 AND citizen_id = $2`,
		importID, c.ID, c.Town, c.Street, c.Building, c.Apartment, c.Name,
		c.BirthDate.Time().Format(sqlDateLayout), string(c.Gender), pq.Int64Array(nonNil(c.Relatives)))
	if err != nil {
		return fmt.Errorf("update citizen %d/%d: %w", importID, c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update citizen %d/%d: %w", importID, c.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizen(row rowScanner) (*models.Citizen, error) {
	var (
		c         models.Citizen
		gender    string
		birth     time.Time
		relatives pq.Int64Array
	)
	if err := row.Scan(&c.ID, &c.Town, &c.Street, &c.Building, &c.Apartment, &c.Name, &birth, &gender, &relatives); err != nil {
		return nil, err
	}
	y, m, d := birth.Date()
	c.BirthDate = models.NewDate(y, m, d)
	c.Gender = models.Gender(gender)
	c.Relatives = nonNil(relatives)
	return &c, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
	}
	return err
}
