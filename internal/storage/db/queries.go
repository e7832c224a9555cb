package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both [sql.DB] and [sql.Tx].
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries wraps the SQL statements used by the storage package.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const userColumns = `id, name, email, password_hash, find_hash, kind, create_time`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.FindHash,
		&u.Kind,
		&u.CreateTime,
	)
	return u, err
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUser returns the user with id, or [sql.ErrNoRows].
func (q *Queries) GetUser(ctx context.Context, id uint64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByName = `SELECT ` + userColumns + ` FROM users WHERE name = ?`

// GetUserByName returns the user with name, or [sql.ErrNoRows].
func (q *Queries) GetUserByName(ctx context.Context, name string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByName, name))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

// GetUserByEmail returns the user with email, or [sql.ErrNoRows].
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByFindHash = `SELECT ` + userColumns + ` FROM users WHERE find_hash = ?`

// GetUserByFindHash returns the user whose current find hash equals
// findHash exactly, or [sql.ErrNoRows].
func (q *Queries) GetUserByFindHash(ctx context.Context, findHash string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByFindHash, findHash))
}

const upsertUser = `
INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name          = excluded.name,
    email         = excluded.email,
    password_hash = excluded.password_hash,
    find_hash     = excluded.find_hash,
    kind          = excluded.kind`

// UpsertUserParams are the arguments to [Queries.UpsertUser].
type UpsertUserParams User

// UpsertUser inserts or fully replaces a user keyed by ID. The create time of
// an existing user is preserved.
func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) error {
	_, err := q.db.ExecContext(ctx, upsertUser,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.FindHash,
		arg.Kind,
		arg.CreateTime,
	)
	return err
}

const setFindHash = `UPDATE users SET find_hash = ? WHERE id = ?`

// SetFindHash replaces the find hash of a single user. It returns the number
// of rows affected.
func (q *Queries) SetFindHash(ctx context.Context, id uint64, findHash string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setFindHash, findHash, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUser = `DELETE FROM users WHERE id = ?`

// DeleteUser removes a user. Their places are removed by the foreign key
// cascade.
func (q *Queries) DeleteUser(ctx context.Context, id uint64) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}

const placeColumns = `id, user_id, name, description, create_time, update_time`

func scanPlace(row interface{ Scan(dest ...any) error }) (Place, error) {
	var p Place
	err := row.Scan(
		&p.ID,
		&p.User,
		&p.Name,
		&p.Description,
		&p.CreateTime,
		&p.UpdateTime,
	)
	return p, err
}

const getPlace = `SELECT ` + placeColumns + ` FROM places WHERE user_id = ? AND id = ?`

// GetPlaceParams are the arguments to [Queries.GetPlace].
type GetPlaceParams struct {
	User uint64
	ID   uint64
}

// GetPlace returns a place owned by a user, or [sql.ErrNoRows].
func (q *Queries) GetPlace(ctx context.Context, arg GetPlaceParams) (Place, error) {
	return scanPlace(q.db.QueryRowContext(ctx, getPlace, arg.User, arg.ID))
}

const getPlaces = `
SELECT ` + placeColumns + ` FROM places
WHERE user_id = ? AND id > ?
ORDER BY id
LIMIT ?`

// GetPlacesParams are the arguments to [Queries.GetPlaces].
type GetPlacesParams struct {
	User    uint64
	AfterID uint64
	Limit   int64
}

// GetPlaces lists a user's places in ID order, starting after AfterID.
func (q *Queries) GetPlaces(ctx context.Context, arg GetPlacesParams) ([]Place, error) {
	rows, err := q.db.QueryContext(ctx, getPlaces, arg.User, arg.AfterID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var places []Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

const upsertPlace = `
INSERT INTO places (` + placeColumns + `)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name        = excluded.name,
    description = excluded.description,
    update_time = excluded.update_time
WHERE places.user_id = excluded.user_id`

// UpsertPlaceParams are the arguments to [Queries.UpsertPlace].
type UpsertPlaceParams Place

// UpsertPlace inserts or updates a place. Updating a place owned by another
// user matches no rows and yields [sql.ErrNoRows].
func (q *Queries) UpsertPlace(ctx context.Context, arg UpsertPlaceParams) error {
	res, err := q.db.ExecContext(ctx, upsertPlace,
		arg.ID,
		arg.User,
		arg.Name,
		arg.Description,
		arg.CreateTime,
		arg.UpdateTime,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const deletePlace = `DELETE FROM places WHERE user_id = ? AND id = ?`

// DeletePlaceParams are the arguments to [Queries.DeletePlace].
type DeletePlaceParams struct {
	User uint64
	ID   uint64
}

// DeletePlace removes a place owned by a user and returns the number of rows
// affected.
func (q *Queries) DeletePlace(ctx context.Context, arg DeletePlaceParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePlace, arg.User, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Now returns the current time truncated so values survive a round trip
// through SQLite unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
