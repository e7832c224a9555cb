package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"

	"github.com/influxdata/influxdb/pkg/snowflake"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// Colons are reserved by HTTP basic auth and whitespace makes names ambiguous.
var usernameRegex = regexp.MustCompile(`^[^:\s]{1,64}$`)

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids     *snowflake.Generator
	db      *sql.DB
	queries *db.Queries
}

// NewDB initializes a DB with the given config and logger.
func NewDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DB, error) {
	handle, err := db.Open(ctx, logger, cfg.DBFilepath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids:     snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:      handle,
		queries: db.New(handle),
	}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// FindUser satisfies the [Users] interface.
func (d *DB) FindUser(ctx context.Context, field UserField, value string) (db.User, error) {
	var (
		user db.User
		err  error
	)
	switch field {
	case UserByName:
		user, err = d.queries.GetUserByName(ctx, value)
	case UserByEmail:
		user, err = d.queries.GetUserByEmail(ctx, value)
	case UserByFindHash:
		user, err = d.queries.GetUserByFindHash(ctx, value)
	default:
		return user, fmt.Errorf("%w: unknown user field %q", ErrInternal, field)
	}
	return user, translate(err)
}

// GetUser satisfies the [Users] interface.
func (d *DB) GetUser(ctx context.Context, userID uint64) (db.User, error) {
	user, err := d.queries.GetUser(ctx, userID)
	return user, translate(err)
}

// SaveUser satisfies the [Users] interface.
func (d *DB) SaveUser(ctx context.Context, user db.User) (db.User, error) {
	if !usernameRegex.MatchString(user.Name) {
		return user, ErrInvalidUsername
	}
	if user.ID == 0 {
		user.ID = d.ids.Next()
		user.CreateTime = db.Now()
	}
	if user.Kind == "" {
		user.Kind = db.UserKindPassword
	}
	if err := d.queries.UpsertUser(ctx, db.UpsertUserParams(user)); err != nil {
		return user, translate(err)
	}
	return d.GetUser(ctx, user.ID)
}

// SetFindHash satisfies the [Users] interface.
func (d *DB) SetFindHash(ctx context.Context, userID uint64, findHash string) error {
	switch n, err := d.queries.SetFindHash(ctx, userID, findHash); {
	case err != nil:
		return translate(err)
	case n == 0:
		return ErrNotFound
	default:
		return nil
	}
}

// DeleteUser satisfies the [Users] interface.
func (d *DB) DeleteUser(ctx context.Context, userID uint64) error {
	return translate(d.queries.DeleteUser(ctx, userID))
}

// GetPlace satisfies the [Places] interface.
func (d *DB) GetPlace(ctx context.Context, userID, placeID uint64) (db.Place, error) {
	place, err := d.queries.GetPlace(ctx, db.GetPlaceParams{
		User: userID,
		ID:   placeID,
	})
	return place, translate(err)
}

// ListPlaces satisfies the [Places] interface.
func (d *DB) ListPlaces(ctx context.Context, userID, afterID uint64, limit int32) ([]db.Place, error) {
	places, err := d.queries.GetPlaces(ctx, db.GetPlacesParams{
		User:    userID,
		AfterID: afterID,
		Limit:   int64(limit),
	})
	return places, translate(err)
}

// SavePlace satisfies the [Places] interface.
func (d *DB) SavePlace(ctx context.Context, place db.Place) (db.Place, error) {
	now := db.Now()
	if place.ID == 0 {
		place.ID = d.ids.Next()
		place.CreateTime = now
	}
	place.UpdateTime = now
	if err := d.queries.UpsertPlace(ctx, db.UpsertPlaceParams(place)); err != nil {
		return place, translate(err)
	}
	return d.GetPlace(ctx, place.User, place.ID)
}

// DeletePlace satisfies the [Places] interface.
func (d *DB) DeletePlace(ctx context.Context, userID, placeID uint64) error {
	switch n, err := d.queries.DeletePlace(ctx, db.DeletePlaceParams{
		User: userID,
		ID:   placeID,
	}); {
	case err != nil:
		return translate(err)
	case n == 0:
		return ErrNotFound
	default:
		return nil
	}
}

// translate maps driver errors onto the storage [Error] values, keeping the
// original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

var _ Store = (*DB)(nil)
