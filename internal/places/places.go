// Package places implements CRUD on the places owned by the authenticated
// user.
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"connectrpc.com/connect"

	"github.com/stolasapp/cfgram/internal/content"
	"github.com/stolasapp/cfgram/internal/pagination"
	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// Page size limits for [Service.List].
const (
	DefaultPageSize int32 = 25
	MaxPageSize     int32 = 100
)

// Field limits, in bytes.
const (
	maxNameLen = 256
	maxDescLen = 4096
)

// Validation errors returned by [Service.Create] and [Service.Update].
var (
	ErrNameRequired = errors.New("name required")
	ErrDescRequired = errors.New("desc required")
)

// PlaceRequest is the writable part of a place. Desc is Markdown.
type PlaceRequest struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// Normalize returns the request as it will be stored: the name reduced to
// plain text and the description with normalized whitespace.
func (r PlaceRequest) Normalize() PlaceRequest {
	return PlaceRequest{
		Name: content.PlainText(r.Name),
		Desc: content.Description(r.Desc),
	}
}

// Validate reports the first missing, malformed or oversized field.
func (r PlaceRequest) Validate() error {
	switch {
	case !utf8.ValidString(r.Name) || !utf8.ValidString(r.Desc):
		return errors.New("name and desc must be valid UTF-8")
	case strings.TrimSpace(r.Name) == "":
		return ErrNameRequired
	case strings.TrimSpace(r.Desc) == "":
		return ErrDescRequired
	case len(r.Name) > maxNameLen:
		return fmt.Errorf("name must be at most %d bytes", maxNameLen)
	case len(r.Desc) > maxDescLen:
		return fmt.Errorf("desc must be at most %d bytes", maxDescLen)
	default:
		return nil
	}
}

// ListRequest selects a page of places.
type ListRequest struct {
	PageSize  int32
	PageToken string
}

// ListResponse is a page of places. NextPageToken is empty on the last page.
type ListResponse struct {
	Places        []db.Place
	NextPageToken string
}

// Service manages places on behalf of the user authenticated on the context.
// Places owned by other users are reported as not found.
type Service struct {
	logger *slog.Logger
	places storage.Places
}

// NewService creates a Service.
func NewService(logger *slog.Logger, places storage.Places) *Service {
	return &Service{
		logger: logger,
		places: places,
	}
}

// Create stores a new place owned by the caller.
func (s *Service) Create(ctx context.Context, req PlaceRequest) (db.Place, error) {
	user, err := owner(ctx)
	if err != nil {
		return db.Place{}, err
	}
	req = req.Normalize()
	if err = req.Validate(); err != nil {
		return db.Place{}, connect.NewError(connect.CodeInvalidArgument, err)
	}

	place, err := s.places.SavePlace(ctx, db.Place{
		User:        user.ID,
		Name:        req.Name,
		Description: req.Desc,
	})
	if err != nil {
		return db.Place{}, translate(err)
	}
	s.logger.DebugContext(ctx, "place created",
		slog.Uint64("user_id", user.ID),
		slog.Uint64("place_id", place.ID),
	)
	return place, nil
}

// Get returns one of the caller's places.
func (s *Service) Get(ctx context.Context, placeID uint64) (db.Place, error) {
	user, err := owner(ctx)
	if err != nil {
		return db.Place{}, err
	}
	place, err := s.places.GetPlace(ctx, user.ID, placeID)
	if err != nil {
		return db.Place{}, translate(err)
	}
	return place, nil
}

// Update replaces the name and description of one of the caller's places.
// The request is validated before the place is looked up, so an invalid
// request never modifies the record.
func (s *Service) Update(ctx context.Context, placeID uint64, req PlaceRequest) (db.Place, error) {
	user, err := owner(ctx)
	if err != nil {
		return db.Place{}, err
	}
	req = req.Normalize()
	if err = req.Validate(); err != nil {
		return db.Place{}, connect.NewError(connect.CodeInvalidArgument, err)
	}

	place, err := s.places.GetPlace(ctx, user.ID, placeID)
	if err != nil {
		return db.Place{}, translate(err)
	}
	place.Name = req.Name
	place.Description = req.Desc
	if place, err = s.places.SavePlace(ctx, place); err != nil {
		return db.Place{}, translate(err)
	}
	return place, nil
}

// Delete removes one of the caller's places.
func (s *Service) Delete(ctx context.Context, placeID uint64) error {
	user, err := owner(ctx)
	if err != nil {
		return err
	}
	if err = s.places.DeletePlace(ctx, user.ID, placeID); err != nil {
		return translate(err)
	}
	s.logger.DebugContext(ctx, "place deleted",
		slog.Uint64("user_id", user.ID),
		slog.Uint64("place_id", placeID),
	)
	return nil
}

// List returns a page of the caller's places in creation order.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	user, err := owner(ctx)
	if err != nil {
		return ListResponse{}, err
	}

	var cursor pageToken
	if req.PageToken != "" {
		if err = pagination.FromToken(req.PageToken, &cursor); err != nil {
			return ListResponse{}, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	size := pagination.Clamp(req.PageSize, DefaultPageSize, MaxPageSize)
	// one extra row tells us whether another page exists
	results, err := s.places.ListPlaces(ctx, user.ID, cursor.After, size+1)
	if err != nil {
		return ListResponse{}, translate(err)
	}

	var resp ListResponse
	if int32(len(results)) > size { //nolint:gosec // bounded by size+1
		results = results[:size]
		next, err := pagination.ToToken(&pageToken{After: results[len(results)-1].ID})
		if err != nil {
			return ListResponse{}, connect.NewError(connect.CodeInternal, err)
		}
		resp.NextPageToken = next
	}
	resp.Places = results
	return resp, nil
}

type pageToken struct {
	After uint64 `json:"after"`
}

func (p *pageToken) Validate() error {
	if p.After == 0 {
		return errors.New("missing cursor")
	}
	return nil
}

func owner(ctx context.Context) (db.User, error) {
	user := sec.GetAuthenticatedUser(ctx)
	if user.ID == 0 {
		return user, sec.ErrUnauthorized
	}
	return user, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New("place not found"))
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
