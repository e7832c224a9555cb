package app

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/cfgram/internal/account"
	"github.com/stolasapp/cfgram/internal/content"
	"github.com/stolasapp/cfgram/internal/oauth"
	"github.com/stolasapp/cfgram/internal/places"
	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// TokenCookie carries the bearer token back to the client after an OAuth
// sign in.
const TokenCookie = "X-Cfgram-Token"

// OAuthFailed is the value of the error query parameter added to the client
// URL when an OAuth sign in fails.
const OAuthFailed = "oauth_failed"

type handler struct {
	clientURL string
	logger    *slog.Logger
	tokens    *sec.Tokens
	accounts  *account.Service
	places    *places.Service
	providers oauth.Providers
}

func (h handler) register(e *echo.Echo) {
	e.GET("/healthz", h.healthz)

	e.GET("/oauth/:provider/code", h.oauthCode)

	api := e.Group("/api")
	api.POST("/signup", h.signup)
	api.GET("/signin", h.signin, sec.BasicAuth())

	place := api.Group("/place", sec.BearerAuth(h.tokens))
	place.POST("", h.createPlace)
	place.GET("", h.listPlaces)
	place.GET("/:id", h.getPlace)
	place.PUT("/:id", h.updatePlace)
	place.DELETE("/:id", h.deletePlace)
}

func (h handler) healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h handler) signup(c echo.Context) error {
	var req account.SignupRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	token, err := h.accounts.Signup(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, token)
}

func (h handler) signin(c echo.Context) error {
	creds, ok := sec.GetCredentials(c.Request().Context())
	if !ok {
		return sec.ErrUnauthorized
	}
	token, err := h.accounts.Signin(c.Request().Context(), creds)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, token)
}

func (h handler) oauthCode(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, h.clientURL)
	}

	provider, err := h.providers.Lookup(c.Param("provider"))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	token, err := h.accounts.SigninWithProvider(ctx, provider, code)
	if err != nil {
		h.logger.WarnContext(ctx, "oauth sign in failed",
			slog.String("provider", provider.Name()),
			slog.Any("error", err),
		)
		return c.Redirect(http.StatusFound, withQuery(h.clientURL, "error", OAuthFailed))
	}

	// not HttpOnly: the client reads the token to build its Authorization header
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Secure:   strings.HasPrefix(h.clientURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.clientURL)
}

// placeView is the JSON representation of a place. IDs are strings since
// they do not fit in a JavaScript number.
type placeView struct {
	ID         uint64    `json:"id,string"`
	User       uint64    `json:"user_id,string"`
	Name       string    `json:"name"`
	Desc       string    `json:"desc"`
	DescHTML   string    `json:"desc_html"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func toPlaceView(place db.Place) (placeView, error) {
	descHTML, err := content.RenderDescription(place.Description)
	if err != nil {
		return placeView{}, err
	}
	return placeView{
		ID:         place.ID,
		User:       place.User,
		Name:       place.Name,
		Desc:       place.Description,
		DescHTML:   descHTML,
		CreateTime: place.CreateTime,
		UpdateTime: place.UpdateTime,
	}, nil
}

func renderPlace(c echo.Context, place db.Place) error {
	view, err := toPlaceView(place)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

type placeList struct {
	Places        []placeView `json:"places"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

func (h handler) createPlace(c echo.Context) error {
	var req places.PlaceRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	place, err := h.places.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return renderPlace(c, place)
}

func (h handler) listPlaces(c echo.Context) error {
	var req places.ListRequest
	if err := echo.QueryParamsBinder(c).
		Int32("page_size", &req.PageSize).
		String("page_token", &req.PageToken).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page_size").SetInternal(err)
	}

	resp, err := h.places.List(c.Request().Context(), req)
	if err != nil {
		return err
	}
	list := placeList{
		Places:        make([]placeView, 0, len(resp.Places)),
		NextPageToken: resp.NextPageToken,
	}
	for _, place := range resp.Places {
		view, err := toPlaceView(place)
		if err != nil {
			return err
		}
		list.Places = append(list.Places, view)
	}
	return c.JSON(http.StatusOK, list)
}

func (h handler) getPlace(c echo.Context) error {
	id, err := placeID(c)
	if err != nil {
		return err
	}
	place, err := h.places.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return renderPlace(c, place)
}

func (h handler) updatePlace(c echo.Context) error {
	id, err := placeID(c)
	if err != nil {
		return err
	}
	var req places.PlaceRequest
	if err = bindBody(c, &req); err != nil {
		return err
	}
	place, err := h.places.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return renderPlace(c, place)
}

func (h handler) deletePlace(c echo.Context) error {
	id, err := placeID(c)
	if err != nil {
		return err
	}
	if err = h.places.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// bindBody decodes a JSON request body into out. A body sent without a JSON
// content type is ignored, leaving out for validation to reject.
func bindBody(c echo.Context, out any) error {
	err := c.Bind(out)
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusUnsupportedMediaType {
		return nil
	}
	return err
}

// placeID parses the id path parameter. An id that cannot name a place is
// reported as not found.
func placeID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "place not found")
	}
	return id, nil
}

func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := u.Query()
	query.Set(key, value)
	u.RawQuery = query.Encode()
	return u.String()
}
