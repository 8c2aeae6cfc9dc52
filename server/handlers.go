package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/beach"
	"github.com/shorecrew/shorecrew/crew"
	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
	"github.com/shorecrew/shorecrew/weather"
)

// API wires the domain services into HTTP handlers.
type API struct {
	ctx     context.Context
	logger  types.Logger
	weather *weather.Service
	beaches *beach.Service
	crew    *crew.Service
	notify  *types.NotifyConfig
	metrics http.Handler
	version string
}

func NewAPI(
	ctx context.Context,
	logger types.Logger,
	weatherSvc *weather.Service,
	beachSvc *beach.Service,
	crewSvc *crew.Service,
	notifyConfig *types.NotifyConfig,
	metricsHandler http.Handler,
	version string,
) *API {
	return &API{
		ctx:     ctx,
		logger:  logger,
		weather: weatherSvc,
		beaches: beachSvc,
		crew:    crewSvc,
		notify:  notifyConfig,
		metrics: metricsHandler,
		version: version,
	}
}

func (a *API) RegisterRoutes(router *Router) error {
	routes := []struct {
		method  string
		path    string
		handler fasthttp.RequestHandler
	}{
		{fasthttp.MethodGet, "/healthz", a.handleHealth},
		{fasthttp.MethodGet, "/api/weather", a.handleWeather},
		{fasthttp.MethodGet, "/api/beaches", a.handleBeaches},
		{fasthttp.MethodGet, "/api/beaches/nearest", a.handleNearestBeach},
		{fasthttp.MethodGet, "/api/beaches/selected", a.handleSelectedBeach},
		{fasthttp.MethodPut, "/api/beaches/selected", a.handleSelectBeach},
		{fasthttp.MethodGet, "/api/crew/members", a.handleListMembers},
		{fasthttp.MethodPost, "/api/crew/members", a.handleJoin},
		{fasthttp.MethodDelete, "/api/crew/members/{id}", a.handleLeave},
		{fasthttp.MethodGet, "/api/cleanups", a.handleListCleanups},
		{fasthttp.MethodPost, "/api/cleanups", a.handleLogCleanup},
		{fasthttp.MethodGet, "/api/cleanups/stats", a.handleStats},
		{fasthttp.MethodGet, "/api/events", a.handleEventsInfo},
	}

	if a.metrics != nil {
		routes = append(routes, struct {
			method  string
			path    string
			handler fasthttp.RequestHandler
		}{fasthttp.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(a.metrics)})
	}

	for _, r := range routes {
		if err := router.Add(r.method, r.path, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

// handleWeather serves conditions for the given coordinates, or for the
// selected beach when none are given.
func (a *API) handleWeather(ctx *fasthttp.RequestCtx) {
	var reading *types.WeatherReading
	var err error

	if ctx.QueryArgs().Has("lat") || ctx.QueryArgs().Has("lon") {
		lat, lon, parseErr := parseCoordinates(ctx)
		if parseErr != nil {
			writeError(ctx, fasthttp.StatusBadRequest, parseErr)
			return
		}
		reading, err = a.weather.Current(a.ctx, lat, lon)
	} else {
		reading, err = a.weather.ForBeach(a.ctx, a.beaches.Selected())
	}

	if err != nil {
		a.logger.Error("Weather lookup failed", zap.Error(err))
		writeError(ctx, fasthttp.StatusBadGateway, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, reading)
}

func (a *API) handleBeaches(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, a.beaches.List())
}

func (a *API) handleNearestBeach(ctx *fasthttp.RequestCtx) {
	lat, lon, err := parseCoordinates(ctx)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	nearest, distKm := beach.Nearest(lat, lon)
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"beach":       nearest,
		"distance_km": distKm,
	})
}

func (a *API) handleSelectedBeach(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, a.beaches.Selected())
}

func (a *API) handleSelectBeach(ctx *fasthttp.RequestCtx) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	selected, err := a.beaches.Select(req.Slug)
	if err != nil {
		writeError(ctx, fasthttp.StatusNotFound, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, selected)
}

func (a *API) handleListMembers(ctx *fasthttp.RequestCtx) {
	roster := a.crew.Roster()
	if roster == nil {
		roster = []types.Member{}
	}
	writeJSON(ctx, fasthttp.StatusOK, roster)
}

func (a *API) handleJoin(ctx *fasthttp.RequestCtx) {
	var member types.Member
	if err := utils.Unmarshal(ctx.PostBody(), &member); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	joined, err := a.crew.Join(member)
	if err != nil {
		writeError(ctx, statusForCrewError(err), err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, joined)
}

func (a *API) handleLeave(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	if err := a.crew.Leave(id); err != nil {
		writeError(ctx, statusForCrewError(err), err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (a *API) handleListCleanups(ctx *fasthttp.RequestCtx) {
	cleanups := a.crew.Cleanups()
	if cleanups == nil {
		cleanups = []types.CleanupEntry{}
	}
	writeJSON(ctx, fasthttp.StatusOK, cleanups)
}

func (a *API) handleLogCleanup(ctx *fasthttp.RequestCtx) {
	var entry types.CleanupEntry
	if err := utils.Unmarshal(ctx.PostBody(), &entry); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	if _, ok := beach.BySlug(entry.BeachSlug); !ok {
		writeError(ctx, fasthttp.StatusBadRequest,
			types.Errorf(types.ErrBeachNotFound, "slug: %s", entry.BeachSlug))
		return
	}

	logged, err := a.crew.LogCleanup(entry)
	if err != nil {
		writeError(ctx, statusForCrewError(err), err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, logged)
}

func (a *API) handleStats(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, a.crew.Stats())
}

// handleEventsInfo points clients at the websocket hub, which listens on its
// own port.
func (a *API) handleEventsInfo(ctx *fasthttp.RequestCtx) {
	if a.notify == nil || !a.notify.Enabled {
		writeError(ctx, fasthttp.StatusNotFound, types.ErrNotifierNotRunning)
		return
	}

	path := a.notify.Path
	if path == "" {
		path = "/ws"
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]string{
		"websocket_url": fmt.Sprintf("ws://%s:%d%s", a.notify.Host, a.notify.Port, path),
	})
}

func parseCoordinates(ctx *fasthttp.RequestCtx) (float64, float64, error) {
	lat, err := strconv.ParseFloat(string(ctx.QueryArgs().Peek("lat")), 64)
	if err != nil {
		return 0, 0, types.Errorf(types.ErrInvalidParameter, "lat: %v", err)
	}

	lon, err := strconv.ParseFloat(string(ctx.QueryArgs().Peek("lon")), 64)
	if err != nil {
		return 0, 0, types.Errorf(types.ErrInvalidParameter, "lon: %v", err)
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, types.Errorf(types.ErrWeatherOutOfRange, "lat=%f lon=%f", lat, lon)
	}

	return lat, lon, nil
}

func statusForCrewError(err error) int {
	switch {
	case types.IsError(err, types.ErrMemberNotFound):
		return fasthttp.StatusNotFound
	case types.IsError(err, types.ErrMemberInvalid),
		types.IsError(err, types.ErrCleanupEntryInvalid):
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	data, err := utils.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"encoding failed"}`)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func writeError(ctx *fasthttp.RequestCtx, status int, err error) {
	writeJSON(ctx, status, map[string]string{"error": err.Error()})
}
