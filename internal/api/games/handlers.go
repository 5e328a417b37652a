// internal/api/games/handlers.go
package games

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/api"
	"github.com/codr1/wnf/internal/api/apiutil"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/ratelimit"
	"github.com/codr1/wnf/internal/roster"
	"github.com/codr1/wnf/internal/selection"
	"github.com/codr1/wnf/internal/teams"
)

const defaultHeartbeat = 25 * time.Second

// Handler serves the game routes. It holds no package state; build one per
// server with NewHandler.
type Handler struct {
	roster     *roster.Service
	bus        events.Bus
	limiter    *ratelimit.Limiter
	trustProxy bool
	heartbeat  time.Duration

	streamsDone chan struct{}
	closeOnce   sync.Once
}

type Option func(*Handler)

// WithLimiter rate limits public registrations. Without it registrations
// are unlimited.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

func WithTrustProxy(trust bool) Option {
	return func(h *Handler) { h.trustProxy = trust }
}

// WithHeartbeat sets the keep-alive interval on event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func NewHandler(svc *roster.Service, bus events.Bus, opts ...Option) *Handler {
	h := &Handler{
		roster:      svc,
		bus:         bus,
		heartbeat:   defaultHeartbeat,
		streamsDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// cancel running requests, so the server registers this with
// RegisterOnShutdown. Safe to call more than once.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

// RegisterRoutes mounts the public routes directly and the organiser routes
// behind admin.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, admin api.Middleware) {
	mux.HandleFunc("GET /games/{id}", h.HandleGamePage)
	mux.HandleFunc("GET /api/v1/games/{id}/roster", h.HandleRoster)
	mux.HandleFunc("GET /api/v1/games/{id}/events", h.HandleEvents)
	mux.HandleFunc("POST /api/v1/games/{id}/registrations", h.HandleRegister)

	mux.Handle("POST /api/v1/games", admin(http.HandlerFunc(h.HandleCreateGame)))
	mux.Handle("POST /api/v1/games/{id}/selection", admin(http.HandlerFunc(h.HandleRunSelection)))
	mux.Handle("POST /api/v1/games/{id}/dropouts", admin(http.HandlerFunc(h.HandleDropOut)))
	mux.Handle("POST /api/v1/games/{id}/teams", admin(http.HandlerFunc(h.HandleGenerateTeams)))
	mux.Handle("POST /api/v1/games/{id}/complete", admin(http.HandlerFunc(h.HandleCompleteGame)))
	mux.Handle("PUT /api/v1/games/{id}/payments/{playerID}", admin(http.HandlerFunc(h.HandleMarkPaid)))
}

type registrationRequest struct {
	PlayerID         int64 `json:"player_id" validate:"gt=0"`
	UsePriorityToken bool  `json:"use_priority_token"`
}

// Negative counts are clamped to zero by the roster service.
type selectionRequest struct {
	PrioritySlots int `json:"priority_slots"`
	XPSlots       int `json:"xp_slots"`
	RandomSlots   int `json:"random_slots"`
}

type dropOutRequest struct {
	PlayerID int64 `json:"player_id" validate:"gt=0"`
}

type paymentRequest struct {
	Paid bool `json:"paid"`
}

type registrationResponse struct {
	GameID           int64     `json:"game_id"`
	PlayerID         int64     `json:"player_id"`
	Status           string    `json:"status"`
	UsePriorityToken bool      `json:"use_priority_token"`
	RegisteredAt     time.Time `json:"registered_at"`
}

type pickResponse struct {
	PlayerID int64  `json:"player_id"`
	Method   string `json:"method"`
}

type selectionResponse struct {
	RunID         string         `json:"run_id"`
	GameID        int64          `json:"game_id"`
	PrioritySlots int            `json:"priority_slots"`
	XPSlots       int            `json:"xp_slots"`
	RandomSlots   int            `json:"random_slots"`
	OpenSlots     int            `json:"open_slots"`
	ReserveCount  int            `json:"reserve_count"`
	Picks         []pickResponse `json:"picks"`
}

type dropOutResponse struct {
	GameID        int64  `json:"game_id"`
	PlayerID      int64  `json:"player_id"`
	Replaced      bool   `json:"replaced"`
	ReplacementID *int64 `json:"replacement_id,omitempty"`
}

type teamPlayer struct {
	PlayerID int64 `json:"player_id"`
	XP       int64 `json:"xp"`
}

type teamsResponse struct {
	Blue       []teamPlayer `json:"blue"`
	Orange     []teamPlayer `json:"orange"`
	BlueXP     int64        `json:"blue_xp"`
	OrangeXP   int64        `json:"orange_xp"`
	Difference int64        `json:"difference"`
}

// /api/v1/games/{id}/roster
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.roster.Roster(r.Context(), gameID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// /api/v1/games/{id}/registrations
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req registrationRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}
	if err := apiutil.ValidateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	if h.limiter != nil {
		ip := ratelimit.GetClientIP(r, h.trustProxy)
		if result := h.limiter.Allow(req.PlayerID, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), req.PlayerID, ip, result.Reason)
			retryAfter := max(int(result.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, r, apiutil.HandlerError{
				Status:  http.StatusTooManyRequests,
				Message: "Too many registration attempts. Please try again later.",
			})
			return
		}
	}

	reg, err := h.roster.Register(r.Context(), gameID, req.PlayerID, req.UsePriorityToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info().
		Int64("game_id", gameID).
		Int64("player_id", req.PlayerID).
		Msg("Registration accepted")
	writeJSON(w, r, http.StatusCreated, registrationResponse{
		GameID:           reg.GameID,
		PlayerID:         reg.PlayerID,
		Status:           reg.Status,
		UsePriorityToken: reg.UsePriorityToken,
		RegisteredAt:     reg.CreatedAt,
	})
}

// /api/v1/games
func (h *Handler) HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	var input roster.GameInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		writeError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}

	game, err := h.roster.CreateGame(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, game)
}

// /api/v1/games/{id}/selection
//
// An empty body runs selection with the configured default slot split.
func (h *Handler) HandleRunSelection(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body selectionRequest
	present, err := apiutil.DecodeOptionalJSON(r, &body)
	if err != nil {
		writeError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}

	var req selection.Request
	if present {
		req = selection.Request{
			GameID:        gameID,
			PrioritySlots: body.PrioritySlots,
			XPSlots:       body.XPSlots,
			RandomSlots:   body.RandomSlots,
		}
	} else {
		req, err = h.roster.DefaultRequest(r.Context(), gameID)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	outcome, err := h.roster.RunSelection(r.Context(), req, roster.TriggerManual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newSelectionResponse(outcome))
}

// /api/v1/games/{id}/dropouts
func (h *Handler) HandleDropOut(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req dropOutRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}
	if err := apiutil.ValidateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.roster.DropOut(r.Context(), gameID, req.PlayerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := dropOutResponse{GameID: result.GameID, PlayerID: result.PlayerID, Replaced: result.Replaced}
	if result.Replaced {
		resp.ReplacementID = lo.ToPtr(result.ReplacementID)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// /api/v1/games/{id}/teams
func (h *Handler) HandleGenerateTeams(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	assignment, err := h.roster.GenerateTeams(r.Context(), gameID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newTeamsResponse(assignment))
}

// /api/v1/games/{id}/complete
func (h *Handler) HandleCompleteGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.roster.CompleteGame(r.Context(), gameID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// /api/v1/games/{id}/payments/{playerID}
func (h *Handler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	playerID, err := apiutil.PathID(r, "playerID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req paymentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}

	if err := h.roster.MarkPaid(r.Context(), gameID, playerID, req.Paid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newSelectionResponse(o roster.Outcome) selectionResponse {
	return selectionResponse{
		RunID:         o.RunID,
		GameID:        o.GameID,
		PrioritySlots: o.Request.PrioritySlots,
		XPSlots:       o.Request.XPSlots,
		RandomSlots:   o.Request.RandomSlots,
		OpenSlots:     o.OpenSlots,
		ReserveCount:  o.ReserveCount,
		Picks: lo.Map(o.Result.Picks, func(p selection.Pick, _ int) pickResponse {
			return pickResponse{PlayerID: p.CandidateID, Method: string(p.Method)}
		}),
	}
}

func newTeamsResponse(a teams.Assignment) teamsResponse {
	toPlayers := func(side []teams.Player) []teamPlayer {
		return lo.Map(side, func(p teams.Player, _ int) teamPlayer {
			return teamPlayer{PlayerID: p.ID, XP: p.XP}
		})
	}
	return teamsResponse{
		Blue:       toPlayers(a.Blue),
		Orange:     toPlayers(a.Orange),
		BlueXP:     a.BlueXP(),
		OrangeXP:   a.OrangeXP(),
		Difference: a.Difference(),
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}
