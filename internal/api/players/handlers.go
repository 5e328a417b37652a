// internal/api/players/handlers.go
package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/api"
	"github.com/codr1/wnf/internal/api/apiutil"
	"github.com/codr1/wnf/internal/db/queries"
)

const (
	playerQueryTimeout    = 5 * time.Second
	defaultPhoneRegion    = "GB"
	errDuplicatePlayerMsg = "A player with that phone number already exists"
)

// Store is the slice of the query layer the player routes use.
type Store interface {
	CreatePlayer(ctx context.Context, arg queries.CreatePlayerParams) (queries.Player, error)
	ListPlayers(ctx context.Context) ([]queries.Player, error)
	UpdatePlayerWhatsappMembership(ctx context.Context, arg queries.UpdatePlayerWhatsappMembershipParams) (queries.Player, error)
	SetPlayerPriorityTokens(ctx context.Context, arg queries.SetPlayerPriorityTokensParams) (queries.Player, error)
}

type Handler struct {
	store       Store
	phoneRegion string
}

type Option func(*Handler)

// WithPhoneRegion sets the region assumed for numbers entered without a
// country code.
func WithPhoneRegion(region string) Option {
	return func(h *Handler) {
		if region != "" {
			h.phoneRegion = strings.ToUpper(region)
		}
	}
}

func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{store: store, phoneRegion: defaultPhoneRegion}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts every player route behind admin.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, admin api.Middleware) {
	mux.Handle("POST /api/v1/players", admin(http.HandlerFunc(h.HandleCreatePlayer)))
	mux.Handle("GET /api/v1/players", admin(http.HandlerFunc(h.HandleListPlayers)))
	mux.Handle("PUT /api/v1/players/{id}/whatsapp", admin(http.HandlerFunc(h.HandleSetWhatsapp)))
	mux.Handle("PUT /api/v1/players/{id}/priority-tokens", admin(http.HandlerFunc(h.HandleSetPriorityTokens)))
}

type createPlayerRequest struct {
	Name                string `json:"name" validate:"required,max=80"`
	Email               string `json:"email" validate:"omitempty,email,max=254"`
	Phone               string `json:"phone" validate:"omitempty,max=32"`
	XP                  int64  `json:"xp" validate:"gte=0"`
	WhatsappGroupMember bool   `json:"whatsapp_group_member"`
	PriorityTokens      int64  `json:"priority_tokens" validate:"gte=0,lte=10"`
}

type whatsappRequest struct {
	Member bool `json:"member"`
}

type priorityTokensRequest struct {
	Tokens int64 `json:"tokens" validate:"gte=0,lte=10"`
}

type playerResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	XP                  int64     `json:"xp"`
	Caps                int64     `json:"caps"`
	CurrentStreak       int64     `json:"current_streak"`
	BenchWarmerStreak   int64     `json:"bench_warmer_streak"`
	WhatsappGroupMember bool      `json:"whatsapp_group_member"`
	PriorityTokens      int64     `json:"priority_tokens"`
	CreatedAt           time.Time `json:"created_at"`
}

type listPlayersResponse struct {
	Players []playerResponse `json:"players"`
}

// /api/v1/players
func (h *Handler) HandleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req createPlayerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := apiutil.ValidateStruct(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	phone, err := h.normalizePhone(req.Phone)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), playerQueryTimeout)
	defer cancel()

	player, err := h.store.CreatePlayer(ctx, queries.CreatePlayerParams{
		Name:                req.Name,
		Email:               nullString(req.Email),
		Phone:               nullString(phone),
		Xp:                  req.XP,
		WhatsappGroupMember: req.WhatsappGroupMember,
		PriorityTokens:      req.PriorityTokens,
	})
	if err != nil {
		if isUniqueViolation(err) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: errDuplicatePlayerMsg, Err: err})
			return
		}
		apiutil.WriteError(w, r, fmt.Errorf("create player: %w", err))
		return
	}

	logger.Info().Int64("player_id", player.ID).Msg("Player created")
	writeJSON(w, r, http.StatusCreated, newPlayerResponse(player))
}

// /api/v1/players
func (h *Handler) HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), playerQueryTimeout)
	defer cancel()

	rows, err := h.store.ListPlayers(ctx)
	if err != nil {
		apiutil.WriteError(w, r, fmt.Errorf("list players: %w", err))
		return
	}
	writeJSON(w, r, http.StatusOK, listPlayersResponse{
		Players: lo.Map(rows, func(p queries.Player, _ int) playerResponse { return newPlayerResponse(p) }),
	})
}

// /api/v1/players/{id}/whatsapp
func (h *Handler) HandleSetWhatsapp(w http.ResponseWriter, r *http.Request) {
	playerID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req whatsappRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), playerQueryTimeout)
	defer cancel()

	player, err := h.store.UpdatePlayerWhatsappMembership(ctx, queries.UpdatePlayerWhatsappMembershipParams{
		WhatsappGroupMember: req.Member,
		ID:                  playerID,
	})
	if err != nil {
		apiutil.WriteError(w, r, playerError(err, playerID))
		return
	}

	log.Ctx(r.Context()).Info().
		Int64("player_id", playerID).
		Bool("whatsapp_group_member", req.Member).
		Msg("WhatsApp membership updated")
	writeJSON(w, r, http.StatusOK, newPlayerResponse(player))
}

// /api/v1/players/{id}/priority-tokens
func (h *Handler) HandleSetPriorityTokens(w http.ResponseWriter, r *http.Request) {
	playerID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req priorityTokensRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "body", Reason: err.Error()})
		return
	}
	if err := apiutil.ValidateStruct(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), playerQueryTimeout)
	defer cancel()

	player, err := h.store.SetPlayerPriorityTokens(ctx, queries.SetPlayerPriorityTokensParams{
		PriorityTokens: req.Tokens,
		ID:             playerID,
	})
	if err != nil {
		apiutil.WriteError(w, r, playerError(err, playerID))
		return
	}

	log.Ctx(r.Context()).Info().
		Int64("player_id", playerID).
		Int64("priority_tokens", req.Tokens).
		Msg("Priority tokens set")
	writeJSON(w, r, http.StatusOK, newPlayerResponse(player))
}

// normalizePhone stores numbers in E.164 so the unique index catches the
// same number typed two ways.
func (h *Handler) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, h.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", apiutil.FieldError{Field: "phone", Reason: "must be a valid phone number"}
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func newPlayerResponse(p queries.Player) playerResponse {
	return playerResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Email:               p.Email.String,
		Phone:               p.Phone.String,
		XP:                  p.Xp,
		Caps:                p.Caps,
		CurrentStreak:       p.CurrentStreak,
		BenchWarmerStreak:   p.BenchWarmerStreak,
		WhatsappGroupMember: p.WhatsappGroupMember,
		PriorityTokens:      p.PriorityTokens,
		CreatedAt:           p.CreatedAt,
	}
}

func playerError(err error, playerID int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.HandlerError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("player not found: %d", playerID),
			Err:     err,
		}
	}
	return fmt.Errorf("update player %d: %w", playerID, err)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}
