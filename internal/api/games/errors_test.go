package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/wnf/internal/api/apiutil"
	"github.com/codr1/wnf/internal/roster"
)

func TestWriteRosterErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"game not found", fmt.Errorf("%w: 9", roster.ErrGameNotFound), http.StatusNotFound, "game not found: 9"},
		{"player not found", roster.ErrPlayerNotFound, http.StatusNotFound, "player not found"},
		{"selection closed", roster.ErrSelectionClosed, http.StatusConflict, roster.ErrSelectionClosed.Error()},
		{"already registered", roster.ErrAlreadyRegistered, http.StatusConflict, roster.ErrAlreadyRegistered.Error()},
		{"invalid game", fmt.Errorf("%w: title", roster.ErrInvalidGame), http.StatusBadRequest, "invalid game: title"},
		{"too many slots", roster.ErrSlotsExceedCapacity, http.StatusBadRequest, roster.ErrSlotsExceedCapacity.Error()},
		{"data unavailable", fmt.Errorf("%w: disk", roster.ErrDataUnavailable), http.StatusServiceUnavailable, "roster data unavailable"},
		{"malformed record", fmt.Errorf("%w: player 3", roster.ErrMalformedRecord), http.StatusServiceUnavailable, "roster data unavailable"},
		{"field error kept", apiutil.FieldError{Field: "player_id", Reason: "failed gt validation"}, http.StatusBadRequest, "player_id failed gt validation"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body apiutil.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantBody {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantBody)
			}
		})
	}
}

func TestRosterErrorKeepsHandlerErrors(t *testing.T) {
	limited := apiutil.HandlerError{Status: http.StatusTooManyRequests, Message: "slow down", Err: roster.ErrGameNotFound}
	if got := apiutil.StatusFor(rosterError(limited)); got != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", got)
	}
}
