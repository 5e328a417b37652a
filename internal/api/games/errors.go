package games

import (
	"errors"
	"net/http"

	"github.com/codr1/wnf/internal/api/apiutil"
	"github.com/codr1/wnf/internal/roster"
)

// rosterError turns a roster service error into the HandlerError the
// client sees. Errors that already carry a status pass through.
func rosterError(err error) error {
	var handlerErr apiutil.HandlerError
	var fieldErr apiutil.FieldError
	if errors.As(err, &handlerErr) || errors.As(err, &fieldErr) {
		return err
	}

	switch {
	case errors.Is(err, roster.ErrGameNotFound),
		errors.Is(err, roster.ErrPlayerNotFound),
		errors.Is(err, roster.ErrRegistrationNotFound):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, roster.ErrInvalidGame),
		errors.Is(err, roster.ErrSlotsExceedCapacity),
		errors.Is(err, roster.ErrNoPriorityToken):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, roster.ErrSelectionClosed),
		errors.Is(err, roster.ErrRegistrationClosed),
		errors.Is(err, roster.ErrAlreadyRegistered),
		errors.Is(err, roster.ErrNotSelected),
		errors.Is(err, roster.ErrGameNotActive),
		errors.Is(err, roster.ErrNotEnoughPlayers):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: err.Error(), Err: err}
	case errors.Is(err, roster.ErrDataUnavailable),
		errors.Is(err, roster.ErrMalformedRecord):
		return apiutil.HandlerError{Status: http.StatusServiceUnavailable, Message: roster.ErrDataUnavailable.Error(), Err: err}
	}
	return err
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiutil.WriteError(w, r, rosterError(err))
}
