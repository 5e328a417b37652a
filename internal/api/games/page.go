package games

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/codr1/wnf/internal/api/apiutil"
	"github.com/codr1/wnf/internal/roster"
	"github.com/codr1/wnf/internal/teams"
)

const kickoffLayout = "Mon 2 Jan 2006, 15:04 MST"

// /games/{id}
func (h *Handler) HandleGamePage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid game ID", http.StatusBadRequest)
		return
	}

	view, err := h.roster.Roster(r.Context(), gameID)
	if err != nil {
		status := apiutil.StatusFor(rosterError(err))
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load roster page")
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	var buf bytes.Buffer
	if err := rosterPageComponent(view).Render(r.Context(), &buf); err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to render roster page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

func rosterPageComponent(view roster.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, buildRosterPageHTML(view))
		return err
	})
}

func buildRosterPageHTML(view roster.View) string {
	game := view.Game
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(&b, `<title>%s</title></head>`, html.EscapeString(game.Title))
	fmt.Fprintf(&b, `<body data-game-id="%d"><main class="roster">`, game.ID)
	fmt.Fprintf(&b, `<h1>%s</h1>`, html.EscapeString(game.Title))
	fmt.Fprintf(&b, `<p class="kickoff">%s`, html.EscapeString(game.StartsAt.Format(kickoffLayout)))
	if game.Venue != "" {
		fmt.Fprintf(&b, ` at %s`, html.EscapeString(game.Venue))
	}
	b.WriteString(`</p>`)
	fmt.Fprintf(&b, `<p class="status">Status: %s. %d of %d spots open.</p>`,
		html.EscapeString(strings.ReplaceAll(game.Status, "_", " ")), view.OpenSlots, game.MaxPlayers)

	blue := view.Team(string(teams.Blue))
	orange := view.Team(string(teams.Orange))
	if len(blue)+len(orange) > 0 {
		writeSection(&b, "Blue", blue)
		writeSection(&b, "Orange", orange)
	} else {
		writeSection(&b, "Playing", view.Selected)
	}
	writeSection(&b, "Reserves", view.Reserves)
	writeSection(&b, "Registered", view.Registered)
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []roster.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, `<section><h2>%s (%d)</h2><ol>`, html.EscapeString(title), len(entries))
	for _, e := range entries {
		fmt.Fprintf(b, `<li data-player-id="%d">%s`, e.PlayerID, html.EscapeString(e.Name))
		if e.Method != "" {
			fmt.Fprintf(b, ` <span class="method">%s</span>`, html.EscapeString(e.Method))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ol></section>`)
}
