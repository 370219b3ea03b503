package handlers

import (
	"net/http"

	"github.com/solidjuls/twilight-struggle-backend/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
}

func NewStandingsHandler(ss services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standingsService: ss}
}

// GetStandingsHandler обрабатывает GET /standings/{tournamentID}
func (h *StandingsHandler) GetStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIntFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	division := r.URL.Query().Get("division")

	standings, err := h.standingsService.ComputeStandings(r.Context(), tournamentID, division)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
