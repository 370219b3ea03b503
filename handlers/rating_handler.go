package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/solidjuls/twilight-struggle-backend/services"
)

type RatingHandler struct {
	ratingService services.RatingService
}

func NewRatingHandler(rs services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: rs}
}

// LeaderboardHandler обрабатывает GET /ratings
func (h *RatingHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := 1
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		} else {
			badRequestResponse(w, r, errors.New("invalid page query parameter"))
			return
		}
	}

	pageSize := 20
	if sizeStr := query.Get("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			pageSize = s
		} else {
			badRequestResponse(w, r, errors.New("invalid page_size query parameter"))
			return
		}
	}

	// players=1,2,3 narrows the board to the given player ids.
	var playerIDs []int64
	if playersStr := query.Get("players"); playersStr != "" {
		for _, part := range strings.Split(playersStr, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				badRequestResponse(w, r, errors.New("invalid players query parameter"))
				return
			}
			playerIDs = append(playerIDs, id)
		}
	}

	ratings, total, err := h.ratingService.Leaderboard(r.Context(), playerIDs, page, pageSize)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"ratings":   ratings,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CurrentRatingHandler обрабатывает GET /ratings/{playerID}
func (h *RatingHandler) CurrentRatingHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getInt64FromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentRating, err := h.ratingService.CurrentRating(r.Context(), nil, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"player_id": playerID, "rating": currentRating}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HistoryHandler обрабатывает GET /ratings/{playerID}/history
func (h *RatingHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getInt64FromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	history, err := h.ratingService.History(r.Context(), playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
