package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/solidjuls/twilight-struggle-backend/middleware"
	"github.com/solidjuls/twilight-struggle-backend/services"
	"github.com/solidjuls/twilight-struggle-backend/storage"
)

type GameHandler struct {
	gameService services.GameService
	uploader    storage.FileUploader
}

func NewGameHandler(gs services.GameService, uploader storage.FileUploader) *GameHandler {
	return &GameHandler{
		gameService: gs,
		uploader:    uploader,
	}
}

// SubmitGameHandler обрабатывает POST /games
func (h *GameHandler) SubmitGameHandler(w http.ResponseWriter, r *http.Request) {
	var input services.SubmitGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// The reporter is whoever is logged in; anonymous reports keep a nil
	// reporter so the column stays NULL.
	if reporterID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		input.ReporterID = &reporterID
	}

	game, err := h.gameService.SubmitGame(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecreateGameHandler обрабатывает POST /games/recreate
//
// One endpoint covers both edit and delete: a non-zero oldId with op
// "delete" removes the game, any other value rewrites it, and oldId 0
// degrades to a plain submission. Either way every later game's ratings
// are replayed before the response is written.
func (h *GameHandler) RecreateGameHandler(w http.ResponseWriter, r *http.Request) {
	actorEmail, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to modify games")
		return
	}

	var input services.RecreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if reporterID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		input.ReporterID = &reporterID
	}

	game, err := h.gameService.RecreateGame(r.Context(), input, actorEmail)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"status": "ok"}
	if game != nil {
		response["game"] = game
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetGameHandler обрабатывает GET /games/{gameID}
func (h *GameHandler) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := getInt64FromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.GetGame(r.Context(), gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadEvidenceHandler обрабатывает POST /games/{gameID}/evidence
func (h *GameHandler) UploadEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		errorResponse(w, r, http.StatusNotImplemented, "evidence storage is not configured")
		return
	}

	gameID, err := getInt64FromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("evidence")
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to get evidence file from form: %w", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content-type header is required for evidence"))
		return
	}

	key := fmt.Sprintf("evidence/game_%d/%s", gameID, header.Filename)
	result, err := h.uploader.Upload(r.Context(), key, contentType, file)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := h.gameService.AttachEvidence(r.Context(), gameID, result.Location); err != nil {
		// The object is already stored; drop it so a failed attach does
		// not leak orphans into the bucket.
		_ = h.uploader.Delete(r.Context(), key)
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"url": result.Location}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
