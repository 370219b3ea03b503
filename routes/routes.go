package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/solidjuls/twilight-struggle-backend/handlers"
	"github.com/solidjuls/twilight-struggle-backend/middleware"
	"github.com/solidjuls/twilight-struggle-backend/models"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	gameHandler *handlers.GameHandler,
	ratingHandler *handlers.RatingHandler,
	standingsHandler *handlers.StandingsHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/games", func(r chi.Router) {
		// Публичные маршруты для просмотра игр
		r.Get("/{gameID}", gameHandler.GetGameHandler)

		// Игроки отправляют результаты под своим аккаунтом
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Post("/", gameHandler.SubmitGameHandler)
			r.Post("/{gameID}/evidence", gameHandler.UploadEvidenceHandler)
		})

		// Правка и удаление истории доступны только администраторам
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(models.RoleAdmin))

			r.Post("/recreate", gameHandler.RecreateGameHandler)
		})
	})

	router.Route("/ratings", func(r chi.Router) {
		r.Get("/", ratingHandler.LeaderboardHandler)
		r.Get("/{playerID}", ratingHandler.CurrentRatingHandler)
		r.Get("/{playerID}/history", ratingHandler.HistoryHandler)
	})

	router.Get("/standings/{tournamentID}", standingsHandler.GetStandingsHandler)

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
