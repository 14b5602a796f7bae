//	@title			Hearthshare API
//	@version		1.0
//	@description	Backend for Hearthshare — private recipe sharing for one family.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/hearthshare/service/internal/auth"
	"github.com/hearthshare/service/internal/comment"
	"github.com/hearthshare/service/internal/config"
	"github.com/hearthshare/service/internal/db"
	"github.com/hearthshare/service/internal/family"
	appMiddleware "github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/post"
	"github.com/hearthshare/service/internal/tag"
	"github.com/hearthshare/service/internal/uploads"
	"github.com/hearthshare/service/internal/user"

	_ "github.com/hearthshare/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	media, err := uploads.NewMedia(&uploads.Config{
		Bucket:            cfg.UploadsBucket,
		SignedURLTTL:      cfg.UploadsSignedURLTTL,
		SignerEmail:       cfg.GCSSignerEmail,
		SigningPrivateKey: cfg.GCSSigningPrivateKey,
		UploadDir:         cfg.UploadDir,
		BasePath:          cfg.UploadsBasePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("media storage init failed")
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc, media)

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, userSvc, cfg)
	authHandler := auth.NewHandler(authSvc, media)

	postRepo := post.NewRepository(pool)
	postSvc := post.NewService(postRepo, media)
	postHandler := post.NewHandler(postSvc, media)

	commentRepo := comment.NewRepository(pool)
	commentSvc := comment.NewService(commentRepo, postRepo, media)
	commentHandler := comment.NewHandler(commentSvc, media)

	familyRepo := family.NewRepository(pool)
	familySvc := family.NewService(familyRepo)
	familyHandler := family.NewHandler(familySvc, media)

	tagHandler := tag.NewHandler(tag.NewRepository(pool))

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Local-mode uploads are served straight off disk.
	if cfg.UploadsBucket == "" {
		fileServer := http.StripPrefix(cfg.UploadsBasePath+"/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.Get(cfg.UploadsBasePath+"/*", fileServer.ServeHTTP)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
				r.Get("/session", authHandler.Session)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))

			r.Route("/me", func(r chi.Router) {
				r.Get("/profile", userHandler.GetProfile)
				r.Put("/profile", userHandler.UpdateProfile)
				r.Put("/password", userHandler.ChangePassword)
				r.Post("/avatar", userHandler.UploadAvatar)
				r.Get("/favorites", postHandler.ListFavorites)
				r.Get("/posts", postHandler.ListMine)
				r.Get("/cooked", postHandler.ListMyCooked)
			})

			r.Route("/family/members", func(r chi.Router) {
				r.Get("/", familyHandler.ListMembers)
				r.Delete("/{userId}", familyHandler.RemoveMember)
			})

			r.Get("/recipes", postHandler.SearchRecipes)

			r.Route("/posts", func(r chi.Router) {
				r.Post("/", postHandler.Create)
				r.Get("/", postHandler.List)
				r.Get("/{id}", postHandler.Get)
				r.Patch("/{id}", postHandler.Update)
				r.Delete("/{id}", postHandler.Delete)
				r.Put("/{id}/favorite", postHandler.Favorite)
				r.Delete("/{id}/favorite", postHandler.Unfavorite)
				r.Post("/{id}/cooked", postHandler.LogCooked)
				r.Get("/{id}/cooked", postHandler.ListCooked)
				r.Get("/{id}/comments", commentHandler.List)
				r.Post("/{id}/comments", commentHandler.Create)
			})

			r.Delete("/comments/{id}", commentHandler.Delete)
			r.Get("/tags", tagHandler.List)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
