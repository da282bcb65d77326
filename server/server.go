package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"playdeck/cache"
	"playdeck/config"
	"playdeck/core/auth"
	"playdeck/core/engine"
	"playdeck/core/library"
	"playdeck/core/player"
	"playdeck/core/session"
	"playdeck/db"
	"playdeck/logger"
	"playdeck/repository"
	"playdeck/storage"

	"github.com/gorilla/mux"
)

// Start wires the playback daemon together and serves the control API until
// an interrupt arrives.
func Start(cfg *config.Config) {
	auth.SetJWTSecret(cfg.JWTSecret)

	if err := storage.InitMinio(cfg); err != nil {
		// Artwork storage is an enrichment, not a dependency.
		logger.Warn("minio unavailable, artwork disabled", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	store := cache.NewRedisStateStore(db.RedisClient)
	playlists := repository.NewMySQLPlaylistRepository(db.DB)
	tracks, err := repository.NewGormTrackRepository(db.GormDB)
	if err != nil {
		logger.Fatal("failed to initialize track repository", logger.ErrorField(err))
	}

	hub := session.NewHub()
	go hub.Run()

	eng := engine.NewBeepEngine()
	eq := player.NewEqualizer(eng.EffectFactory())
	svc := player.NewService(eng, store, playlists, eq, hub, player.Config{
		MonitorInterval: cfg.MonitorInterval,
		RecentLimit:     cfg.RecentLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Restore(ctx)

	artwork := storage.NewArtworkStore(cfg.MinioBucket)
	var scanArtwork library.ArtworkStore
	if artwork != nil {
		scanArtwork = artwork
	}
	scanner := library.NewScanner(cfg.MusicDir, tracks, scanArtwork)
	go func() {
		if _, err := scanner.ScanAll(ctx); err != nil {
			logger.Warn("library scan failed", logger.ErrorField(err))
		}
	}()
	if err := scanner.Watch(ctx); err != nil {
		logger.Warn("library watcher unavailable", logger.ErrorField(err))
	}

	apiHandler := NewAPIHandler(svc, store, tracks, playlists, hub, cfg)
	router := newRouter(apiHandler, artwork)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	cancel()
	svc.Close()
	logger.Info("server stopped")
}

func newRouter(h *APIHandler, artwork *storage.ArtworkStore) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/auth/token", h.TokenHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/session", h.AuthMiddleware(h.SessionHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/session/command", h.AuthMiddleware(h.CommandHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/session/ws", h.AuthMiddleware(h.SessionWSHandler)).Methods(http.MethodGet)

	router.HandleFunc("/api/player/status", h.AuthMiddleware(h.StatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/play", h.AuthMiddleware(h.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/pause", h.AuthMiddleware(h.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/next", h.AuthMiddleware(h.NextHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/previous", h.AuthMiddleware(h.PreviousHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/seek", h.AuthMiddleware(h.SeekHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/shuffle", h.AuthMiddleware(h.ShuffleHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/repeat", h.AuthMiddleware(h.RepeatHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/favourite", h.AuthMiddleware(h.FavouriteHandler)).Methods(http.MethodPost)

	router.HandleFunc("/api/player/queue", h.AuthMiddleware(h.GetQueueHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/queue", h.AuthMiddleware(h.SetQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/queue/add", h.AuthMiddleware(h.AddToQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/queue/move", h.AuthMiddleware(h.MoveInQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/queue/{index}", h.AuthMiddleware(h.RemoveFromQueueHandler)).Methods(http.MethodDelete)

	router.HandleFunc("/api/tracks", h.AuthMiddleware(h.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", h.AuthMiddleware(h.ListPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{name}/tracks", h.AuthMiddleware(h.GetPlaylistTracksHandler)).Methods(http.MethodGet)

	// Artwork objects are public and immutable.
	router.PathPrefix("/artwork/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if artwork == nil {
			http.Error(w, "artwork storage not available", http.StatusNotFound)
			return
		}
		objectPath := strings.TrimPrefix(r.URL.Path, "/")

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		object, err := artwork.Get(ctx, objectPath)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer object.Close()

		w.Header().Set("Cache-Control", "public, max-age=31536000")
		if _, err := io.Copy(w, object); err != nil {
			logger.Warn("failed to serve artwork", logger.ErrorField(err))
		}
	})

	return router
}
