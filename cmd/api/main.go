package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/config"
	"sekolahku.id/internal/httpapi"
	"sekolahku.id/internal/obs"
	"sekolahku.id/internal/prefs"
	"sekolahku.id/internal/store/pg"
	"sekolahku.id/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Persistence: PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		users      auth.UserStore
		sessions   auth.SessionStore
		prefsStore prefs.Store
		probe      httpapi.ReadyProbe
		pgStore    *pg.Store
	)
	if cfg.DatabaseURL != "" {
		pgStore, err = pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		users = pgStore.Users()
		sessions = pgStore.Sessions()
		prefsStore = pgStore.Prefs()
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("no database configured, using in-memory stores")
		users = auth.NewMemoryUserStore()
		sessions = auth.NewMemorySessionStore()
		prefsStore = prefs.NewMemoryStore()
	}

	svc, err := auth.NewService(users, sessions, auth.ConsoleDispatcher{}, cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithOTPTTL(cfg.Auth.OTPTTL),
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}
	defer svc.Dispose()

	feed := stream.New()
	api := httpapi.New(svc, prefs.NewService(prefsStore), feed, probe, version, httpapi.Options{
		RatePerMinute: cfg.HTTP.RateLimitPerMinute,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		CORSOrigin:    cfg.HTTP.CORSOrigin,
	})

	// Prune lapsed session rows so the table does not grow unbounded.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if pgStore != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					if n, err := pgStore.Sessions().DeleteExpired(sweepCtx); err == nil && n > 0 {
						log.Printf("pruned %d expired sessions", n)
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sekolahku-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
