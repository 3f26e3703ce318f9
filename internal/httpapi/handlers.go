package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/obs"
	"sekolahku.id/internal/prefs"
	"sekolahku.id/internal/stream"
)

// ReadyProbe checks the service's dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the HTTP-surface tunables from configuration.
type Options struct {
	RatePerMinute int
	MaxBodyBytes  int64
	CORSOrigin    string
}

// API is the HTTP layer over the auth service.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	prefs      *prefs.Service
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string

	ratePerMin   int
	maxBodyBytes int64
	corsOrigin   string
}

func New(svc *auth.Service, prefsSvc *prefs.Service, st *stream.Stream, rp ReadyProbe, version string, opts Options) *API {
	a := &API{
		mux:          http.NewServeMux(),
		svc:          svc,
		prefs:        prefsSvc,
		stream:       st,
		readyProbe:   rp,
		version:      version,
		ratePerMin:   opts.RatePerMinute,
		maxBodyBytes: opts.MaxBodyBytes,
		corsOrigin:   opts.CORSOrigin,
	}
	if a.ratePerMin <= 0 {
		a.ratePerMin = 120
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 16
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// authentication flow
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/verify-otp", a.handleVerifyOTP)
	a.mux.HandleFunc("/v1/auth/resend-otp", a.handleResendOTP)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/session", a.handleSession)

	// authenticated surface
	a.mux.HandleFunc("/v1/me", a.handleMe)
	a.mux.HandleFunc("/v1/me/permissions", a.handleMyPermissions)
	a.mux.HandleFunc("/v1/me/theme", a.handleMyTheme)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)

	// admin surface
	a.mux.HandleFunc("/v1/admin/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/admin/users/", a.handleUserResource)

	// live event feed
	a.mux.HandleFunc("/v1/events", a.Stream)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, a.ratePerMin, a.ratePerMin/60+1)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h, a.corsOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sekolahku-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sekolahku-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
