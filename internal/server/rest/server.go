// Package rest is the HTTP transport of the accounts service.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gorilla/mux"
)

const (
	maxJSONBody      = 16 << 10
	maxMultipartBody = 10 << 20
	shutdownTimeout  = 10 * time.Second
)

// Users is the session manager as seen by the HTTP handlers.
type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Profile, error)
	Login(ctx context.Context, username, email, password string) (*services.Session, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, presented string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.Profile, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.Profile, error)
	UpdateAvatar(ctx context.Context, userID, path string) (*models.Profile, error)
	UpdateCoverImage(ctx context.Context, userID, path string) (*models.Profile, error)
}

type Gate interface {
	Admit(ctx context.Context, token string) (*models.Profile, error)
}

// Pinger reports whether a backing service is reachable; *sql.DB is one.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address      string
	users        Users
	gate         Gate
	health       Pinger
	metrics      *metrics.Metrics
	logger       logging.Logger
	uploadDir    string
	cookieSecure bool
}

// NewServer builds the HTTP server. health and m may be nil.
func NewServer(cfg *config.Config, l logging.Logger, us Users, gate Gate, health Pinger, m *metrics.Metrics, uploadDir string) *Server {
	return &Server{
		address:      cfg.EndpointAddrHTTP,
		users:        us,
		gate:         gate,
		health:       health,
		metrics:      m,
		logger:       l.With("module", "http_server"),
		uploadDir:    uploadDir,
		cookieSecure: cfg.CookieSecure,
	}
}

// Handler returns the routed handler with logging, metrics and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe, s.recoverer)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	u := r.PathPrefix("/api/v1/users").Subrouter()
	u.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	u.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	u.HandleFunc("/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)

	p := u.NewRoute().Subrouter()
	p.Use(s.requireUser)
	p.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	p.HandleFunc("/change-password", s.handleChangePassword).Methods(http.MethodPost)
	p.HandleFunc("/current-user", s.handleCurrentUser).Methods(http.MethodGet)
	p.HandleFunc("/update-account", s.handleUpdateAccount).Methods(http.MethodPatch)
	p.HandleFunc("/avatar", s.handleUpdateAvatar).Methods(http.MethodPatch)
	p.HandleFunc("/cover-image", s.handleUpdateCoverImage).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusNotFound, nil, "route not found")
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
