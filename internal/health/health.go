package health

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/metasolana/metasolanabot/internal/solana"
)

// AlertCounter is the minimal interface we need from the store.
type AlertCounter interface {
	UserIDsWithActiveAlerts(ctx context.Context) ([]int64, error)
}

// ChainProbe is the minimal interface we need from the chain client.
type ChainProbe interface {
	ProgramAccounts(ctx context.Context, programID string, limit int) ([]string, error)
}

// Report is a point-in-time snapshot of service state for GET /health.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	DatastoreOK bool      `json:"datastore_ok"`
	AlertUsers  int       `json:"users_with_active_alerts"`
	ChainOK     bool      `json:"chain_ok"`
}

// Server is the HTTP side of the bot: liveness text, the webhook
// integration stub, and the health snapshot.
type Server struct {
	echo  *echo.Echo
	addr  string
	st    AlertCounter
	chain ChainProbe
}

// NewServer builds the listener on the given port with its probes.
func NewServer(port int, st AlertCounter, chain ChainProbe) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		addr:  fmt.Sprintf(":%d", port),
		st:    st,
		chain: chain,
	}
	e.GET("/", s.root)
	e.POST("/webhook", s.webhook)
	e.GET("/health", s.health)
	return s
}

// Handler exposes the routing tree; used by tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[health] server: %v", err)
		}
	}()
	log.Printf("[health] listening on %s", s.addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		log.Printf("[health] shutdown: %v", err)
	}
}

func (s *Server) root(c echo.Context) error {
	return c.String(http.StatusOK, "MetasolanaBot is running")
}

// webhook accepts and discards the payload. Integration point only; the
// bot consumes updates over long-polling.
func (s *Server) webhook(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Snapshot(c.Request().Context()))
}

// Snapshot gathers a bounded point-in-time report. Probe failures mark
// the dependency down, they never fail the request.
func (s *Server) Snapshot(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rep := Report{GeneratedAt: time.Now().UTC()}
	if s.st != nil {
		if ids, err := s.st.UserIDsWithActiveAlerts(ctx); err == nil {
			rep.DatastoreOK = true
			rep.AlertUsers = len(ids)
		}
	}
	if s.chain != nil {
		if _, err := s.chain.ProgramAccounts(ctx, solana.TokenProgramID, 1); err == nil {
			rep.ChainOK = true
		}
	}
	return rep
}
