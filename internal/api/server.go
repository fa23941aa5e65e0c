// Package api exposes the REST surface of hearthdesk: assistant
// questions, agent requests, tickets, attachments and ratings, plus the
// websocket endpoints for the chat widget and the agent console.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/handler"
	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
	"hearthdesk/internal/store"
)

// Asker answers assistant questions. Satisfied by assistant.Service.
type Asker interface {
	Ask(ctx context.Context, question string, history []model.Message, page string) (Result, error)
}

// Result mirrors assistant.Result so the api package does not pull the
// openai client into its tests.
type Result struct {
	Answer   string `json:"answer"`
	Escalate bool   `json:"escalate"`
}

// Server is the API server.
type Server struct {
	echo      *echo.Echo
	addr      string
	hub       *hub.Hub
	assistant Asker
	tickets   *store.TicketRepo
	ratings   *store.RatingRepo
	uploadDir string
}

// ServerConfig wires a Server to its collaborators.
type ServerConfig struct {
	Addr      string
	Hub       *hub.Hub
	Assistant Asker
	Tickets   *store.TicketRepo
	Ratings   *store.RatingRepo
	UploadDir string
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:      e,
		addr:      cfg.Addr,
		hub:       cfg.Hub,
		assistant: cfg.Assistant,
		tickets:   cfg.Tickets,
		ratings:   cfg.Ratings,
		uploadDir: cfg.UploadDir,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	if s.hub != nil {
		s.echo.GET("/ws/customer", echo.WrapHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler.CustomerHandler(s.hub, w, r)
		})))
		s.echo.GET("/ws/agent", echo.WrapHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler.AgentHandler(s.hub, w, r)
		})))
	}

	v1 := s.echo.Group("/api/v1")

	v1.POST("/assistant/ask", s.askAssistant)
	v1.POST("/agent-requests", s.createAgentRequest)

	v1.POST("/tickets", s.createTicket)
	v1.GET("/tickets/:id", s.getTicket)
	v1.PATCH("/tickets/:id", s.updateTicketStatus)
	v1.POST("/tickets/:id/messages", s.addTicketMessage)
	v1.GET("/tickets/:id/messages", s.listTicketMessages)
	v1.POST("/tickets/:id/attachments", s.uploadAttachment)
	v1.GET("/tickets/:id/attachments", s.listAttachments)

	v1.POST("/ratings", s.createRating)
	v1.GET("/ratings/:kind/:id", s.getRating)
}

// Start runs the server until interrupted, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()
	log.Info().Str("addr", s.addr).Msg("api server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func errorJSON(c echo.Context, code int, format string, args ...any) error {
	return c.JSON(code, map[string]string{"message": fmt.Sprintf(format, args...)})
}
