package server

import (
	"context"
	"fitagent/app/config"
	"fitagent/app/service/conversation"
	"fitagent/app/service/meallog"
	"fitagent/app/service/registry"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

//go:embed static/index.html
var indexHTML []byte

const (
	sessionCookie   = "fitagent_session"
	stateKey        = "state"
	shutdownTimeout = 10 * time.Second
	// room for multipart framing on top of the image itself
	bodyLimitSlack = 64 << 10
)

var _ do.Shutdownable = (*Server)(nil)

type Server struct {
	ctx             context.Context
	cfg             *config.Config
	conversationSvc *conversation.Service
	registrySvc     *registry.Service
	mealSvc         *meallog.Service

	app      *fiber.App
	validate *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[context.Context](di),
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*registry.Service](di),
		do.MustInvoke[*meallog.Service](di),
	), nil
}

func NewServer(
	ctx context.Context,
	cfg *config.Config,
	conversationSvc *conversation.Service,
	registrySvc *registry.Service,
	mealSvc *meallog.Service,
) *Server {
	s := &Server{
		ctx:             ctx,
		cfg:             cfg,
		conversationSvc: conversationSvc,
		registrySvc:     registrySvc,
		mealSvc:         mealSvc,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "fitagent",
		BodyLimit:             cfg.Server.MaxUploadBytes + bodyLimitSlack,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)

	api := s.app.Group("/api", s.withSession)
	api.Get("/state", s.handleState)
	api.Post("/chat", s.handleChat)
	api.Post("/chat/stream", s.handleChatStream)
	api.Post("/image", s.handleImage)
	api.Post("/key", s.handleKey)
	api.Post("/reset", s.handleReset)
	api.Get("/meals", s.handleMeals)
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.cfg.Server.Listen)

	if err := s.app.Listen(s.cfg.Server.Listen); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return nil
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

// withSession resolves the caller's session, starting a new one when the cookie is missing or stale.
func (s *Server) withSession(c *fiber.Ctx) error {
	id := c.Cookies(sessionCookie)

	st := s.registrySvc.GetOrCreate(id)
	if st.ID() != id {
		s.setSessionCookie(c, st.ID())
	}

	c.Locals(stateKey, st)

	return c.Next()
}

func (s *Server) setSessionCookie(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.cfg.Server.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(s.cfg.Server.SessionTTL),
	})
}

func state(c *fiber.Ctx) *conversation.State {
	return c.Locals(stateKey).(*conversation.State)
}
