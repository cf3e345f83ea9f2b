package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fitagent/app/service/conversation"
	"fitagent/app/service/meallog"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
	"github.com/valyala/fasthttp"
)

const defaultMealLimit = 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type chatRequest struct {
	Text string `json:"text" form:"text" validate:"required,max=4000"`
}

type keyRequest struct {
	APIKey string `json:"api_key" form:"api_key" validate:"required"`
}

type mealsResponse struct {
	Enabled bool            `json:"enabled"`
	Meals   []meallog.Entry `json:"meals"`
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.conversationSvc.View(state(c)))
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}

	st := state(c)

	view, err := s.conversationSvc.Chat(c.UserContext(), st, req.Text, nil)
	if err != nil {
		return oops.In("chat").With("session", st.ID()).Wrapf(err, "chat failed")
	}

	return c.JSON(view)
}

// handleChatStream answers with server-sent events: "chunk" events carry the coach's message
// as it is generated, then a single "state" or "error" event ends the stream.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var req chatRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}

	st := state(c)
	if !s.conversationSvc.View(st).HasAPIKey {
		return conversation.ErrNoAPIKey
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	text := req.Text
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		s.streamChat(s.ctx, st, text, w)
	}))

	return nil
}

// streamChat runs one chat interaction and writes its events to w.
// The model call is cancelled as soon as a write fails, i.e. the client went away.
func (s *Server) streamChat(ctx context.Context, st *conversation.State, text string, w *bufio.Writer) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view, err := s.conversationSvc.Chat(ctx, st, text, func(chunk string) {
		if ctx.Err() != nil {
			return
		}

		if err := writeEvent(w, "chunk", chunk); err != nil {
			slog.Debug("Client disconnected, cancelling chat", "session", st.ID(), "error", err)
			cancel()
		}
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Warn("Streamed chat failed", "session", st.ID(), "error", err)
		_ = writeEvent(w, "error", errorResponse{Error: publicMessage(err)})
		return
	}

	_ = writeEvent(w, "state", view)
}

func (s *Server) handleImage(c *fiber.Ctx) error {
	header, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image file is required")
	}

	if header.Size > int64(s.cfg.Server.MaxUploadBytes) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("image is too large (%d > %d bytes)", header.Size, s.cfg.Server.MaxUploadBytes))
	}

	file, err := header.Open()
	if err != nil {
		return oops.In("image").Wrapf(err, "failed to open upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return oops.In("image").Wrapf(err, "failed to read upload")
	}

	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "only jpg and png images are supported")
	}

	st := state(c)

	view, err := s.conversationSvc.AnalyzeImage(c.UserContext(), st, data, mimeType)
	if err != nil {
		return oops.In("image").With("session", st.ID()).Wrapf(err, "image analysis failed")
	}

	return c.JSON(view)
}

func (s *Server) handleKey(c *fiber.Ctx) error {
	var req keyRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}

	st := state(c)
	s.conversationSvc.SetAPIKey(st, req.APIKey)

	return c.JSON(s.conversationSvc.View(st))
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	st := s.registrySvc.Reset(state(c).ID())
	s.setSessionCookie(c, st.ID())

	return c.JSON(s.conversationSvc.View(st))
}

func (s *Server) handleMeals(c *fiber.Ctx) error {
	entries, err := s.mealSvc.List(c.UserContext(), state(c).ID(), c.QueryInt("limit", defaultMealLimit))
	if err != nil {
		return oops.In("meals").Wrapf(err, "failed to list meals")
	}

	if entries == nil {
		entries = []meallog.Entry{}
	}

	return c.JSON(mealsResponse{Enabled: s.mealSvc.Enabled(), Meals: entries})
}

func (s *Server) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return err
	}

	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}

	return w.Flush()
}
