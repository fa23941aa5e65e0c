package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/model"
	"hearthdesk/internal/store"
)

type askRequest struct {
	UserID   string          `json:"user_id"`
	Question string          `json:"question"`
	History  []model.Message `json:"history"`
	Page     string          `json:"page"`
}

func (s *Server) askAssistant(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return errorJSON(c, http.StatusBadRequest, "question is required")
	}

	res, err := s.assistant.Ask(c.Request().Context(), req.Question, req.History, req.Page)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("assistant ask failed")
		return errorJSON(c, http.StatusBadGateway, "assistant is unavailable")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) createAgentRequest(c echo.Context) error {
	var p model.AgentRequestPayload
	if err := c.Bind(&p); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if p.UserID == "" {
		return errorJSON(c, http.StatusBadRequest, "user_id is required")
	}

	sessionID, err := s.hub.EnqueueRequest(p)
	if err != nil {
		return errorJSON(c, http.StatusConflict, "%s", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"session_id": sessionID})
}

func (s *Server) createTicket(c echo.Context) error {
	var t model.Ticket
	if err := c.Bind(&t); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := s.tickets.Create(&t); err != nil {
		return errorJSON(c, http.StatusBadRequest, "%s", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) getTicket(c echo.Context) error {
	t, err := s.tickets.GetByID(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "ticket not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "%s", err)
	}
	return c.JSON(http.StatusOK, t)
}

type statusUpdate struct {
	Status model.TicketStatus `json:"status"`
}

func (s *Server) updateTicketStatus(c echo.Context) error {
	var upd statusUpdate
	if err := c.Bind(&upd); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if !upd.Status.IsValid() {
		return errorJSON(c, http.StatusBadRequest, "invalid status %q", upd.Status)
	}

	err := s.tickets.SetStatus(c.Param("id"), upd.Status)
	if errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "ticket not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "%s", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) addTicketMessage(c echo.Context) error {
	var m model.TicketMessage
	if err := c.Bind(&m); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	m.TicketID = c.Param("id")
	if m.Role == "" {
		m.Role = model.RoleUser
	}

	err := s.tickets.AddMessage(&m)
	if errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "ticket not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "%s", err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (s *Server) listTicketMessages(c echo.Context) error {
	if _, err := s.tickets.GetByID(c.Param("id")); errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "ticket not found")
	}
	msgs, err := s.tickets.Messages(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "%s", err)
	}
	if msgs == nil {
		msgs = []model.TicketMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) uploadAttachment(c echo.Context) error {
	ticketID := c.Param("id")
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "file is required")
	}

	src, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	// Keep the stored name opaque; the original name lives in the record.
	name := filepath.Base(fh.Filename)
	dir := filepath.Join(s.uploadDir, ticketID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "cannot store upload")
	}
	path := filepath.Join(dir, uuid.New().String()+filepath.Ext(name))

	dst, err := os.Create(path)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "cannot store upload")
	}
	size, err := io.Copy(dst, src)
	dst.Close()
	if err != nil {
		os.Remove(path)
		return errorJSON(c, http.StatusInternalServerError, "cannot store upload")
	}

	att := &model.Attachment{TicketID: ticketID, FileName: name, SizeBytes: size, Path: path}
	if err := s.tickets.AddAttachment(att); err != nil {
		os.Remove(path)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "ticket not found")
		}
		return errorJSON(c, http.StatusBadRequest, "%s", err)
	}
	log.Info().Str("ticket", ticketID).Str("file", name).Int64("bytes", size).Msg("attachment stored")
	return c.JSON(http.StatusCreated, att)
}

func (s *Server) listAttachments(c echo.Context) error {
	if _, err := s.tickets.GetByID(c.Param("id")); errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "ticket not found")
	}
	atts, err := s.tickets.Attachments(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "%s", err)
	}
	if atts == nil {
		atts = []model.Attachment{}
	}
	return c.JSON(http.StatusOK, atts)
}

func (s *Server) createRating(c echo.Context) error {
	var r model.Rating
	if err := c.Bind(&r); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	err := s.ratings.Create(&r)
	switch {
	case errors.Is(err, store.ErrDuplicateRating):
		return errorJSON(c, http.StatusConflict, "%s", err)
	case err != nil:
		return errorJSON(c, http.StatusBadRequest, "%s", err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (s *Server) getRating(c echo.Context) error {
	kind := model.RatingKind(c.Param("kind"))
	if !kind.IsValid() {
		return errorJSON(c, http.StatusBadRequest, "invalid rating kind %q", kind)
	}

	r, err := s.ratings.GetByTarget(c.Param("id"), kind)
	if errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "rating not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "%s", err)
	}
	return c.JSON(http.StatusOK, r)
}
