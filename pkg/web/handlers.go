package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livehelper/pkg/helper"
	"github.com/teslashibe/go-livehelper/pkg/hub"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

// SessionRequest is the body of start and switch.
type SessionRequest struct {
	Persona string `json:"persona"`
	Focus   string `json:"focus"`
}

// MuteRequest is the body of mute.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// errorHandler renders errors as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// sessionError maps a session control error to an HTTP error.
func sessionError(err error) error {
	var acq *voice.AcquisitionError
	var tr *voice.TransportError
	switch {
	case errors.Is(err, voice.ErrSessionActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, helper.ErrUnknownPersona), errors.Is(err, helper.ErrUnknownFocus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &acq), errors.As(err, &tr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handlePersonas(c *fiber.Ctx) error {
	return c.JSON(helper.Personas())
}

func (s *Server) sessionRequest(c *fiber.Ctx) (SessionRequest, error) {
	var req SessionRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return req, nil
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if s.opts.Sessions == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session control not configured")
	}
	req, err := s.sessionRequest(c)
	if err != nil {
		return err
	}
	if err := s.opts.Sessions.Start(c.UserContext(), req.Persona, req.Focus); err != nil {
		return sessionError(err)
	}
	return c.JSON(s.Status())
}

func (s *Server) handleSwitch(c *fiber.Ctx) error {
	if s.opts.Sessions == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session control not configured")
	}
	req, err := s.sessionRequest(c)
	if err != nil {
		return err
	}
	if err := s.opts.Sessions.Switch(c.UserContext(), req.Persona, req.Focus); err != nil {
		return sessionError(err)
	}
	return c.JSON(s.Status())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.opts.Sessions == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session control not configured")
	}
	if err := s.opts.Sessions.Stop(); err != nil {
		return err
	}
	return c.JSON(s.Status())
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	if s.opts.Sessions == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session control not configured")
	}
	var req MuteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	s.opts.Sessions.SetMuted(req.Muted)
	return c.JSON(fiber.Map{"muted": req.Muted})
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.Transcript())
}

func (s *Server) handleBoard(c *fiber.Ctx) error {
	return c.JSON(s.opts.Board.Snapshot())
}

func (s *Server) handleCompleteJob(c *fiber.Ctx) error {
	if !s.opts.Board.CompleteJob(c.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "job not found")
	}
	return c.JSON(s.opts.Board.Snapshot())
}

func (s *Server) handleTools(c *fiber.Ctx) error {
	return c.JSON(s.opts.Tools())
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	initial, err := hub.NewJSONMessage(s.Status())
	if err != nil {
		return
	}
	if client := hub.NewClient(s.statusHub, c, initial); client != nil {
		client.Run()
	}
}

func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	var initial []hub.Message
	for _, line := range s.Transcript() {
		if msg, err := hub.NewJSONMessage(line); err == nil {
			initial = append(initial, msg)
		}
	}
	if client := hub.NewClient(s.transcriptHub, c, initial...); client != nil {
		client.Run()
	}
}
