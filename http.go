package raidguard

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"
)

// AdminServer exposes the engine's operations over HTTP for operators and
// dashboards. All routes sit behind basic auth with bcrypt-hashed passwords.
type AdminServer struct {
	guard *Guard
	app   *fiber.App
}

// NewAdminServer wires the admin API. users maps usernames to bcrypt hashes;
// an empty map disables authentication (sandbox use only).
func NewAdminServer(guard *Guard, users map[string]string) *AdminServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
	})

	if len(users) > 0 {
		app.Use(basicauth.New(basicauth.Config{
			Authorizer: func(user, pass string) bool {
				hash, ok := users[user]
				if !ok {
					return false
				}
				return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
			},
		}))
	}

	s := &AdminServer{guard: guard, app: app}
	s.routes()
	return s
}

// App returns the underlying fiber application, for embedding or testing.
func (s *AdminServer) App() *fiber.App { return s.app }

// Listen blocks serving the admin API on addr.
func (s *AdminServer) Listen(addr string) error { return s.app.Listen(addr) }

func (s *AdminServer) routes() {
	api := s.app.Group("/api/v1")

	api.Post("/communities/:id/lockdown", s.handleLockdown)
	api.Post("/communities/:id/unlock", s.handleUnlock)
	api.Post("/communities/:id/silence", s.handleSilence)
	api.Post("/communities/:id/pause-invites", s.handlePauseInvites)
	api.Get("/communities/:id/status", s.handleStatus)
	api.Get("/communities/:id/audit-log", s.handleAuditLog)
	api.Get("/communities/:id/users/:userId", s.handleUserInfo)
	api.Post("/communities/:id/min-age", s.handleSetMinAge)

	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handlePutConfig)

	api.Get("/events", s.handleEvents)
	api.Get("/events/summary", s.handleEventsSummary)

	s.app.Get("/metrics", s.handleMetrics)
	s.app.Get("/healthz", s.handleHealth)
}

type sweepRequest struct {
	InitiatorID string `json:"initiatorId"`
	Reason      string `json:"reason"`
	Duration    string `json:"duration,omitempty"`
}

func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrAlreadyLocked), errors.Is(err, ErrNotLocked):
		status = fiber.StatusConflict
	case errors.Is(err, ErrMuteRoleNotConfigured), errors.Is(err, ErrMuteRoleNotFound):
		status = fiber.StatusPreconditionFailed
	case errors.Is(err, ErrTargetImmune):
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *AdminServer) handleLockdown(c *fiber.Ctx) error {
	var req sweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	report, err := s.guard.Lockdown(c.Context(), c.Params("id"), req.InitiatorID, req.Reason)
	if err != nil {
		if report != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "report": report})
		}
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (s *AdminServer) handleUnlock(c *fiber.Ctx) error {
	var req sweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	report, err := s.guard.Unlock(c.Context(), c.Params("id"), req.InitiatorID, req.Reason)
	if err != nil {
		if report != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "report": report})
		}
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (s *AdminServer) handleSilence(c *fiber.Ctx) error {
	var req sweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil || d <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration must be a positive Go duration"})
	}
	report, err := s.guard.Silence(c.Context(), c.Params("id"), req.InitiatorID, d, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (s *AdminServer) handlePauseInvites(c *fiber.Ctx) error {
	var req sweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	report, err := s.guard.PauseInvites(c.Context(), c.Params("id"), req.InitiatorID, req.Reason)
	if err != nil {
		if report != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "report": report})
		}
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (s *AdminServer) handleStatus(c *fiber.Ctx) error {
	communityID := c.Params("id")
	return c.JSON(fiber.Map{
		"communityId": communityID,
		"locked":      s.guard.Locked(communityID),
	})
}

func (s *AdminServer) handleAuditLog(c *fiber.Ctx) error {
	kind := ActionKind(c.Query("kind", string(ActionBan)))
	limit := c.QueryInt("limit", 10)
	entries, err := s.guard.ViewAuditLog(c.Context(), c.Params("id"), kind, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (s *AdminServer) handleUserInfo(c *fiber.Ctx) error {
	report, err := s.guard.ViewUserInfo(c.Context(), c.Params("id"), c.Params("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (s *AdminServer) handleSetMinAge(c *fiber.Ctx) error {
	var req struct {
		InitiatorID string `json:"initiatorId"`
		Days        int    `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.guard.SetMinAge(c.Context(), c.Params("id"), req.InitiatorID, req.Days); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.guard.Config().Get())
}

func (s *AdminServer) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.guard.Config().Get())
}

func (s *AdminServer) handlePutConfig(c *fiber.Ctx) error {
	var cfg SecurityConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.guard.Config().Update(cfg); err != nil {
		return writeError(c, err)
	}
	return c.JSON(s.guard.Config().Get())
}

func (s *AdminServer) handleEvents(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"events": s.guard.Ledger().Snapshot()})
}

func (s *AdminServer) handleEventsSummary(c *fiber.Ctx) error {
	return c.JSON(s.guard.Ledger().Summary())
}

func (s *AdminServer) handleMetrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4")
	return c.SendString(s.guard.metrics.ExportPrometheus())
}

func (s *AdminServer) handleHealth(c *fiber.Ctx) error {
	if err := s.guard.counters.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
