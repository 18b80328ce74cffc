package feeds

import (
	"errors"

	"livesync/core/logger"
	"livesync/core/reconcile"
	"livesync/core/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for feeds.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the feed routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/feeds")
	group.Get("/", h.HandleList)
	group.Get("/:name", h.HandleSnapshot)
	group.Get("/:name/entities/:id", h.HandleEntity)
	group.Post("/:name/resync", h.HandleResync)
	group.Post("/:name/archive", h.HandleArchive)
	group.Get("/:name/archives", h.HandleArchives)
}

// SnapshotResponse is the body of GET /feeds/{name}.
type SnapshotResponse struct {
	Feed     string             `json:"feed"`
	State    session.State      `json:"state"`
	Version  uint64             `json:"version"`
	Total    int                `json:"total"`
	Error    string             `json:"error,omitempty"`
	Entities []reconcile.Entity `json:"entities"`
}

// HandleList returns the status of every feed.
// @Summary List Feeds
// @Description Status of every configured feed.
// @Tags feeds
// @Produce json
// @Success 200 {array} session.Status
// @Router /feeds [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	return c.JSON(h.service.Statuses())
}

// HandleSnapshot returns the latest snapshot of a feed.
// @Summary Get Feed Snapshot
// @Description Latest reconciled collection. Supports offset and limit paging.
// @Tags feeds
// @Produce json
// @Param name path string true "Feed name (users, news, transactions)"
// @Param offset query int false "First entity index"
// @Param limit query int false "Maximum entities returned"
// @Success 200 {object} SnapshotResponse
// @Failure 404 {object} map[string]string "Unknown feed"
// @Failure 503 {object} map[string]string "Feed not ready"
// @Router /feeds/{name} [get]
func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	sess, snap, err := h.ready(c)
	if err != nil {
		return h.fail(c, err)
	}

	st := sess.Status()
	total := snap.Len()
	offset := clamp(c.QueryInt("offset", 0), 0, total)
	end := total
	if limit := c.QueryInt("limit", 0); limit > 0 && offset+limit < total {
		end = offset + limit
	}

	entities := make([]reconcile.Entity, 0, end-offset)
	for i := offset; i < end; i++ {
		entities = append(entities, snap.At(i))
	}

	return c.JSON(SnapshotResponse{
		Feed:     sess.Feed(),
		State:    st.State,
		Version:  snap.Version(),
		Total:    total,
		Error:    st.Error,
		Entities: entities,
	})
}

// HandleEntity returns one entity.
// @Summary Get Entity
// @Tags feeds
// @Produce json
// @Param name path string true "Feed name"
// @Param id path string true "Entity id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Unknown feed or entity"
// @Failure 503 {object} map[string]string "Feed not ready"
// @Router /feeds/{name}/entities/{id} [get]
func (h *Handler) HandleEntity(c *fiber.Ctx) error {
	_, snap, err := h.ready(c)
	if err != nil {
		return h.fail(c, err)
	}

	id, ok := reconcile.ParseID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}
	entity, ok := snap.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entity not found"})
	}
	return c.JSON(entity)
}

// HandleResync requests a full snapshot reload.
// @Summary Resync Feed
// @Tags feeds
// @Produce json
// @Param name path string true "Feed name"
// @Success 202 {object} map[string]string
// @Failure 404 {object} map[string]string "Unknown feed"
// @Router /feeds/{name}/resync [post]
func (h *Handler) HandleResync(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.service.Resync(name); err != nil {
		return h.fail(c, err)
	}
	logger.WithRayID(h.service.logger, c).Info("Resync requested over API", zap.String("feed", name))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "resync requested"})
}

// HandleArchive stores the current snapshot.
// @Summary Archive Feed Snapshot
// @Tags feeds
// @Produce json
// @Param name path string true "Feed name"
// @Success 201 {object} map[string]string
// @Failure 404 {object} map[string]string "Unknown feed"
// @Failure 501 {object} map[string]string "Archiving disabled"
// @Failure 503 {object} map[string]string "Feed not ready"
// @Router /feeds/{name}/archive [post]
func (h *Handler) HandleArchive(c *fiber.Ctx) error {
	key, err := h.service.Archive(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

// HandleArchives lists stored snapshots.
// @Summary List Feed Archives
// @Tags feeds
// @Produce json
// @Param name path string true "Feed name"
// @Success 200 {array} archive.Entry
// @Failure 404 {object} map[string]string "Unknown feed"
// @Failure 501 {object} map[string]string "Archiving disabled"
// @Router /feeds/{name}/archives [get]
func (h *Handler) HandleArchives(c *fiber.Ctx) error {
	entries, err := h.service.Archives(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entries)
}

// ready resolves the feed and its snapshot.
func (h *Handler) ready(c *fiber.Ctx) (*session.Session, *reconcile.Snapshot, error) {
	sess, err := h.service.Session(c.Params("name"))
	if err != nil {
		return nil, nil, err
	}
	st := sess.Status()
	snap := sess.Snapshot()
	if snap == nil || st.State != session.StateReady {
		return nil, nil, &notReadyError{state: st.State, reason: st.Error}
	}
	return sess, snap, nil
}

// notReadyError carries the session state into the 503 body.
type notReadyError struct {
	state  session.State
	reason string
}

func (e *notReadyError) Error() string {
	if e.state == session.StateFailed && e.reason != "" {
		return e.reason
	}
	return ErrNotReady.Error()
}

func (e *notReadyError) Unwrap() error {
	return ErrNotReady
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	status := fiber.StatusInternalServerError
	var notReady *notReadyError
	switch {
	case errors.Is(err, ErrUnknownFeed):
		status = fiber.StatusNotFound
	case errors.As(err, &notReady):
		status = fiber.StatusServiceUnavailable
		body["state"] = notReady.state
	case errors.Is(err, ErrNotReady):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, ErrArchiveDisabled):
		status = fiber.StatusNotImplemented
	default:
		logger.WithRayID(h.service.logger, c).Error("Feed request failed", zap.Error(err))
	}
	return c.Status(status).JSON(body)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
