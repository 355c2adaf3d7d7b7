package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cyclecount-service/internal/cyclecount"
	"cyclecount-service/internal/middleware"
	"cyclecount-service/internal/model"
	"cyclecount-service/pkg/logger"
	"cyclecount-service/prometheus"
)

// CycleCountHandler exposes the cycle count lifecycle over HTTP.
type CycleCountHandler struct {
	service *cyclecount.Service
}

// NewCycleCountHandler creates a handler backed by the lifecycle service.
func NewCycleCountHandler(service *cyclecount.Service) *CycleCountHandler {
	return &CycleCountHandler{service: service}
}

// ScheduleRequest defines the structure for count scheduling requests
type ScheduleRequest struct {
	CountType     string  `json:"count_type"`
	LocationID    *uint   `json:"location_id"`
	ScheduledDate *string `json:"scheduled_date"`
	AssignedTo    *uint   `json:"assigned_to"`
	BlindCount    bool    `json:"blind_count"`
	Notes         string  `json:"notes"`
	SelectionRule string  `json:"selection_rule"`
	SampleSize    int     `json:"sample_size"`
	ProductIDs    []uint  `json:"product_ids"`
	ABCClass      string  `json:"abc_class"`
}

// RecordRequest defines the structure for item count recording requests
type RecordRequest struct {
	CountedQty *int   `json:"counted_qty"`
	Notes      string `json:"notes"`
}

// CompleteRequest defines the structure for count completion requests
type CompleteRequest struct {
	Force bool `json:"force"`
}

// ApproveRequest defines the structure for count approval requests
type ApproveRequest struct {
	ApprovedItemIDs []uint `json:"approved_item_ids"`
}

// Schedule handles creating a new cycle count with its item snapshot
func (h *CycleCountHandler) Schedule(c echo.Context) error {
	log := logger.FromContext(c)

	actingUser, ok := middleware.ActingUserFromContext(c)
	if !ok {
		log.Error("Missing acting user in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	scheduleReq := cyclecount.ScheduleRequest{
		CountType:  model.CountType(req.CountType),
		LocationID: req.LocationID,
		AssignedTo: req.AssignedTo,
		BlindCount: req.BlindCount,
		Notes:      req.Notes,
		Selection:  cyclecount.SelectionRule(req.SelectionRule),
		SampleSize: req.SampleSize,
		ProductIDs: req.ProductIDs,
		ABCClass:   model.ABCClass(req.ABCClass),
	}
	if req.ScheduledDate != nil {
		date, err := time.Parse("2006-01-02", *req.ScheduledDate)
		if err != nil {
			log.Warn("Invalid scheduled_date", zap.String("value", *req.ScheduledDate))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_date must be YYYY-MM-DD"})
		}
		scheduleReq.ScheduledDate = &date
	}

	count, err := h.service.Schedule(c.Request().Context(), scheduleReq, actingUser)
	if err != nil {
		return h.writeError(c, log, err)
	}

	prometheus.RecordCountOperation("schedule")
	log.Info("Cycle count scheduled",
		zap.String("count_number", count.CountNumber),
		zap.Int("items", len(count.Items)))
	return c.JSON(http.StatusCreated, h.countResponse(count, true))
}

// List handles retrieving cycle counts with optional filtering
func (h *CycleCountHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	filter := cyclecount.ListFilter{
		Status:    model.CountStatus(c.QueryParam("status")),
		CountType: model.CountType(c.QueryParam("count_type")),
	}
	if raw := c.QueryParam("location_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			log.Warn("Invalid location_id parameter", zap.String("value", raw))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid location_id"})
		}
		locationID := uint(id)
		filter.LocationID = &locationID
	}

	counts, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		log.Error("Failed to list cycle counts", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve cycle counts"})
	}

	log.Info("Cycle counts retrieved", zap.Int("count", len(counts)))
	return c.JSON(http.StatusOK, counts)
}

// Get handles retrieving a single cycle count with items and summary
func (h *CycleCountHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)

	countID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cycle count ID"})
	}

	count, err := h.service.Get(c.Request().Context(), countID)
	if err != nil {
		return h.writeError(c, log, err)
	}

	return c.JSON(http.StatusOK, h.countResponse(count, true))
}

// Start handles moving a pending count to in_progress
func (h *CycleCountHandler) Start(c echo.Context) error {
	return h.transition(c, "start", func(c echo.Context, countID, actingUser uint) (*model.CycleCount, error) {
		return h.service.Start(c.Request().Context(), countID, actingUser)
	})
}

// Complete handles submitting an in_progress count for approval
func (h *CycleCountHandler) Complete(c echo.Context) error {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	return h.transition(c, "complete", func(c echo.Context, countID, actingUser uint) (*model.CycleCount, error) {
		return h.service.Complete(c.Request().Context(), countID, req.Force, actingUser)
	})
}

// Reject handles sending a pending_approval count back for a full recount
func (h *CycleCountHandler) Reject(c echo.Context) error {
	return h.transition(c, "reject", func(c echo.Context, countID, actingUser uint) (*model.CycleCount, error) {
		return h.service.Reject(c.Request().Context(), countID, actingUser)
	})
}

// Cancel handles cancelling a pending or in_progress count
func (h *CycleCountHandler) Cancel(c echo.Context) error {
	return h.transition(c, "cancel", func(c echo.Context, countID, actingUser uint) (*model.CycleCount, error) {
		return h.service.Cancel(c.Request().Context(), countID, actingUser)
	})
}

// Approve handles the final approval of a pending_approval count
func (h *CycleCountHandler) Approve(c echo.Context) error {
	log := logger.FromContext(c)

	actingUser, ok := middleware.ActingUserFromContext(c)
	if !ok {
		log.Error("Missing acting user in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	countID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cycle count ID"})
	}

	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	defer prometheus.TrackDBOperation("approve_count")(time.Now())
	count, adjustments, err := h.service.Approve(c.Request().Context(), countID, req.ApprovedItemIDs, actingUser)
	if err != nil {
		return h.writeError(c, log, err)
	}

	prometheus.RecordCountOperation("approve")
	deltas := make([]int, len(adjustments))
	for i, adj := range adjustments {
		deltas[i] = adj.Delta
	}
	prometheus.RecordAdjustments(deltas)

	summary := cyclecount.Summarize(count.Items)
	log.Info("Cycle count approved",
		zap.String("count_number", count.CountNumber),
		zap.Int("adjustments_applied", len(adjustments)),
		zap.String("net_variance_cost", summary.NetVarianceCost.String()))
	return c.JSON(http.StatusOK, echo.Map{
		"cycle_count":         h.countResponse(count, true),
		"applied_adjustments": adjustments,
	})
}

// RecordItem handles saving a counted quantity for one item. Re-recording
// overwrites, so auto-saving clients can call it repeatedly.
func (h *CycleCountHandler) RecordItem(c echo.Context) error {
	log := logger.FromContext(c)

	actingUser, ok := middleware.ActingUserFromContext(c)
	if !ok {
		log.Error("Missing acting user in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	itemID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item ID"})
	}

	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "counted_qty must be an integer"})
	}
	if req.CountedQty == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "counted_qty is required"})
	}

	item, count, err := h.service.Record(c.Request().Context(), itemID, *req.CountedQty, actingUser, req.Notes)
	if err != nil {
		return h.writeError(c, log, err)
	}

	prometheus.RecordCountOperation("record")
	log.Info("Item count recorded",
		zap.Uint("item_id", item.ID),
		zap.Int("counted_qty", *item.CountedQty),
		zap.Uint("counted_by", actingUser))
	return c.JSON(http.StatusOK, newItemView(item, blindPhase(count)))
}

// Lookup handles resolving a scanned barcode or SKU to a count item. A miss
// is answered with found=false rather than an error status.
func (h *CycleCountHandler) Lookup(c echo.Context) error {
	log := logger.FromContext(c)

	countID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cycle count ID"})
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code query parameter is required"})
	}

	item, count, err := h.service.Lookup(c.Request().Context(), countID, code)
	if err != nil {
		return h.writeError(c, log, err)
	}

	prometheus.RecordLookup(item != nil)
	if item == nil {
		log.Info("Scan did not match any item", zap.String("code", code))
		return c.JSON(http.StatusOK, echo.Map{"found": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"found": true, "item": newItemView(item, blindPhase(count))})
}

// transition factors the shared shape of the simple state transitions.
func (h *CycleCountHandler) transition(c echo.Context, operation string, fn func(c echo.Context, countID, actingUser uint) (*model.CycleCount, error)) error {
	log := logger.FromContext(c)

	actingUser, ok := middleware.ActingUserFromContext(c)
	if !ok {
		log.Error("Missing acting user in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	countID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cycle count ID"})
	}

	count, err := fn(c, countID, actingUser)
	if err != nil {
		return h.writeError(c, log, err)
	}

	prometheus.RecordCountOperation(operation)
	return c.JSON(http.StatusOK, h.countResponse(count, true))
}

// writeError maps core errors onto HTTP statuses.
func (h *CycleCountHandler) writeError(c echo.Context, log *zap.Logger, err error) error {
	var validationErr *cyclecount.ValidationError
	var notFoundErr *cyclecount.NotFoundError
	var stateErr *cyclecount.InvalidStateError
	var dependencyErr *cyclecount.DependencyError

	switch {
	case errors.As(err, &validationErr):
		log.Warn("Validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		log.Warn("Resource not found", zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundErr.Error()})
	case errors.As(err, &stateErr):
		log.Warn("Invalid state transition", zap.Error(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": stateErr.Error()})
	case errors.As(err, &dependencyErr):
		log.Error("Dependency failure", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": dependencyErr.Error()})
	default:
		log.Error("Unexpected error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// itemView is the item representation returned to clients. Expected quantity
// and variance are withheld while a blind count is still being counted.
type itemView struct {
	ID            uint          `json:"id"`
	CycleCountID  uint          `json:"cycle_count_id"`
	ProductID     uint          `json:"product_id"`
	Product       model.Product `json:"product"`
	LocationID    uint          `json:"location_id"`
	SublocationID *uint         `json:"sublocation_id,omitempty"`
	ExpectedQty   *int          `json:"expected_qty,omitempty"`
	CountedQty    *int          `json:"counted_qty,omitempty"`
	Variance      *int          `json:"variance,omitempty"`
	Notes         string        `json:"notes"`
	CountedBy     *uint         `json:"counted_by,omitempty"`
	CountedAt     *time.Time    `json:"counted_at,omitempty"`
}

type countView struct {
	model.CycleCount
	Items   []itemView          `json:"items"`
	Summary *cyclecount.Summary `json:"summary,omitempty"`
}

// blindPhase reports whether a count's expected quantities must stay hidden.
// They are withheld on a blind count until it leaves the counting phase, so
// the counter cannot anchor on them. Every item-bearing response goes through
// it, the single count view and the per-item record and scan answers alike.
func blindPhase(count *model.CycleCount) bool {
	return count.BlindCount &&
		(count.Status == model.StatusPending || count.Status == model.StatusInProgress)
}

func newItemView(item *model.CycleCountItem, blind bool) itemView {
	iv := itemView{
		ID:            item.ID,
		CycleCountID:  item.CycleCountID,
		ProductID:     item.ProductID,
		Product:       item.Product,
		LocationID:    item.LocationID,
		SublocationID: item.SublocationID,
		CountedQty:    item.CountedQty,
		Notes:         item.Notes,
		CountedBy:     item.CountedBy,
		CountedAt:     item.CountedAt,
	}
	if !blind {
		expected := item.ExpectedQty
		iv.ExpectedQty = &expected
		if variance, counted := item.Variance(); counted {
			iv.Variance = &variance
		}
	}
	return iv
}

func (h *CycleCountHandler) countResponse(count *model.CycleCount, withSummary bool) countView {
	blind := blindPhase(count)

	view := countView{CycleCount: *count}
	view.CycleCount.Items = nil
	for i := range count.Items {
		view.Items = append(view.Items, newItemView(&count.Items[i], blind))
	}

	if withSummary && !blind {
		summary := cyclecount.Summarize(count.Items)
		view.Summary = &summary
	}
	return view
}

func parseID(c echo.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
