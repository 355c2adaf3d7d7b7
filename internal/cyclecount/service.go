package cyclecount

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"cyclecount-service/internal/model"
)

// Repository is the persistence surface the lifecycle service needs. The
// gorm implementation lives in the repository subpackage; tests use an
// in-memory fake.
type Repository interface {
	// CreateCount reports a count_number collision as
	// ErrDuplicateCountNumber so the caller can regenerate and retry.
	CreateCount(ctx context.Context, count *model.CycleCount) error
	// GetCount returns the count with its items and their products loaded,
	// or (nil, nil) when the id does not resolve.
	GetCount(ctx context.Context, id uint) (*model.CycleCount, error)
	ListCounts(ctx context.Context, filter ListFilter) ([]model.CycleCount, error)
	// GetItem returns (nil, nil) when the id does not resolve.
	GetItem(ctx context.Context, id uint) (*model.CycleCountItem, error)
	SaveCount(ctx context.Context, count *model.CycleCount) error
	SaveItem(ctx context.Context, item *model.CycleCountItem) error
	// FinalizeRejection persists the rejected count together with the wipe
	// of every recorded quantity in a single transaction: the recount reset
	// either happens whole or not at all.
	FinalizeRejection(ctx context.Context, count *model.CycleCount) error
	// FinalizeApproval persists the approved count together with its
	// inventory adjustments in a single transaction: either every
	// adjustment lands and the count flips to completed, or nothing does.
	FinalizeApproval(ctx context.Context, count *model.CycleCount, adjustments []model.InventoryAdjustment) error
	CountsCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// InventoryReader supplies the stock levels a count snapshots its expected
// quantities from. It is read once, at schedule time.
type InventoryReader interface {
	// LevelsForLocation returns levels for one location, or for all
	// locations when locationID is nil. Products are loaded.
	LevelsForLocation(ctx context.Context, locationID *uint) ([]model.InventoryLevel, error)
}

// ListFilter narrows ListCounts results. Zero values mean "any".
type ListFilter struct {
	Status     model.CountStatus
	CountType  model.CountType
	LocationID *uint
}

// SelectionRule determines which products a scheduled count includes.
type SelectionRule string

const (
	SelectAll      SelectionRule = "all"
	SelectRandom   SelectionRule = "random"
	SelectExplicit SelectionRule = "explicit"
	SelectABC      SelectionRule = "abc"
)

// ScheduleRequest carries everything needed to create a count.
type ScheduleRequest struct {
	CountType     model.CountType
	LocationID    *uint
	ScheduledDate *time.Time
	AssignedTo    *uint
	BlindCount    bool
	Notes         string
	Selection     SelectionRule
	SampleSize    int
	ProductIDs    []uint
	ABCClass      model.ABCClass
}

// Service owns the cycle count lifecycle: scheduling, the status state
// machine, count recording and the approval protocol.
type Service struct {
	repo      Repository
	inventory InventoryReader
	log       *zap.Logger
}

// NewService creates a cycle count lifecycle service.
func NewService(repo Repository, inventory InventoryReader, log *zap.Logger) *Service {
	return &Service{repo: repo, inventory: inventory, log: log}
}

// Schedule creates a new count in pending status and materializes one item
// per product/sublocation in scope, snapshotting expected quantities from
// current inventory. The snapshot is never re-synced afterwards.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest, actingUser uint) (*model.CycleCount, error) {
	if err := validateSchedule(&req); err != nil {
		return nil, err
	}

	levels, err := s.inventory.LevelsForLocation(ctx, req.LocationID)
	if err != nil {
		return nil, &DependencyError{Op: "inventory snapshot", Err: err}
	}

	levels = selectLevels(levels, &req)
	if len(levels) == 0 {
		return nil, &ValidationError{Message: "no inventory matches the requested scope"}
	}

	items := make([]model.CycleCountItem, 0, len(levels))
	for _, level := range levels {
		items = append(items, model.CycleCountItem{
			ProductID:     level.ProductID,
			LocationID:    level.LocationID,
			SublocationID: level.SublocationID,
			ExpectedQty:   level.OnHand,
		})
	}

	// Concurrent schedules can race on the per-day sequence. The unique
	// constraint on count_number catches the loser, which regenerates its
	// number and retries.
	var count *model.CycleCount
	for attempt := 0; ; attempt++ {
		number, err := s.nextCountNumber(ctx)
		if err != nil {
			return nil, err
		}
		count = &model.CycleCount{
			CountNumber:   number,
			CountType:     req.CountType,
			LocationID:    req.LocationID,
			Status:        model.StatusPending,
			ScheduledDate: req.ScheduledDate,
			AssignedTo:    req.AssignedTo,
			BlindCount:    req.BlindCount,
			Notes:         req.Notes,
			Items:         append([]model.CycleCountItem(nil), items...),
		}
		err = s.repo.CreateCount(ctx, count)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateCountNumber) && attempt < 2 {
			continue
		}
		return nil, err
	}

	s.log.Info("cycle count scheduled",
		zap.String("count_number", count.CountNumber),
		zap.String("count_type", string(count.CountType)),
		zap.Int("items", len(count.Items)),
		zap.Uint("scheduled_by", actingUser))
	return count, nil
}

// Start moves a pending count to in_progress.
func (s *Service) Start(ctx context.Context, countID uint, actingUser uint) (*model.CycleCount, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count.Status != model.StatusPending {
		return nil, &InvalidStateError{Event: "start", Status: count.Status}
	}

	now := time.Now().UTC()
	count.Status = model.StatusInProgress
	count.StartedAt = &now
	if err := s.repo.SaveCount(ctx, count); err != nil {
		return nil, err
	}

	s.log.Info("cycle count started",
		zap.String("count_number", count.CountNumber),
		zap.Uint("started_by", actingUser))
	return count, nil
}

// Record saves a counted quantity for one item. Re-recording the same item
// overwrites the previous values, so auto-saving clients can call it freely.
// The parent count is returned alongside the item so callers can apply its
// blind-count visibility rule to the response.
func (s *Service) Record(ctx context.Context, itemID uint, countedQty int, actingUser uint, notes string) (*model.CycleCountItem, *model.CycleCount, error) {
	if countedQty < 0 {
		return nil, nil, &ValidationError{Field: "counted_qty", Message: "must not be negative"}
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, &NotFoundError{Resource: "cycle count item", ID: itemID}
	}

	count, err := s.getCount(ctx, item.CycleCountID)
	if err != nil {
		return nil, nil, err
	}
	if count.Status != model.StatusInProgress {
		return nil, nil, &InvalidStateError{Event: "record a count for", Status: count.Status}
	}

	now := time.Now().UTC()
	item.CountedQty = &countedQty
	item.Notes = notes
	item.CountedBy = &actingUser
	item.CountedAt = &now
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, nil, err
	}
	return item, count, nil
}

// Complete moves an in_progress count to pending_approval. At least one item
// must be counted; if uncounted items remain the caller has to confirm with
// force.
func (s *Service) Complete(ctx context.Context, countID uint, force bool, actingUser uint) (*model.CycleCount, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count.Status != model.StatusInProgress {
		return nil, &InvalidStateError{Event: "complete", Status: count.Status}
	}

	counted := 0
	for i := range count.Items {
		if count.Items[i].Counted() {
			counted++
		}
	}
	if counted == 0 {
		return nil, &ValidationError{Message: "cannot complete a count with no recorded quantities"}
	}
	if uncounted := len(count.Items) - counted; uncounted > 0 && !force {
		return nil, &ValidationError{
			Field:   "force",
			Message: fmt.Sprintf("%d of %d items are uncounted; set force to complete anyway", uncounted, len(count.Items)),
		}
	}

	now := time.Now().UTC()
	count.Status = model.StatusPendingApproval
	count.CompletedAt = &now
	if err := s.repo.SaveCount(ctx, count); err != nil {
		return nil, err
	}

	s.log.Info("cycle count submitted for approval",
		zap.String("count_number", count.CountNumber),
		zap.Int("counted_items", counted),
		zap.Int("total_items", len(count.Items)),
		zap.Uint("completed_by", actingUser))
	return count, nil
}

// Reject sends a pending_approval count back to pending and wipes every
// recorded quantity. The wipe is deliberate: operators rely on rejection
// forcing a full recount, not a partial redo.
func (s *Service) Reject(ctx context.Context, countID uint, actingUser uint) (*model.CycleCount, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count.Status != model.StatusPendingApproval {
		return nil, &InvalidStateError{Event: "reject", Status: count.Status}
	}

	count.Status = model.StatusPending
	count.StartedAt = nil
	count.CompletedAt = nil
	for i := range count.Items {
		item := &count.Items[i]
		item.CountedQty = nil
		item.Notes = ""
		item.CountedBy = nil
		item.CountedAt = nil
	}
	if err := s.repo.FinalizeRejection(ctx, count); err != nil {
		return nil, err
	}

	s.log.Info("cycle count rejected for recount",
		zap.String("count_number", count.CountNumber),
		zap.Uint("rejected_by", actingUser))
	return count, nil
}

// Cancel terminates a pending or in_progress count with no inventory side
// effects.
func (s *Service) Cancel(ctx context.Context, countID uint, actingUser uint) (*model.CycleCount, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count.Status != model.StatusPending && count.Status != model.StatusInProgress {
		return nil, &InvalidStateError{Event: "cancel", Status: count.Status}
	}

	count.Status = model.StatusCancelled
	if err := s.repo.SaveCount(ctx, count); err != nil {
		return nil, err
	}

	s.log.Info("cycle count cancelled",
		zap.String("count_number", count.CountNumber),
		zap.Uint("cancelled_by", actingUser))
	return count, nil
}

// Approve completes a pending_approval count. Every approved variance item
// produces one inventory adjustment equal to its variance; items left out of
// approvedItemIDs keep their counted quantity on record but move no stock.
// The adjustments and the status flip are applied all-or-none: if any write
// fails the count stays in pending_approval and no stock moves.
func (s *Service) Approve(ctx context.Context, countID uint, approvedItemIDs []uint, actingUser uint) (*model.CycleCount, []model.InventoryAdjustment, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, nil, err
	}
	if count.Status != model.StatusPendingApproval {
		return nil, nil, &InvalidStateError{Event: "approve", Status: count.Status}
	}

	approved := make(map[uint]bool, len(approvedItemIDs))
	for _, id := range approvedItemIDs {
		approved[id] = true
	}

	var adjustments []model.InventoryAdjustment
	for i := range count.Items {
		item := &count.Items[i]
		variance, counted := item.Variance()
		if !counted || variance == 0 || !approved[item.ID] {
			continue
		}
		adjustments = append(adjustments, model.InventoryAdjustment{
			ProductID:     item.ProductID,
			LocationID:    item.LocationID,
			SublocationID: item.SublocationID,
			Delta:         variance,
			Reason:        "cycle count " + count.CountNumber,
			CycleCountID:  &count.ID,
			AdjustedBy:    actingUser,
		})
	}

	now := time.Now().UTC()
	count.Status = model.StatusCompleted
	count.ApprovedAt = &now
	count.ApprovedBy = &actingUser
	if err := s.repo.FinalizeApproval(ctx, count, adjustments); err != nil {
		return nil, nil, &DependencyError{Op: "inventory adjustment", Err: err}
	}

	s.log.Info("cycle count approved",
		zap.String("count_number", count.CountNumber),
		zap.Int("adjustments_applied", len(adjustments)),
		zap.Uint("approved_by", actingUser))
	return count, adjustments, nil
}

// Get returns one count with its items, products loaded.
func (s *Service) Get(ctx context.Context, countID uint) (*model.CycleCount, error) {
	return s.getCount(ctx, countID)
}

// List returns counts matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.CycleCount, error) {
	return s.repo.ListCounts(ctx, filter)
}

// Lookup resolves a scanned barcode or SKU to an item of the count. A miss
// returns a nil item: the scanner UI treats it as "not found", not a fault.
// The count is returned so callers can apply its blind-count visibility rule.
func (s *Service) Lookup(ctx context.Context, countID uint, token string) (*model.CycleCountItem, *model.CycleCount, error) {
	count, err := s.getCount(ctx, countID)
	if err != nil {
		return nil, nil, err
	}
	return MatchItem(count.Items, token), count, nil
}

func (s *Service) getCount(ctx context.Context, countID uint) (*model.CycleCount, error) {
	count, err := s.repo.GetCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count == nil {
		return nil, &NotFoundError{Resource: "cycle count", ID: countID}
	}
	return count, nil
}

// nextCountNumber assigns a per-day sequence number, e.g. CC-20260830-0003.
func (s *Service) nextCountNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seq, err := s.repo.CountsCreatedSince(ctx, midnight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CC-%s-%04d", now.Format("20060102"), seq+1), nil
}

func validateSchedule(req *ScheduleRequest) error {
	switch req.CountType {
	case model.CountTypeCycle, model.CountTypeFull, model.CountTypeSpot:
	default:
		return &ValidationError{Field: "count_type", Message: "must be cycle, full or spot"}
	}
	if req.LocationID == nil && req.CountType != model.CountTypeFull {
		return &ValidationError{Field: "location_id", Message: "required unless count_type is full"}
	}

	switch req.Selection {
	case SelectAll:
	case SelectRandom:
		if req.SampleSize <= 0 {
			return &ValidationError{Field: "sample_size", Message: "must be positive for random selection"}
		}
	case SelectExplicit:
		if len(req.ProductIDs) == 0 {
			return &ValidationError{Field: "product_ids", Message: "required for explicit selection"}
		}
	case SelectABC:
		switch req.ABCClass {
		case model.ABCClassA, model.ABCClassB, model.ABCClassC:
		default:
			return &ValidationError{Field: "abc_class", Message: "must be A, B or C"}
		}
	default:
		return &ValidationError{Field: "selection_rule", Message: "must be all, random, explicit or abc"}
	}
	return nil
}

// selectLevels applies the selection rule to the in-scope inventory levels.
// Inactive products are never included.
func selectLevels(levels []model.InventoryLevel, req *ScheduleRequest) []model.InventoryLevel {
	active := levels[:0]
	for _, level := range levels {
		if level.Product.IsActive {
			active = append(active, level)
		}
	}
	levels = active

	switch req.Selection {
	case SelectRandom:
		rand.Shuffle(len(levels), func(i, j int) {
			levels[i], levels[j] = levels[j], levels[i]
		})
		if len(levels) > req.SampleSize {
			levels = levels[:req.SampleSize]
		}
	case SelectExplicit:
		wanted := make(map[uint]bool, len(req.ProductIDs))
		for _, id := range req.ProductIDs {
			wanted[id] = true
		}
		var picked []model.InventoryLevel
		for _, level := range levels {
			if wanted[level.ProductID] {
				picked = append(picked, level)
			}
		}
		levels = picked
	case SelectABC:
		var picked []model.InventoryLevel
		for _, level := range levels {
			if level.Product.ABCClass == req.ABCClass {
				picked = append(picked, level)
			}
		}
		levels = picked
	}
	return levels
}
