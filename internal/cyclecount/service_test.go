package cyclecount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cyclecount-service/internal/model"
)

type fakeRepo struct {
	counts map[uint]*model.CycleCount
	nextID uint

	createErrs    []error
	rejectErr     error
	finalizeErr   error
	finalizeCalls int
	applied       []model.InventoryAdjustment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{counts: make(map[uint]*model.CycleCount)}
}

func (r *fakeRepo) add(count model.CycleCount) *model.CycleCount {
	if count.ID == 0 {
		r.nextID++
		count.ID = r.nextID
	}
	for i := range count.Items {
		if count.Items[i].ID == 0 {
			r.nextID++
			count.Items[i].ID = r.nextID
		}
		count.Items[i].CycleCountID = count.ID
	}
	r.counts[count.ID] = &count
	return &count
}

func copyCount(c *model.CycleCount) *model.CycleCount {
	dup := *c
	dup.Items = append([]model.CycleCountItem(nil), c.Items...)
	return &dup
}

func (r *fakeRepo) CreateCount(_ context.Context, count *model.CycleCount) error {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	created := r.add(*count)
	*count = *copyCount(created)
	return nil
}

func (r *fakeRepo) GetCount(_ context.Context, id uint) (*model.CycleCount, error) {
	count, ok := r.counts[id]
	if !ok {
		return nil, nil
	}
	return copyCount(count), nil
}

func (r *fakeRepo) ListCounts(_ context.Context, _ ListFilter) ([]model.CycleCount, error) {
	var counts []model.CycleCount
	for _, count := range r.counts {
		counts = append(counts, *copyCount(count))
	}
	return counts, nil
}

func (r *fakeRepo) GetItem(_ context.Context, id uint) (*model.CycleCountItem, error) {
	for _, count := range r.counts {
		for i := range count.Items {
			if count.Items[i].ID == id {
				item := count.Items[i]
				return &item, nil
			}
		}
	}
	return nil, nil
}

// SaveCount mirrors the gorm repository: item rows are not written here.
func (r *fakeRepo) SaveCount(_ context.Context, count *model.CycleCount) error {
	stored, ok := r.counts[count.ID]
	if !ok {
		return errors.New("count does not exist")
	}
	items := stored.Items
	*stored = *copyCount(count)
	stored.Items = items
	return nil
}

func (r *fakeRepo) SaveItem(_ context.Context, item *model.CycleCountItem) error {
	for _, count := range r.counts {
		for i := range count.Items {
			if count.Items[i].ID == item.ID {
				count.Items[i] = *item
				return nil
			}
		}
	}
	return errors.New("item does not exist")
}

// FinalizeRejection mirrors the gorm repository: either the wipe and the
// status change both land, or neither does.
func (r *fakeRepo) FinalizeRejection(_ context.Context, count *model.CycleCount) error {
	if r.rejectErr != nil {
		return r.rejectErr
	}
	stored, ok := r.counts[count.ID]
	if !ok {
		return errors.New("count does not exist")
	}
	*stored = *copyCount(count)
	return nil
}

func (r *fakeRepo) FinalizeApproval(_ context.Context, count *model.CycleCount, adjustments []model.InventoryAdjustment) error {
	r.finalizeCalls++
	if r.finalizeErr != nil {
		return r.finalizeErr
	}
	stored := r.counts[count.ID]
	items := stored.Items
	*stored = *copyCount(count)
	stored.Items = items
	r.applied = append(r.applied, adjustments...)
	return nil
}

func (r *fakeRepo) CountsCreatedSince(_ context.Context, _ time.Time) (int64, error) {
	return int64(len(r.counts)), nil
}

type fakeInventory struct {
	levels []model.InventoryLevel
	err    error
}

func (f *fakeInventory) LevelsForLocation(_ context.Context, _ *uint) ([]model.InventoryLevel, error) {
	return f.levels, f.err
}

func newTestService(repo *fakeRepo, inv *fakeInventory) *Service {
	if inv == nil {
		inv = &fakeInventory{}
	}
	return NewService(repo, inv, zap.NewNop())
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func product(id uint, sku, barcode string, cost string) model.Product {
	unitCost, _ := decimal.NewFromString(cost)
	return model.Product{ID: id, SKU: sku, Barcode: barcode, UnitCost: unitCost, IsActive: true, Name: sku}
}

// countFixture builds an in_progress count with three items unless a status
// is given.
func countFixture(status model.CountStatus) model.CycleCount {
	return model.CycleCount{
		CountNumber: "CC-20260830-0001",
		CountType:   model.CountTypeCycle,
		LocationID:  uintPtr(1),
		Status:      status,
		Items: []model.CycleCountItem{
			{ProductID: 1, LocationID: 1, ExpectedQty: 100, Product: product(1, "SKU-A", "111", "2.50")},
			{ProductID: 2, LocationID: 1, ExpectedQty: 50, Product: product(2, "SKU-B", "222", "4.00")},
			{ProductID: 3, LocationID: 1, ExpectedQty: 10, Product: product(3, "SKU-C", "333", "1.00")},
		},
	}
}

func TestScheduleValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   ScheduleRequest
		field string
	}{
		{
			name:  "unknown count type",
			req:   ScheduleRequest{CountType: "yearly", LocationID: uintPtr(1), Selection: SelectAll},
			field: "count_type",
		},
		{
			name:  "cycle count without location",
			req:   ScheduleRequest{CountType: model.CountTypeCycle, Selection: SelectAll},
			field: "location_id",
		},
		{
			name:  "spot count without location",
			req:   ScheduleRequest{CountType: model.CountTypeSpot, Selection: SelectAll},
			field: "location_id",
		},
		{
			name:  "unknown selection rule",
			req:   ScheduleRequest{CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: "half"},
			field: "selection_rule",
		},
		{
			name:  "random without sample size",
			req:   ScheduleRequest{CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectRandom},
			field: "sample_size",
		},
		{
			name:  "explicit without products",
			req:   ScheduleRequest{CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectExplicit},
			field: "product_ids",
		},
		{
			name:  "abc without class",
			req:   ScheduleRequest{CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectABC},
			field: "abc_class",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newFakeRepo(), nil)
			_, err := svc.Schedule(context.Background(), tt.req, 7)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("expected error on field %q, got %q", tt.field, validationErr.Field)
			}
		})
	}
}

func TestScheduleSnapshotsInventory(t *testing.T) {
	repo := newFakeRepo()
	inv := &fakeInventory{levels: []model.InventoryLevel{
		{ProductID: 1, LocationID: 1, OnHand: 100, Product: product(1, "SKU-A", "111", "2.50")},
		{ProductID: 2, LocationID: 1, SublocationID: uintPtr(9), OnHand: 50, Product: product(2, "SKU-B", "222", "4.00")},
	}}
	svc := newTestService(repo, inv)

	count, err := svc.Schedule(context.Background(), ScheduleRequest{
		CountType:  model.CountTypeCycle,
		LocationID: uintPtr(1),
		Selection:  SelectAll,
	}, 7)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if count.Status != model.StatusPending {
		t.Errorf("expected pending status, got %s", count.Status)
	}
	if count.CountNumber == "" {
		t.Error("expected count number to be assigned")
	}
	if len(count.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(count.Items))
	}
	if count.Items[0].ExpectedQty != 100 || count.Items[1].ExpectedQty != 50 {
		t.Errorf("expected quantities not snapshotted: %+v", count.Items)
	}
	if count.Items[1].SublocationID == nil || *count.Items[1].SublocationID != 9 {
		t.Errorf("sublocation not carried onto item")
	}
}

func TestScheduleSelectionRules(t *testing.T) {
	inactive := product(4, "SKU-D", "", "1.00")
	inactive.IsActive = false

	classA := product(1, "SKU-A", "", "9.00")
	classA.ABCClass = model.ABCClassA

	levels := []model.InventoryLevel{
		{ProductID: 1, LocationID: 1, OnHand: 10, Product: classA},
		{ProductID: 2, LocationID: 1, OnHand: 20, Product: product(2, "SKU-B", "", "2.00")},
		{ProductID: 3, LocationID: 1, OnHand: 30, Product: product(3, "SKU-C", "", "3.00")},
		{ProductID: 4, LocationID: 1, OnHand: 40, Product: inactive},
	}

	t.Run("all skips inactive products", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), &fakeInventory{levels: append([]model.InventoryLevel(nil), levels...)})
		count, err := svc.Schedule(context.Background(), ScheduleRequest{
			CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectAll,
		}, 7)
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if len(count.Items) != 3 {
			t.Errorf("expected 3 items, got %d", len(count.Items))
		}
	})

	t.Run("explicit keeps only listed products", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), &fakeInventory{levels: append([]model.InventoryLevel(nil), levels...)})
		count, err := svc.Schedule(context.Background(), ScheduleRequest{
			CountType: model.CountTypeCycle, LocationID: uintPtr(1),
			Selection: SelectExplicit, ProductIDs: []uint{2, 3},
		}, 7)
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if len(count.Items) != 2 {
			t.Errorf("expected 2 items, got %d", len(count.Items))
		}
	})

	t.Run("abc keeps only the requested class", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), &fakeInventory{levels: append([]model.InventoryLevel(nil), levels...)})
		count, err := svc.Schedule(context.Background(), ScheduleRequest{
			CountType: model.CountTypeCycle, LocationID: uintPtr(1),
			Selection: SelectABC, ABCClass: model.ABCClassA,
		}, 7)
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if len(count.Items) != 1 || count.Items[0].ProductID != 1 {
			t.Errorf("expected only product 1, got %+v", count.Items)
		}
	})

	t.Run("random honors sample size", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), &fakeInventory{levels: append([]model.InventoryLevel(nil), levels...)})
		count, err := svc.Schedule(context.Background(), ScheduleRequest{
			CountType: model.CountTypeCycle, LocationID: uintPtr(1),
			Selection: SelectRandom, SampleSize: 2,
		}, 7)
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if len(count.Items) != 2 {
			t.Errorf("expected 2 sampled items, got %d", len(count.Items))
		}
	})

	t.Run("empty scope fails", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), &fakeInventory{})
		_, err := svc.Schedule(context.Background(), ScheduleRequest{
			CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectAll,
		}, 7)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestScheduleRetriesOnNumberCollision(t *testing.T) {
	repo := newFakeRepo()
	repo.createErrs = []error{ErrDuplicateCountNumber}
	inv := &fakeInventory{levels: []model.InventoryLevel{
		{ProductID: 1, LocationID: 1, OnHand: 100, Product: product(1, "SKU-A", "111", "2.50")},
	}}
	svc := newTestService(repo, inv)

	// A concurrent schedule taking the same number must stay invisible to
	// the caller: the service regenerates and retries.
	count, err := svc.Schedule(context.Background(), ScheduleRequest{
		CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectAll,
	}, 7)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if count.CountNumber == "" {
		t.Error("expected count number to be assigned")
	}
	if len(repo.counts) != 1 {
		t.Errorf("expected exactly one stored count, got %d", len(repo.counts))
	}
	if len(count.Items) != 1 {
		t.Errorf("expected the retried count to keep its items, got %d", len(count.Items))
	}
}

func TestScheduleGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newFakeRepo()
	repo.createErrs = []error{ErrDuplicateCountNumber, ErrDuplicateCountNumber, ErrDuplicateCountNumber}
	inv := &fakeInventory{levels: []model.InventoryLevel{
		{ProductID: 1, LocationID: 1, OnHand: 100, Product: product(1, "SKU-A", "111", "2.50")},
	}}
	svc := newTestService(repo, inv)

	_, err := svc.Schedule(context.Background(), ScheduleRequest{
		CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectAll,
	}, 7)
	if !errors.Is(err, ErrDuplicateCountNumber) {
		t.Fatalf("expected ErrDuplicateCountNumber after exhausted retries, got %v", err)
	}
	if len(repo.counts) != 0 {
		t.Errorf("no count may be stored after exhausted retries, got %d", len(repo.counts))
	}
}

func TestStart(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusPending))
	svc := newTestService(repo, nil)

	count, err := svc.Start(context.Background(), stored.ID, 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if count.Status != model.StatusInProgress {
		t.Errorf("expected in_progress, got %s", count.Status)
	}
	if count.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
}

func TestStartFromWrongState(t *testing.T) {
	for _, status := range []model.CountStatus{
		model.StatusInProgress, model.StatusPendingApproval, model.StatusCompleted, model.StatusCancelled,
	} {
		repo := newFakeRepo()
		stored := repo.add(countFixture(status))
		svc := newTestService(repo, nil)

		_, err := svc.Start(context.Background(), stored.ID, 7)
		var stateErr *InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("status %s: expected InvalidStateError, got %v", status, err)
		}
		if repo.counts[stored.ID].Status != status {
			t.Errorf("status %s: count was mutated", status)
		}
	}
}

func TestStartUnknownCount(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	_, err := svc.Start(context.Background(), 42, 7)
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRecord(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusInProgress))
	svc := newTestService(repo, nil)
	itemID := stored.Items[0].ID

	item, _, err := svc.Record(context.Background(), itemID, 95, 7, "shelf looked short")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if item.CountedQty == nil || *item.CountedQty != 95 {
		t.Fatalf("counted_qty not saved: %+v", item)
	}
	if item.CountedBy == nil || *item.CountedBy != 7 {
		t.Errorf("counted_by not saved: %+v", item)
	}
	if item.CountedAt == nil {
		t.Error("counted_at not set")
	}
	if variance, ok := item.Variance(); !ok || variance != -5 {
		t.Errorf("expected variance -5, got %d (ok=%v)", variance, ok)
	}

	// Re-recording overwrites prior values.
	item, _, err = svc.Record(context.Background(), itemID, 98, 8, "")
	if err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if *item.CountedQty != 98 || *item.CountedBy != 8 || item.Notes != "" {
		t.Errorf("re-record did not overwrite: %+v", item)
	}
}

func TestRecordNegativeQty(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusInProgress))
	svc := newTestService(repo, nil)

	_, _, err := svc.Record(context.Background(), stored.Items[0].ID, -1, 7, "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.counts[stored.ID].Items[0].CountedQty != nil {
		t.Error("item was mutated by an invalid record")
	}
}

func TestRecordOutsideInProgress(t *testing.T) {
	for _, status := range []model.CountStatus{model.StatusCompleted, model.StatusCancelled, model.StatusPending, model.StatusPendingApproval} {
		repo := newFakeRepo()
		fixture := countFixture(status)
		fixture.Items[0].CountedQty = intPtr(12)
		stored := repo.add(fixture)
		svc := newTestService(repo, nil)

		_, _, err := svc.Record(context.Background(), stored.Items[0].ID, 95, 7, "")
		var stateErr *InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("status %s: expected InvalidStateError, got %v", status, err)
		}
		if got := repo.counts[stored.ID].Items[0].CountedQty; got == nil || *got != 12 {
			t.Errorf("status %s: item mutated despite invalid state", status)
		}
	}
}

func TestCompleteRequiresRecordedQuantities(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusInProgress))
	svc := newTestService(repo, nil)

	_, err := svc.Complete(context.Background(), stored.ID, true, 7)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCompleteWithUncountedItemsNeedsForce(t *testing.T) {
	repo := newFakeRepo()
	fixture := countFixture(model.StatusInProgress)
	fixture.Items[0].CountedQty = intPtr(100)
	stored := repo.add(fixture)
	svc := newTestService(repo, nil)

	_, err := svc.Complete(context.Background(), stored.ID, false, 7)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError without force, got %v", err)
	}
	if validationErr.Field != "force" {
		t.Errorf("expected error on force field, got %q", validationErr.Field)
	}

	count, err := svc.Complete(context.Background(), stored.ID, true, 7)
	if err != nil {
		t.Fatalf("Complete with force: %v", err)
	}
	if count.Status != model.StatusPendingApproval {
		t.Errorf("expected pending_approval, got %s", count.Status)
	}
	if count.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestCompleteFullyCounted(t *testing.T) {
	repo := newFakeRepo()
	fixture := countFixture(model.StatusInProgress)
	for i := range fixture.Items {
		fixture.Items[i].CountedQty = intPtr(fixture.Items[i].ExpectedQty)
	}
	stored := repo.add(fixture)
	svc := newTestService(repo, nil)

	count, err := svc.Complete(context.Background(), stored.ID, false, 7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if count.Status != model.StatusPendingApproval {
		t.Errorf("expected pending_approval, got %s", count.Status)
	}
}

func TestRejectWipesAllCounts(t *testing.T) {
	repo := newFakeRepo()
	fixture := countFixture(model.StatusPendingApproval)
	now := time.Now()
	for i := range fixture.Items {
		fixture.Items[i].CountedQty = intPtr(5 * i)
		fixture.Items[i].Notes = "noted"
		fixture.Items[i].CountedBy = uintPtr(7)
		fixture.Items[i].CountedAt = &now
	}
	stored := repo.add(fixture)
	svc := newTestService(repo, nil)

	count, err := svc.Reject(context.Background(), stored.ID, 9)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if count.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", count.Status)
	}
	for _, item := range repo.counts[stored.ID].Items {
		if item.CountedQty != nil || item.Notes != "" || item.CountedBy != nil || item.CountedAt != nil {
			t.Errorf("item %d not wiped: %+v", item.ID, item)
		}
	}
}

func TestRejectFailedWriteKeepsRecordedCounts(t *testing.T) {
	repo := newFakeRepo()
	repo.rejectErr = errors.New("connection reset")
	fixture := countFixture(model.StatusPendingApproval)
	for i := range fixture.Items {
		fixture.Items[i].CountedQty = intPtr(fixture.Items[i].ExpectedQty)
	}
	stored := repo.add(fixture)
	svc := newTestService(repo, nil)

	_, err := svc.Reject(context.Background(), stored.ID, 9)
	if err == nil {
		t.Fatal("expected the rejection to fail")
	}

	// A failed rejection must leave the count exactly as it was: still
	// pending_approval with every recorded quantity intact.
	persisted := repo.counts[stored.ID]
	if persisted.Status != model.StatusPendingApproval {
		t.Errorf("expected pending_approval, got %s", persisted.Status)
	}
	for _, item := range persisted.Items {
		if item.CountedQty == nil {
			t.Errorf("item %d lost its counted quantity on a failed rejection", item.ID)
		}
	}
}

func TestRejectFromWrongState(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusInProgress))
	svc := newTestService(repo, nil)

	_, err := svc.Reject(context.Background(), stored.ID, 9)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	for _, status := range []model.CountStatus{model.StatusPending, model.StatusInProgress} {
		repo := newFakeRepo()
		stored := repo.add(countFixture(status))
		svc := newTestService(repo, nil)

		count, err := svc.Cancel(context.Background(), stored.ID, 7)
		if err != nil {
			t.Fatalf("Cancel from %s: %v", status, err)
		}
		if count.Status != model.StatusCancelled {
			t.Errorf("expected cancelled, got %s", count.Status)
		}
	}

	for _, status := range []model.CountStatus{model.StatusPendingApproval, model.StatusCompleted, model.StatusCancelled} {
		repo := newFakeRepo()
		stored := repo.add(countFixture(status))
		svc := newTestService(repo, nil)

		_, err := svc.Cancel(context.Background(), stored.ID, 7)
		var stateErr *InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("Cancel from %s: expected InvalidStateError, got %v", status, err)
		}
	}
}

// approvalFixture is a pending_approval count with three variance items.
func approvalFixture() model.CycleCount {
	fixture := countFixture(model.StatusPendingApproval)
	fixture.Items[0].CountedQty = intPtr(95) // variance -5
	fixture.Items[1].CountedQty = intPtr(53) // variance +3
	fixture.Items[2].CountedQty = intPtr(8)  // variance -2
	return fixture
}

func TestApproveEmptySetCompletesWithoutAdjustments(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(approvalFixture())
	svc := newTestService(repo, nil)

	count, adjustments, err := svc.Approve(context.Background(), stored.ID, nil, 9)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if count.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", count.Status)
	}
	if len(adjustments) != 0 || len(repo.applied) != 0 {
		t.Errorf("expected zero adjustments, got %d returned, %d applied", len(adjustments), len(repo.applied))
	}
	if count.ApprovedBy == nil || *count.ApprovedBy != 9 {
		t.Errorf("approved_by not set: %+v", count)
	}
	if count.ApprovedAt == nil {
		t.Error("approved_at not set")
	}
}

func TestApprovePartialSet(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(approvalFixture())
	svc := newTestService(repo, nil)

	approved := []uint{stored.Items[0].ID, stored.Items[2].ID}
	count, adjustments, err := svc.Approve(context.Background(), stored.ID, approved, 9)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if count.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", count.Status)
	}
	if len(adjustments) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(adjustments))
	}
	if adjustments[0].Delta != -5 || adjustments[1].Delta != -2 {
		t.Errorf("unexpected deltas: %+v", adjustments)
	}

	// The unapproved item keeps its counted quantity on record.
	unapproved := repo.counts[stored.ID].Items[1]
	if unapproved.CountedQty == nil || *unapproved.CountedQty != 53 {
		t.Errorf("unapproved item lost its count: %+v", unapproved)
	}
	for _, adj := range repo.applied {
		if adj.ProductID == unapproved.ProductID {
			t.Errorf("unapproved item moved stock: %+v", adj)
		}
	}
}

func TestApproveIgnoresZeroVarianceItems(t *testing.T) {
	repo := newFakeRepo()
	fixture := approvalFixture()
	fixture.Items[1].CountedQty = intPtr(50) // variance 0
	stored := repo.add(fixture)
	svc := newTestService(repo, nil)

	all := []uint{stored.Items[0].ID, stored.Items[1].ID, stored.Items[2].ID}
	_, adjustments, err := svc.Approve(context.Background(), stored.ID, all, 9)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(adjustments) != 2 {
		t.Errorf("zero-variance item should not produce an adjustment, got %d", len(adjustments))
	}
}

func TestApproveDependencyFailureLeavesCountPending(t *testing.T) {
	repo := newFakeRepo()
	repo.finalizeErr = errors.New("inventory row locked")
	stored := repo.add(approvalFixture())
	svc := newTestService(repo, nil)

	_, _, err := svc.Approve(context.Background(), stored.ID, []uint{stored.Items[0].ID}, 9)
	var dependencyErr *DependencyError
	if !errors.As(err, &dependencyErr) {
		t.Fatalf("expected DependencyError, got %v", err)
	}
	if repo.counts[stored.ID].Status != model.StatusPendingApproval {
		t.Errorf("count left pending_approval expected, got %s", repo.counts[stored.ID].Status)
	}
	if len(repo.applied) != 0 {
		t.Errorf("no adjustment may be applied on failure, got %d", len(repo.applied))
	}
	if repo.counts[stored.ID].ApprovedAt != nil {
		t.Error("approved_at must not be set on failure")
	}
}

func TestApproveFromWrongState(t *testing.T) {
	repo := newFakeRepo()
	stored := repo.add(countFixture(model.StatusInProgress))
	svc := newTestService(repo, nil)

	_, _, err := svc.Approve(context.Background(), stored.ID, nil, 9)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if repo.finalizeCalls != 0 {
		t.Error("finalize must not run from a wrong state")
	}
}

// TestCountLifecycleScenario walks the documented two-product example:
// expected A=100/B=50, counted A=95/B=50, one approved -5 adjustment.
func TestCountLifecycleScenario(t *testing.T) {
	repo := newFakeRepo()
	inv := &fakeInventory{levels: []model.InventoryLevel{
		{ProductID: 1, LocationID: 1, OnHand: 100, Product: product(1, "SKU-A", "111", "2.50")},
		{ProductID: 2, LocationID: 1, OnHand: 50, Product: product(2, "SKU-B", "222", "4.00")},
	}}
	svc := newTestService(repo, inv)
	ctx := context.Background()

	count, err := svc.Schedule(ctx, ScheduleRequest{
		CountType: model.CountTypeCycle, LocationID: uintPtr(1), Selection: SelectAll,
	}, 7)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if _, err := svc.Start(ctx, count.ID, 7); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := svc.Record(ctx, count.Items[0].ID, 95, 7, ""); err != nil {
		t.Fatalf("Record A: %v", err)
	}
	if _, _, err := svc.Record(ctx, count.Items[1].ID, 50, 7, ""); err != nil {
		t.Fatalf("Record B: %v", err)
	}
	if _, err := svc.Complete(ctx, count.ID, false, 7); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	reviewed, err := svc.Get(ctx, count.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	summary := Summarize(reviewed.Items)
	if summary.ItemsWithVariance != 1 {
		t.Errorf("expected 1 variance item, got %d", summary.ItemsWithVariance)
	}
	if summary.AccuracyRate != 50.0 {
		t.Errorf("expected accuracy 50.0, got %v", summary.AccuracyRate)
	}

	approved, adjustments, err := svc.Approve(ctx, count.ID, []uint{count.Items[0].ID}, 9)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", approved.Status)
	}
	if len(adjustments) != 1 {
		t.Fatalf("expected one adjustment, got %d", len(adjustments))
	}
	if adjustments[0].ProductID != 1 || adjustments[0].Delta != -5 {
		t.Errorf("unexpected adjustment: %+v", adjustments[0])
	}
}
