package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finclose/close-engine/internal/application/dispatcher"
	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/domain/stepgraph"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

type memBatchRepo struct {
	batches map[string]*entity.Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: make(map[string]*entity.Batch)}
}

func (r *memBatchRepo) Create(_ context.Context, batch *entity.Batch) error {
	cp := *batch
	r.batches[batch.ID] = &cp
	return nil
}

func (r *memBatchRepo) GetByID(_ context.Context, id string) (*entity.Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) List(_ context.Context, limit, offset int) ([]*entity.Batch, error) {
	out := make([]*entity.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memBatchRepo) ListByStatus(_ context.Context, status approval.Status) ([]*entity.Batch, error) {
	var out []*entity.Batch
	for _, b := range r.batches {
		if b.ApprovalStatus == status {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBatchRepo) UpdateApproval(_ context.Context, id string, status approval.Status, reopened bool) error {
	b, ok := r.batches[id]
	if !ok {
		return errors.New("batch not found")
	}
	b.ApprovalStatus = status
	b.Reopened = reopened
	b.Revision++
	b.UpdatedAt = time.Now()
	return nil
}

func (r *memBatchRepo) BumpRevision(_ context.Context, id string) error {
	b, ok := r.batches[id]
	if !ok {
		return errors.New("batch not found")
	}
	b.Revision++
	return nil
}

type memRecordRepo struct {
	records []*entity.ApprovalRecord
}

func (r *memRecordRepo) Create(_ context.Context, record *entity.ApprovalRecord) error {
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, record)
	return nil
}

func (r *memRecordRepo) ListByBatch(_ context.Context, batchID string) ([]*entity.ApprovalRecord, error) {
	var out []*entity.ApprovalRecord
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRecordRepo) ListByDateRange(_ context.Context, start, end time.Time) ([]*entity.ApprovalRecord, error) {
	var out []*entity.ApprovalRecord
	for _, rec := range r.records {
		if !rec.Timestamp.Before(start) && !rec.Timestamp.After(end) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memCommentRepo struct {
	comments []*entity.Comment
}

func (r *memCommentRepo) Create(_ context.Context, comment *entity.Comment) error {
	r.comments = append(r.comments, comment)
	return nil
}

func (r *memCommentRepo) ListByBatch(_ context.Context, batchID string) ([]*entity.Comment, error) {
	var out []*entity.Comment
	for _, c := range r.comments {
		if c.BatchID == batchID && c.StepID == "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCommentRepo) ListByStep(_ context.Context, batchID, stepID string) ([]*entity.Comment, error) {
	var out []*entity.Comment
	for _, c := range r.comments {
		if c.BatchID == batchID && c.StepID == stepID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCommentRepo) CountByStep(_ context.Context, batchID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, c := range r.comments {
		if c.BatchID == batchID && c.StepID != "" {
			counts[c.StepID]++
		}
	}
	return counts, nil
}

type memStepRepo struct {
	steps map[string][]*stepgraph.Step
}

func newMemStepRepo() *memStepRepo {
	return &memStepRepo{steps: make(map[string][]*stepgraph.Step)}
}

func (r *memStepRepo) CreateSteps(_ context.Context, batchID string, steps []*stepgraph.Step) error {
	r.steps[batchID] = steps
	return nil
}

func (r *memStepRepo) GetByBatch(_ context.Context, batchID string) ([]*stepgraph.Step, error) {
	return r.steps[batchID], nil
}

func (r *memStepRepo) UpdateStep(_ context.Context, batchID string, step *stepgraph.Step) error {
	return nil
}

func (r *memStepRepo) CreateTask(_ context.Context, batchID, stepID string, task *stepgraph.Task) error {
	return nil
}

func (r *memStepRepo) UpdateTask(_ context.Context, batchID, stepID string, task *stepgraph.Task) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type approvalFixture struct {
	batches  *memBatchRepo
	records  *memRecordRepo
	comments *memCommentRepo
	steps    *memStepRepo
	svc      ApprovalService
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{
		batches:  newMemBatchRepo(),
		records:  &memRecordRepo{},
		comments: &memCommentRepo{},
		steps:    newMemStepRepo(),
	}
	logger := noopLogger{}
	audit := NewAuditService(f.records, 0, logger)
	f.svc = NewApprovalService(
		f.batches, f.comments, f.steps, passthroughTx{},
		audit, dispatcher.NewDispatcher(), NewBatchLocks(), logger,
	)
	return f
}

func (f *approvalFixture) mustCreate(t *testing.T, batchID string) *entity.Batch {
	t.Helper()
	batch, err := f.svc.CreateBatch(context.Background(), batchID, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	return batch
}

func TestCreateBatch(t *testing.T) {
	f := newApprovalFixture()
	batch := f.mustCreate(t, "batch-2024-01")

	if batch.ApprovalStatus != approval.StatusReadyForL1 {
		t.Errorf("ApprovalStatus = %v, want %v", batch.ApprovalStatus, approval.StatusReadyForL1)
	}
	if batch.Revision != 1 {
		t.Errorf("Revision = %d, want 1", batch.Revision)
	}
	if got := len(f.steps.steps["batch-2024-01"]); got != 7 {
		t.Errorf("instantiated %d workflow steps, want 7", got)
	}
}

func TestCreateBatch_Duplicate(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")

	_, err := f.svc.CreateBatch(context.Background(), "batch-2024-01", time.Now(), "")
	if !errors.Is(err, ErrBatchExists) {
		t.Errorf("CreateBatch() error = %v, want ErrBatchExists", err)
	}
}

func TestCreateBatch_EmptyID(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.CreateBatch(context.Background(), "  ", time.Now(), "")
	if !errors.Is(err, approval.ErrValidation) {
		t.Errorf("CreateBatch() error = %v, want ErrValidation", err)
	}
}

func TestApprove_FullChain(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()

	statuses := []approval.Status{approval.StatusL1Approved, approval.StatusL2Approved, approval.StatusApprovedFinal}
	for level := 1; level <= 3; level++ {
		batch, err := f.svc.Approve(ctx, "batch-2024-01", level, "approver")
		if err != nil {
			t.Fatalf("Approve(level %d) error = %v", level, err)
		}
		if batch.ApprovalStatus != statuses[level-1] {
			t.Errorf("after level %d: status = %v, want %v", level, batch.ApprovalStatus, statuses[level-1])
		}
	}

	history, err := f.svc.History(ctx, "batch-2024-01")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d records, want 3", len(history))
	}
	for i, rec := range history {
		if rec.Level != i+1 || rec.Action != entity.ActionApproved {
			t.Errorf("record %d = level %d action %s, want level %d APPROVED", i, rec.Level, rec.Action, i+1)
		}
	}
}

func TestApprove_PrerequisiteNotMet(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")

	for _, level := range []int{2, 3} {
		_, err := f.svc.Approve(context.Background(), "batch-2024-01", level, "approver")
		if !errors.Is(err, approval.ErrPrerequisiteNotMet) {
			t.Errorf("Approve(level %d) error = %v, want ErrPrerequisiteNotMet", level, err)
		}
	}
	if len(f.records.records) != 0 {
		t.Errorf("failed approvals must not append audit records, got %d", len(f.records.records))
	}
}

func TestApprove_AlreadyApproved(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()

	if _, err := f.svc.Approve(ctx, "batch-2024-01", 1, "approver"); err != nil {
		t.Fatalf("Approve(level 1) error = %v", err)
	}
	_, err := f.svc.Approve(ctx, "batch-2024-01", 1, "approver")
	if !errors.Is(err, approval.ErrAlreadyApproved) {
		t.Errorf("re-approve error = %v, want ErrAlreadyApproved", err)
	}
}

func TestReject_ResetsChain(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()

	if _, err := f.svc.Approve(ctx, "batch-2024-01", 1, "l1"); err != nil {
		t.Fatalf("Approve(level 1) error = %v", err)
	}
	batch, err := f.svc.Reject(ctx, "batch-2024-01", 2, "l2", "missing custodian file")
	if err != nil {
		t.Fatalf("Reject(level 2) error = %v", err)
	}
	if batch.ApprovalStatus != approval.StatusL2Rejected {
		t.Errorf("status = %v, want %v", batch.ApprovalStatus, approval.StatusL2Rejected)
	}

	// After a rejection the chain restarts at level 1.
	if _, err := f.svc.Approve(ctx, "batch-2024-01", 2, "l2"); !errors.Is(err, approval.ErrPrerequisiteNotMet) {
		t.Errorf("Approve(level 2) after rejection error = %v, want ErrPrerequisiteNotMet", err)
	}
	batch, err = f.svc.Approve(ctx, "batch-2024-01", 1, "l1")
	if err != nil {
		t.Fatalf("Approve(level 1) after rejection error = %v", err)
	}
	if batch.ApprovalStatus != approval.StatusL1Approved {
		t.Errorf("status = %v, want %v", batch.ApprovalStatus, approval.StatusL1Approved)
	}
}

func TestReject_MissingReason(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")

	_, err := f.svc.Reject(context.Background(), "batch-2024-01", 1, "l1", "   ")
	if !errors.Is(err, approval.ErrValidation) {
		t.Errorf("Reject() error = %v, want ErrValidation", err)
	}
}

func TestRejectFinal(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()

	for level := 1; level <= 3; level++ {
		if _, err := f.svc.Approve(ctx, "batch-2024-01", level, "approver"); err != nil {
			t.Fatalf("Approve(level %d) error = %v", level, err)
		}
	}

	reason := "Holdings data discrepancy found in custodian feed"
	batch, err := f.svc.RejectFinal(ctx, "batch-2024-01", "controller", reason)
	if err != nil {
		t.Fatalf("RejectFinal() error = %v", err)
	}
	if batch.ApprovalStatus != approval.StatusReadyForL1 {
		t.Errorf("status = %v, want %v", batch.ApprovalStatus, approval.StatusReadyForL1)
	}
	if !batch.Reopened {
		t.Error("Reopened = false, want true")
	}

	history, _ := f.svc.History(ctx, "batch-2024-01")
	last := history[len(history)-1]
	if last.Level != approval.LevelPostFinal || last.Action != entity.ActionRejected {
		t.Errorf("last record = level %d action %s, want level 0 REJECTED", last.Level, last.Action)
	}

	// Re-approving through the full chain clears the reopened flag.
	for level := 1; level <= 3; level++ {
		batch, err = f.svc.Approve(ctx, "batch-2024-01", level, "approver")
		if err != nil {
			t.Fatalf("re-Approve(level %d) error = %v", level, err)
		}
	}
	if batch.ApprovalStatus != approval.StatusApprovedFinal {
		t.Errorf("status = %v, want %v", batch.ApprovalStatus, approval.StatusApprovedFinal)
	}
	if batch.Reopened {
		t.Error("Reopened should clear once the chain completes again")
	}
}

func TestRejectFinal_NotFullyApproved(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")

	_, err := f.svc.RejectFinal(context.Background(), "batch-2024-01", "controller",
		"Holdings data discrepancy found in custodian feed")
	if !errors.Is(err, approval.ErrPrerequisiteNotMet) {
		t.Errorf("RejectFinal() error = %v, want ErrPrerequisiteNotMet", err)
	}
}

func TestRejectFinal_ShortReason(t *testing.T) {
	f := newApprovalFixture()
	f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()
	for level := 1; level <= 3; level++ {
		if _, err := f.svc.Approve(ctx, "batch-2024-01", level, "approver"); err != nil {
			t.Fatalf("Approve(level %d) error = %v", level, err)
		}
	}

	_, err := f.svc.RejectFinal(ctx, "batch-2024-01", "controller", "Too short")
	if !errors.Is(err, approval.ErrValidation) {
		t.Errorf("RejectFinal() error = %v, want ErrValidation", err)
	}
}

func TestApprove_BatchNotFound(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.Approve(context.Background(), "missing", 1, "approver")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Approve() error = %v, want ErrBatchNotFound", err)
	}
}

func TestAddComment(t *testing.T) {
	f := newApprovalFixture()
	batch := f.mustCreate(t, "batch-2024-01")
	ctx := context.Background()

	if _, err := f.svc.AddComment(ctx, "batch-2024-01", "analyst", "  "); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("AddComment(blank) error = %v, want ErrEmptyComment", err)
	}

	comment, err := f.svc.AddComment(ctx, "batch-2024-01", "analyst", "please re-check FX rates")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if comment.ID == "" {
		t.Error("comment should get an id")
	}

	comments, err := f.svc.Comments(ctx, "batch-2024-01")
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].Text != "please re-check FX rates" {
		t.Errorf("Comments() = %+v, want the one added comment", comments)
	}

	after, _ := f.svc.GetBatch(ctx, "batch-2024-01")
	if after.Revision <= batch.Revision {
		t.Errorf("comment should bump revision: %d -> %d", batch.Revision, after.Revision)
	}
}

func TestHistory_EmptyForUnknownBatch(t *testing.T) {
	f := newApprovalFixture()
	history, err := f.svc.History(context.Background(), "missing")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History() = %d records, want 0", len(history))
	}
}
