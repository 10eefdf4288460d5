package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/archivist/internal/core"
	"github.com/newthinker/archivist/internal/journal"
	"github.com/newthinker/archivist/internal/lease"
	"github.com/newthinker/archivist/internal/metrics"
	"github.com/newthinker/archivist/internal/notifier"
	"github.com/newthinker/archivist/internal/storage/archive"
	"github.com/newthinker/archivist/internal/tracker"
	"go.uber.org/zap"
)

// Result describes a run that finished without error
type Result struct {
	ObjectID  string         `json:"object_id"`
	Operation core.Operation `json:"operation"`
	Outcome   core.Outcome   `json:"outcome"`
	Status    core.Status    `json:"status,omitempty"`
	Locator   string         `json:"locator,omitempty"`
	RecordID  string         `json:"record_id,omitempty"`
}

// Coordinator runs archive and unarchive transitions for one backend.
//
// A run always mutates storage before it reports the new status. If it stops
// in between, the tracked status lags behind storage, which a retry repairs;
// it never claims a tier the bytes have not reached.
//
// Runs on the same object are not serialized unless a lease.Locker is set.
type Coordinator struct {
	driver  archive.Driver
	tracker tracker.Tracker
	locker  lease.Locker
	journal *journal.Store
	metrics *metrics.Registry
	alerts  *notifier.Registry
	logger  *zap.Logger
}

// New creates a coordinator
func New(driver archive.Driver, tr tracker.Tracker, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		driver:  driver,
		tracker: tr,
		logger:  logger,
	}
}

// SetLocker enables per-object leases around each run
func (c *Coordinator) SetLocker(l lease.Locker) {
	c.locker = l
}

// SetJournal records every run in j
func (c *Coordinator) SetJournal(j *journal.Store) {
	c.journal = j
}

// SetMetrics records run counts and durations in reg
func (c *Coordinator) SetMetrics(reg *metrics.Registry) {
	c.metrics = reg
}

// SetNotifier sends an alert through alerts for every run that needs reconciliation
func (c *Coordinator) SetNotifier(alerts *notifier.Registry) {
	c.alerts = alerts
}

// Backend returns the name of the driver in use
func (c *Coordinator) Backend() string {
	return c.driver.Name()
}

// Archive moves objectID to the archive tier
func (c *Coordinator) Archive(ctx context.Context, objectID string) (Result, error) {
	return c.Execute(ctx, core.OperationRequest{
		ObjectID:     objectID,
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationArchive,
	})
}

// Unarchive moves objectID back to the active tier
func (c *Coordinator) Unarchive(ctx context.Context, objectID string) (Result, error) {
	return c.Execute(ctx, core.OperationRequest{
		ObjectID:     objectID,
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationUnarchive,
	})
}

// Execute runs req end to end.
func (c *Coordinator) Execute(ctx context.Context, req core.OperationRequest) (res Result, err error) {
	op := req.Operation
	res = Result{ObjectID: req.ObjectID, Operation: op}

	if op != core.OperationArchive && op != core.OperationUnarchive {
		return res, c.fail(req, StageValidate,
			core.WrapError(core.ErrUnrecognizedOperation, fmt.Errorf("operation %q", op)))
	}
	if req.ObjectID == "" {
		return res, c.fail(req, StageValidate,
			core.WrapError(core.ErrInvalidRequest, errors.New("object id is required")))
	}

	log := c.logger.With(
		zap.String("object_id", req.ObjectID),
		zap.String("operation", string(op)),
		zap.String("backend", c.driver.Name()),
	)
	start := time.Now()
	defer func() { c.finish(req, &res, err, start, log) }()

	if c.locker != nil {
		l, lerr := c.locker.Acquire(ctx, req.ObjectID)
		if lerr != nil {
			return res, c.fail(req, StageLease, lerr)
		}
		defer func() {
			if rerr := l.Release(context.WithoutCancel(ctx)); rerr != nil {
				log.Warn("failed to release lease", zap.Error(rerr))
			}
		}()
	}

	target := op.Target()

	obj, ferr := c.tracker.GetObject(ctx, req.ObjectID)
	if ferr != nil {
		return res, c.fail(req, StageFetch, core.WrapError(core.ErrStatusFetchFailed, ferr))
	}
	if obj.Status == target {
		log.Info("object already in target state", zap.String("status", string(obj.Status)))
		res.Outcome = core.OutcomeAlreadyInTargetState
		res.Status = obj.Status
		return res, nil
	}

	obj = applyLocationHint(obj, req.LocationHint, log)
	loc, lerr := c.driver.Locate(obj, op)
	if lerr != nil {
		if !errors.Is(lerr, core.ErrLocatorDerivationFailed) {
			lerr = core.WrapError(core.ErrLocatorDerivationFailed, lerr)
		}
		return res, c.fail(req, StageLocate, lerr)
	}
	res.Locator = loc.String()

	// Once the mutation is dispatched the run is not interruptible.
	mctx := context.WithoutCancel(ctx)

	log.Info("moving object",
		zap.String("locator", loc.String()),
		zap.String("from", string(obj.Status)),
		zap.String("to", string(target)),
	)
	if merr := archive.Move(mctx, c.driver, op, loc); merr != nil {
		return res, c.fail(req, StageMutate, core.WrapError(core.ErrDriverFailed, merr))
	}

	if serr := c.tracker.SetStatus(mctx, req.ObjectID, target); serr != nil {
		return res, c.fail(req, StageReport, core.WrapError(core.ErrStatusReportFailed, serr))
	}

	res.Outcome = core.OutcomeTransitioned
	res.Status = target
	return res, nil
}

func (c *Coordinator) fail(req core.OperationRequest, stage Stage, err error) *OpError {
	return &OpError{
		ObjectID:  req.ObjectID,
		Operation: req.Operation,
		Stage:     stage,
		Err:       err,
	}
}

// finish logs, journals and counts a run.
func (c *Coordinator) finish(req core.OperationRequest, res *Result, err error, start time.Time, log *zap.Logger) {
	finished := time.Now()
	rec := journal.Record{
		ObjectID:   req.ObjectID,
		Operation:  req.Operation,
		Backend:    c.driver.Name(),
		Outcome:    res.Outcome,
		StartedAt:  start,
		FinishedAt: finished,
	}
	result := string(res.Outcome)

	var opErr *OpError
	if errors.As(err, &opErr) {
		rec.Stage = string(opErr.Stage)
		rec.ErrorCode = ErrorCode(err)
		rec.Error = err.Error()
		rec.ReconciliationRequired = opErr.ReconciliationRequired()
		result = rec.ErrorCode

		if opErr.ReconciliationRequired() {
			log.Error("storage changed but status was not reported",
				zap.String("stage", string(opErr.Stage)),
				zap.String("locator", res.Locator),
				zap.Bool("reconciliation_required", true),
				zap.Error(err),
			)
		} else {
			log.Warn("operation aborted",
				zap.String("stage", string(opErr.Stage)),
				zap.String("code", rec.ErrorCode),
				zap.Error(err),
			)
		}
	} else {
		log.Info("operation finished",
			zap.String("outcome", string(res.Outcome)),
			zap.Duration("took", finished.Sub(start)),
		)
	}

	if c.journal != nil {
		res.RecordID = c.journal.Add(rec).ID
	}
	if c.metrics != nil {
		c.metrics.RecordOperation(string(req.Operation), c.driver.Name(), result, finished.Sub(start).Seconds())
		if rec.ReconciliationRequired {
			c.metrics.RecordReconciliationRequired(string(req.Operation), c.driver.Name())
		}
	}
	if c.alerts != nil && rec.ReconciliationRequired {
		c.alert(rec, res, log)
	}
}

func (c *Coordinator) alert(rec journal.Record, res *Result, log *zap.Logger) {
	errs := c.alerts.NotifyAll(context.Background(), notifier.Alert{
		ObjectID:   rec.ObjectID,
		Operation:  rec.Operation,
		Backend:    rec.Backend,
		Stage:      rec.Stage,
		Code:       rec.ErrorCode,
		Error:      rec.Error,
		Locator:    res.Locator,
		RecordID:   res.RecordID,
		OccurredAt: rec.FinishedAt,
	})
	for name, err := range errs {
		log.Error("failed to send reconciliation alert",
			zap.String("notifier", name),
			zap.Error(err),
		)
		if c.metrics != nil {
			c.metrics.RecordAlertFailure(name)
		}
	}
}

// applyLocationHint fills in a location the tracker did not provide. Tracker
// data wins when both are present.
func applyLocationHint(obj core.ManagedObject, hint string, log *zap.Logger) core.ManagedObject {
	if hint == "" {
		return obj
	}
	if obj.Location.IsZero() {
		log.Debug("using location hint", zap.String("hint", hint))
		obj.Location = core.Location{FilePath: hint, ObjectKey: hint}
		return obj
	}
	if hint != obj.Location.FilePath && hint != obj.Location.ObjectKey {
		log.Warn("location hint disagrees with tracker, ignoring hint",
			zap.String("hint", hint),
			zap.String("filepath", obj.Location.FilePath),
			zap.String("object_key", obj.Location.ObjectKey),
		)
	}
	return obj
}
