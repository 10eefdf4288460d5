package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/archivist/internal/coordinator"
	"github.com/newthinker/archivist/internal/core"
	"github.com/newthinker/archivist/internal/metrics"
	"go.uber.org/zap"
)

// Config holds router configuration
type Config struct {
	// AcceptedActions lists the request actions that are acted on. Requests
	// carrying any other action are ignored; requests without one are accepted.
	AcceptedActions []string `mapstructure:"accepted_actions"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		AcceptedActions: []string{"manual-submission"},
	}
}

// Dispatcher executes validated requests. *coordinator.Coordinator implements it.
type Dispatcher interface {
	Execute(ctx context.Context, req core.OperationRequest) (coordinator.Result, error)
}

// Router validates inbound requests and hands them to a Dispatcher
type Router struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Registry
}

// New creates a new request router
func New(cfg Config, dispatcher Dispatcher, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetMetrics counts rejected requests in reg
func (r *Router) SetMetrics(reg *metrics.Registry) {
	r.metrics = reg
}

// Route checks req and relays it to the dispatcher. The dispatcher's result
// and error are returned unchanged.
func (r *Router) Route(ctx context.Context, req core.OperationRequest) (coordinator.Result, error) {
	if !r.actionAccepted(req.Action) {
		r.logger.Debug("request ignored",
			zap.String("object_id", req.ObjectID),
			zap.String("action", req.Action),
		)
		return coordinator.Result{
			ObjectID:  req.ObjectID,
			Operation: req.Operation,
			Outcome:   core.OutcomeIgnored,
		}, nil
	}

	if err := validate(req); err != nil {
		r.reject(req, err)
		return coordinator.Result{}, err
	}

	return r.dispatcher.Execute(ctx, req)
}

func validate(req core.OperationRequest) error {
	if req.ResourceKind != core.ResourceKindFile {
		return core.WrapError(core.ErrUnsupportedResourceKind,
			fmt.Errorf("resource kind %q", req.ResourceKind))
	}
	if _, err := core.ParseOperation(string(req.Operation)); err != nil {
		return err
	}
	if req.ObjectID == "" {
		return core.WrapError(core.ErrInvalidRequest, errors.New("object id is required"))
	}
	return nil
}

func (r *Router) reject(req core.OperationRequest, err error) {
	code := coordinator.ErrorCode(err)
	r.logger.Warn("request rejected",
		zap.String("object_id", req.ObjectID),
		zap.String("resource_kind", req.ResourceKind),
		zap.String("operation", string(req.Operation)),
		zap.String("code", code),
	)
	if r.metrics != nil {
		r.metrics.RecordRejected(code)
	}
}

// actionAccepted checks the action whitelist
func (r *Router) actionAccepted(action string) bool {
	if action == "" || len(r.cfg.AcceptedActions) == 0 {
		return true
	}
	for _, a := range r.cfg.AcceptedActions {
		if a == action {
			return true
		}
	}
	return false
}
