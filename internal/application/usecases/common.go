// Package usecases holds the actions behind every API route. Each action
// runs through action.Run as Sanitize, Validate, Authorize, Execute.
package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/auth"
	"goal-tracker/internal/authz"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/metrics"
	"goal-tracker/internal/presentation/http/validation"
)

// Observer logs every action outcome and counts it.
type Observer struct {
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewObserver(log *zap.Logger, m *metrics.Collector) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{log: log, metrics: m}
}

func (o *Observer) ObserveAction(ctx context.Context, name string, code action.ErrorCode) {
	outcome := "ok"
	if code != "" {
		outcome = string(code)
	}
	if o.metrics != nil {
		o.metrics.ActionsTotal.WithLabelValues(name, outcome).Inc()
	}

	fields := []zap.Field{
		logger.Event(logger.EventAction),
		zap.String("action", name),
		zap.String("outcome", outcome),
	}
	if s, ok := auth.SessionFromContext(ctx); ok {
		fields = append(fields, logger.Actor(s.UserID))
	}
	l := logger.FromContext(ctx, o.log)
	switch code {
	case "", action.CodeValidationError, action.CodeNotFound:
		l.Info("action "+name, fields...)
	case action.CodeUnauthorized:
		l.Warn("action "+name, fields...)
	default:
		l.Error("action "+name, fields...)
	}
}

// requireUser returns the fully signed-in caller.
func requireUser(ctx context.Context) (string, *action.Error) {
	uid, ok := auth.UserID(ctx)
	if !ok {
		return "", action.Unauthorized("You must be signed in")
	}
	return uid, nil
}

// callerID is for Execute stages, which only run after requireUser passed.
func callerID(ctx context.Context) string {
	uid, _ := auth.UserID(ctx)
	return uid
}

// DeletedResource is the payload of every delete action.
type DeletedResource struct {
	ID string `json:"id"`
}

// clearable turns a present-but-empty patch value into a request to clear
// the field.
func clearable(p *string) (value *string, clear bool) {
	if p == nil {
		return nil, false
	}
	if *p == "" {
		return nil, true
	}
	return p, false
}

// shape checks the validate tags on action inputs.
var shape = validation.New()

// ownedBy runs the signed-in check and then the ownership gate.
func ownedBy(ctx context.Context, lookup repositories.OwnerLookup, kind, id string) *action.Error {
	uid, e := requireUser(ctx)
	if e != nil {
		return e
	}
	return authz.CheckOwnership(ctx, lookup, kind, id, uid)
}

// vanished reports a resource deleted between the ownership check and the
// write as NOT_FOUND instead of a database failure.
func vanished(err error, kind string) error {
	if errors.Is(err, domainerrors.ErrNotFound) {
		return action.NotFound(kind + " not found")
	}
	return err
}

func now() time.Time { return time.Now().UTC() }
