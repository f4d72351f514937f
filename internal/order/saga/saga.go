// Package saga runs a sequence of steps and undoes the completed ones, newest first, when a later step fails.
package saga

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Step is one unit of work with an action that undoes it.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

type Orchestrator struct {
	logger *zap.Logger
}

func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Run executes steps in order. When one fails, every step that succeeded is compensated
// in reverse order and the failing step's error is returned. Compensation is not cancelled
// together with ctx.
func (o *Orchestrator) Run(ctx context.Context, sagaID string, steps ...Step) error {
	logger := o.logger.With(zap.String("sagaId", sagaID))
	tracer := otel.Tracer("ordersvc/saga")

	var done []Step
	for _, step := range steps {
		stepCtx, span := tracer.Start(ctx, step.Name())
		span.SetAttributes(attribute.String("saga.id", sagaID))

		err := step.Execute(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			logger.Warn("saga step failed, compensating", zap.String("step", step.Name()), zap.Int("completedSteps", len(done)), zap.Error(err))
			o.rollback(context.WithoutCancel(ctx), logger, done)
			return err
		}
		span.End()

		logger.Debug("saga step completed", zap.String("step", step.Name()))
		done = append(done, step)
	}

	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, logger *zap.Logger, steps []Step) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			logger.Error("saga compensation failed", zap.String("step", step.Name()), zap.Error(err))
			continue
		}
		logger.Info("saga step compensated", zap.String("step", step.Name()))
	}
}
