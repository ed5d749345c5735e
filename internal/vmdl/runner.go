package vmdl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vacme/internal/vmdl/models"
)

var (
	ErrUnknownDisease = errors.New("unknown disease")
	ErrRunInProgress  = errors.New("batch run already in progress")
)

// Runner schedules the per-disease batch cycles. Each disease runs on its own
// cron schedule; a guard keeps at most one run per disease in flight so a
// manual trigger cannot overlap a scheduled one. Runs for different diseases
// are independent and may overlap freely.
type Runner struct {
	cron *cron.Cron
	log  *zap.Logger

	mu       sync.Mutex
	services map[models.Disease]Service
	running  map[models.Disease]bool
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		cron:     cron.New(),
		log:      log,
		services: map[models.Disease]Service{},
		running:  map[models.Disease]bool{},
	}
}

// Register adds a disease service with its cron schedule.
func (r *Runner) Register(svc Service, spec string) error {
	disease := svc.Disease()

	r.mu.Lock()
	r.services[disease] = svc
	r.mu.Unlock()

	_, err := r.cron.AddFunc(spec, func() {
		if _, err := r.Trigger(context.Background(), disease); err != nil && !errors.Is(err, ErrRunInProgress) {
			r.log.Error("scheduled registry batch failed",
				zap.String("disease", string(disease)),
				zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register %s schedule: %w", disease, err)
	}
	return nil
}

// Trigger runs one batch cycle for the disease, returning how many records
// were delivered.
func (r *Runner) Trigger(ctx context.Context, disease models.Disease) (int, error) {
	r.mu.Lock()
	svc, ok := r.services[disease]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w: %q", ErrUnknownDisease, disease)
	}
	if r.running[disease] {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrRunInProgress, disease)
	}
	r.running[disease] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running[disease] = false
		r.mu.Unlock()
	}()

	return svc.RunBatch(ctx)
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops the scheduler and waits for in-flight runs started by it.
func (r *Runner) Stop(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
