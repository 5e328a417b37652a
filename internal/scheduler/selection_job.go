package scheduler

import (
	"context"
	"errors"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const SelectionJobName = "run_due_selections"

// SelectionRunner runs selection for every game whose registration has
// closed. *roster.Service satisfies it.
type SelectionRunner interface {
	RunDueSelections(ctx context.Context) (int, error)
}

// RegisterSelectionJob runs due selections on cronExpr. ctx supplies the
// logger and is passed to every run.
func RegisterSelectionJob(ctx context.Context, svc *Service, runner SelectionRunner, cronExpr string) (gocron.Job, error) {
	if runner == nil {
		return nil, errors.New("selection job requires a runner")
	}
	logger := log.Ctx(ctx).With().Str("job_name", SelectionJobName).Logger()
	jobCtx := logger.WithContext(ctx)

	return svc.AddJob(SelectionJobName, cronExpr, func() {
		ran, err := runner.RunDueSelections(jobCtx)
		if err != nil {
			logger.Error().Err(err).Int("runs", ran).Msg("Scheduled selection finished with errors")
			return
		}
		if ran > 0 {
			logger.Info().Int("runs", ran).Msg("Scheduled selection completed")
		}
	})
}
