// Package buildjob runs one matrix cell: compile for a triple, stage the
// result. Jobs are independent, a failure here never touches siblings.
package buildjob

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/artifact"
	"github.com/turbokube/shipyard/pkg/matrix"
	"github.com/turbokube/shipyard/pkg/toolchain"
)

const defaultAttempts = 3

type Runner struct {
	Toolchain toolchain.Toolchain
	Store     *artifact.Store
	// Attempts bounds tries for transient failures, compile errors get one
	Attempts int
}

// Run produces exactly one artifact for the job's triple or writes nothing.
// A repeat build for the same triple overwrites the earlier slot.
func (r *Runner) Run(ctx context.Context, job matrix.Job) (*artifact.Artifact, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	if err := r.Toolchain.Resolve(job.Target.Triple); err != nil {
		zap.L().Error("toolchain resolve",
			zap.String("triple", job.Target.Triple),
			zap.Error(err),
		)
		return nil, err
	}

	var binary []byte
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		binary, err = r.Toolchain.Build(ctx, job.Target, job.Mode)
		if err == nil {
			break
		}
		var transient *toolchain.TransientError
		if !errors.As(err, &transient) || attempt == attempts {
			zap.L().Error("build job failed",
				zap.String("triple", job.Target.Triple),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return nil, err
		}
		zap.L().Warn("transient build failure, retrying",
			zap.String("triple", job.Target.Triple),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	a := &artifact.Artifact{
		Triple:     job.Target.Triple,
		Mode:       job.Mode,
		Binary:     binary,
		ProducedAt: time.Now(),
	}
	r.Store.Put(a)
	zap.L().Info("artifact staged",
		zap.String("triple", a.Triple),
		zap.Int("bytes", len(a.Binary)),
	)
	return a, nil
}
