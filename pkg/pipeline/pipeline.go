// Package pipeline wires the stages of one run: matrix expansion, parallel
// build jobs over disjoint artifact slots, image assembly, tag derivation
// and the final gated publish.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/turbokube/shipyard/pkg/artifact"
	"github.com/turbokube/shipyard/pkg/assemble"
	"github.com/turbokube/shipyard/pkg/buildjob"
	"github.com/turbokube/shipyard/pkg/matrix"
	"github.com/turbokube/shipyard/pkg/publish"
	"github.com/turbokube/shipyard/pkg/pushed"
	"github.com/turbokube/shipyard/pkg/registry"
	schema "github.com/turbokube/shipyard/pkg/schema/v1"
	"github.com/turbokube/shipyard/pkg/tagpolicy"
	"github.com/turbokube/shipyard/pkg/toolchain"
	"github.com/turbokube/shipyard/pkg/trigger"
)

type Options struct {
	Config schema.PipelineConfig
	Event  trigger.Event
	// Toolchain defaults to the exec toolchain from config
	Toolchain toolchain.Toolchain
	Registry  *registry.RegistryConfig
	// ArtifactWait overrides the assembler's bounded wait per artifact
	ArtifactWait time.Duration
}

type Result struct {
	// Jobs is the number of expanded matrix cells
	Jobs int
	// TargetErrors maps failed triples to their job error
	TargetErrors map[string]error
	// Tags derived for this run, present even when publish is gated off
	Tags []string
	// Digest of the assembled manifest list, empty if assembly failed
	Digest string
	// Published is nil when the trigger gate skipped the push
	Published *pushed.Artifact
}

// Run executes one pipeline run. Configuration problems abort before any
// build starts. Job failures are isolated per target unless failFast is
// configured, and any job failure prevents publication.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Event.Validate(); err != nil {
		return nil, fmt.Errorf("trigger metadata: %w", err)
	}
	jobs, err := matrix.Expand(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}

	store := artifact.NewStore()
	tc := opts.Toolchain
	if tc == nil {
		tc = toolchain.NewExec(opts.Config.Toolchain)
	}
	runner := &buildjob.Runner{
		Toolchain: tc,
		Store:     store,
		Attempts:  opts.Config.Toolchain.Attempts,
	}

	assembler, err := assemble.New(opts.Config, opts.Registry, store)
	if err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	if opts.ArtifactWait > 0 {
		assembler.WaitTimeout = opts.ArtifactWait
	}
	publisher, err := publish.New(opts.Config.Image.Repository, opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	// tag derivation has no data dependency on builds and runs alongside
	type tagsResult struct {
		tags *tagpolicy.TagSet
		err  error
	}
	tagsCh := make(chan tagsResult, 1)
	go func() {
		tags, err := tagpolicy.Compute(opts.Event)
		tagsCh <- tagsResult{tags: tags, err: err}
	}()

	// assembly starts immediately and blocks on the store for each
	// required artifact
	type assemblyResult struct {
		assembly *assemble.Assembly
		err      error
	}
	assemblyCh := make(chan assemblyResult, 1)
	go func() {
		a, err := assembler.Assemble(ctx)
		assemblyCh <- assemblyResult{assembly: a, err: err}
	}()

	buildCtx := ctx
	var g *errgroup.Group
	if opts.Config.FailFast {
		g, buildCtx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	if opts.Config.Concurrency > 0 {
		g.SetLimit(opts.Config.Concurrency)
	}

	var mu sync.Mutex
	targetErrors := make(map[string]error)
	for _, job := range jobs {
		g.Go(func() error {
			if _, err := runner.Run(buildCtx, job); err != nil {
				mu.Lock()
				targetErrors[job.Target.Triple] = err
				mu.Unlock()
				if opts.Config.FailFast {
					// cancels the sibling jobs through the group context
					return err
				}
			}
			return nil
		})
	}
	// per-target errors are collected above, the group error is redundant
	_ = g.Wait()
	store.Finish()

	result := &Result{
		Jobs:         len(jobs),
		TargetErrors: targetErrors,
	}

	tr := <-tagsCh
	if tr.err != nil {
		<-assemblyCh
		return result, fmt.Errorf("tag policy: %w", tr.err)
	}
	result.Tags = tr.tags.Tags()

	asm := <-assemblyCh
	if asm.err != nil {
		return result, asm.err
	}
	result.Digest = asm.assembly.Digest.String()

	if len(targetErrors) > 0 {
		// the image may not need every target, but a red matrix cell
		// still blocks publication
		return result, jobFailures(targetErrors)
	}

	published, err := publisher.Publish(ctx, asm.assembly, tr.tags, opts.Event)
	if err != nil {
		return result, err
	}
	result.Published = published
	if published == nil {
		zap.L().Info("run complete without publish",
			zap.String("digest", result.Digest),
			zap.Strings("tags", result.Tags),
		)
	}
	return result, nil
}

func jobFailures(targetErrors map[string]error) error {
	triples := make([]string, 0, len(targetErrors))
	for t := range targetErrors {
		triples = append(triples, t)
	}
	sort.Strings(triples)
	err := fmt.Errorf("%d build job(s) failed", len(triples))
	for _, t := range triples {
		err = fmt.Errorf("%w; %s: %v", err, t, targetErrors[t])
	}
	return err
}
