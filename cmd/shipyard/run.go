package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/pipeline"
	"github.com/turbokube/shipyard/pkg/pushed"
	"github.com/turbokube/shipyard/pkg/registry"
	"github.com/turbokube/shipyard/pkg/schema"
	schemav1 "github.com/turbokube/shipyard/pkg/schema/v1"
	"github.com/turbokube/shipyard/pkg/trigger"
)

// timing for the run trace
var tStart = time.Now()

// run command flag variables
var (
	configPath   string
	release      bool
	failFast     bool
	fileOutput   string
	artifactWait time.Duration
)

// newRunCmd defines the run subcommand and its flags
func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [context path]",
		Short: "Build the target matrix and assemble/publish the multi-arch image",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New("too many args: at most one context path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error { return runPipeline(args) },
	}
	c.Flags().StringVarP(&configPath, "c", "c", "shipyard.yaml", "config file path relative to context dir, or - for stdin")
	c.Flags().BoolVar(&release, "release", false, "build the release profile (overrides config)")
	c.Flags().BoolVar(&failFast, "fail-fast", false, "cancel remaining build jobs on first failure (overrides config)")
	c.Flags().StringVar(&fileOutput, "file-output", "", "write a JSON description of the published image")
	c.Flags().DurationVar(&artifactWait, "artifact-wait", 0, "bounded wait per staged artifact during assembly")
	return c
}

func runPipeline(args []string) error {
	if version {
		fmt.Fprintf(os.Stderr, "%s\n", BUILD)
		return nil
	}

	logger := newLogger()
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	var workdir string
	if len(args) == 1 {
		workdir = args[0]
	}
	if workdir != "" && workdir != "." && workdir != "./" {
		abs, err := filepath.Abs(workdir)
		if err != nil {
			zap.L().Fatal("absolute path", zap.String("arg", workdir), zap.Error(err))
		}
		stat, err := os.Stat(abs)
		if err != nil {
			zap.L().Fatal("context path not found", zap.String("arg", workdir), zap.String("abs", abs), zap.Error(err))
		}
		if !stat.IsDir() {
			zap.L().Fatal("context path not a directory", zap.String("arg", workdir), zap.String("abs", abs))
		}
		if err := os.Chdir(abs); err != nil {
			zap.L().Fatal("chdir", zap.String("abs", abs), zap.Error(err))
		}
	}

	var config schemav1.PipelineConfig
	config, err := schema.ParseConfig(configPath)
	if err != nil {
		zap.L().Debug("config parse failed, trying template", zap.Error(err), zap.String("path", configPath))
		repository := schema.RepositoryFromEnv()
		if repository == "" {
			return fmt.Errorf("run requires config or IMAGE env: %w", err)
		}
		zap.L().Info("config from template", zap.String("repository", repository))
		config = schema.Template(repository)
	}
	if config.Image.Repository == "" {
		if repository := schema.RepositoryFromEnv(); repository != "" {
			config.Image.Repository = repository
		} else {
			zap.L().Fatal("config image repository must be set, or env IMAGE")
		}
	}

	if release {
		config.Release = true
	}
	if failFast {
		config.FailFast = true
	}

	aboutConfig := make([]zap.Field, 0)
	if config.Status.Template {
		aboutConfig = append(aboutConfig, zap.Bool("templated", config.Status.Template))
	} else {
		aboutConfig = append(aboutConfig, zap.String("md5", config.Status.Md5), zap.String("sha256", config.Status.Sha256))
	}
	aboutConfig = append(aboutConfig,
		zap.Int("targets", len(config.Targets)),
		zap.Bool("release", config.Release),
	)
	if wd, err := os.Getwd(); err == nil {
		aboutConfig = append(aboutConfig, zap.String("workdir", wd))
	}
	zap.L().Info("config", aboutConfig...)

	event, err := trigger.FromEnv()
	if err != nil {
		return fmt.Errorf("trigger metadata: %w", err)
	}

	registryConfig, err := registry.New(config)
	if err != nil {
		zap.L().Fatal("registry config", zap.Error(err))
	}

	result, err := pipeline.Run(context.Background(), pipeline.Options{
		Config:       config,
		Event:        event,
		Registry:     registryConfig,
		ArtifactWait: artifactWait,
	})
	if err != nil {
		zap.L().Error("run failed",
			zap.Duration("elapsed", time.Since(tStart)),
			zap.Error(err),
		)
		return err
	}

	if result.Published != nil {
		result.Published.Print()
	}
	writeRunOutput(result)
	zap.L().Info("run complete", zap.Duration("elapsed", time.Since(tStart)))
	return nil
}

func writeRunOutput(result *pipeline.Result) {
	if fileOutput == "" {
		return
	}
	f, err := os.OpenFile(fileOutput, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		wd, _ := os.Getwd()
		zap.L().Fatal("file-output open", zap.String("cwd", wd), zap.String("path", fileOutput), zap.Error(err))
	}
	defer f.Close()
	tEnd := time.Now()
	output := &pushed.RunOutput{
		Published: result.Published,
		Trace:     &pushed.BuildTrace{Start: &tStart, End: &tEnd, Env: pushed.BuildTraceEnv(os.Environ())},
	}
	if writeErr := output.WriteJSON(f); writeErr != nil {
		wd, _ := os.Getwd()
		zap.L().Fatal("file-output write", zap.String("cwd", wd), zap.String("path", fileOutput), zap.Error(writeErr))
	}
}
