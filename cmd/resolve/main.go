package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/config"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/controller"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/router"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type options struct {
	backend string
	shape   string
	timeout time.Duration
}

func main() {
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.LevelDebug)
	}
	logger.SetOutput(os.Stderr)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Error("resolve failed: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "resolve <path>",
		Short:         "Resolve a directory path to its view and print the bound scope",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", os.Getenv("BACKEND_URL"), "directory backend base URL")
	cmd.Flags().StringVar(&opts.shape, "shape", config.ShapeObject, "user detail payload shape (object|array)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "how long to wait for the view to load")

	return cmd
}

func resolve(ctx context.Context, out io.Writer, path string, opts options) error {
	if opts.backend == "" {
		return fmt.Errorf("--backend or BACKEND_URL is required")
	}
	if opts.shape != config.ShapeObject && opts.shape != config.ShapeArray {
		return fmt.Errorf("--shape should be %q or %q, got %q", config.ShapeObject, config.ShapeArray, opts.shape)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	m := router.New(router.DefaultRoutes(), "/").Resolve(path)
	if !m.Matched() {
		return encode(out, map[string]string{"redirect": m.Redirect})
	}

	users := controller.UsersResource(resource.NewClient(opts.backend, opts.timeout), opts.shape == config.ShapeArray)
	scope, err := controller.DefaultRegistry(users).Activate(ctx, m.Route, m.Params)
	if err != nil {
		return err
	}

	if err := scope.Wait(ctx); err != nil {
		return fmt.Errorf("view %s did not load within %s: %w", path, opts.timeout, err)
	}

	return encode(out, scope)
}

func encode(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
