package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/equitraccion/site/pkg/sitectl/output"
)

const DefaultServer = "http://localhost:8080"

type Config struct {
	OutputWriter io.Writer
	InputReader  io.Reader
	// Getenv defaults to os.Getenv
	Getenv func(string) string
}

type runtimeState struct {
	server                string
	token                 string
	outputFormat          string
	timeout               time.Duration
	caFile                string
	insecureSkipTLSVerify bool
	writer                io.Writer
	reader                io.Reader
	getenv                func(string) string
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		InputReader:  os.Stdin,
		Getenv:       os.Getenv,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter, reader: cfg.InputReader, getenv: cfg.Getenv}
	if rt.getenv == nil {
		rt.getenv = os.Getenv
	}

	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Operate the Equitracción site server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.reader == nil {
				rt.reader = os.Stdin
			}
			if rt.server == "" {
				rt.server = rt.getenv("SITECTL_SERVER")
			}
			if rt.server == "" {
				rt.server = DefaultServer
			}
			if rt.token == "" {
				rt.token = rt.getenv("SITECTL_TOKEN")
			}
			if rt.token == "" {
				// same variable the server reads, handy on the host running both
				rt.token = rt.getenv("NEWSLETTER_CRON_TOKEN")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = rt.getenv("SITECTL_OUTPUT")
			}
			_, err := output.ParseFormat(rt.outputFormat)
			return err
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", "", "Site server URL (default "+DefaultServer+", env SITECTL_SERVER)")
	root.PersistentFlags().StringVar(&rt.token, "token", "", "Newsletter cron token (env SITECTL_TOKEN or NEWSLETTER_CRON_TOKEN)")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", 0, "Request timeout (default 10m)")
	root.PersistentFlags().StringVar(&rt.caFile, "ca-file", "", "CA bundle used to verify the server certificate")
	root.PersistentFlags().BoolVar(&rt.insecureSkipTLSVerify, "insecure-skip-tls-verify", false, "Skip server certificate verification")

	if cfg.OutputWriter != nil {
		// cobra's built-in completion command writes here as well
		root.SetOut(cfg.OutputWriter)
	}
	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewNewsletterCommand(),
		NewPasswordCommand(),
		NewTokenCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() output.Format {
	format, err := output.ParseFormat(rt.outputFormat)
	if err != nil {
		return output.FormatTable
	}
	return format
}
