package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/watch"
)

type config struct {
	url     string
	timeout time.Duration
}

func (c *config) validate() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	if c.timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{}

	fs := pflag.NewFlagSet("jobwatch", pflag.ContinueOnError)
	fs.StringVar(&cfg.url, "url", "http://localhost:8000/client_status", "Relay status stream URL")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "Give up after this long (0 waits forever)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}

// run prints every status update and fails if the job ends in error.
func run(ctx context.Context, cfg *config, out io.Writer) error {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	final, err := watch.New(nil).Watch(ctx, cfg.url, func(rep domain.Report) {
		fmt.Fprintf(out, "Status updated: %s\n", rep.Result)
	})
	if err != nil {
		return err
	}

	if final.Result == domain.Error {
		return fmt.Errorf("job failed: %s", final.Message)
	}
	return nil
}
