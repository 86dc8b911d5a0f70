// Package experiment resolves the active experiment for a hutch and
// normalizes experiment names.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/tangkong/hutch-python/errors"
	"github.com/tangkong/hutch-python/pkg/retry"
)

// defaultScript is the shared lookup script that prints the active
// experiment for a hutch. The %s is the hutch name; the script also
// takes the hutch as its first argument.
const defaultScript = "/reg/g/pcds/engineering_tools/%s/scripts/get_curr_exp"

// Resolver finds the active experiment for a hutch by running the
// shared lookup script. The script lives on NFS and can stall briefly,
// so lookups retry with backoff.
type Resolver struct {
	script string
	cfg    retry.Config
	logger *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithScript overrides the lookup script path template (%s is the hutch)
func WithScript(template string) ResolverOption {
	return func(r *Resolver) {
		r.script = template
	}
}

// WithRetryConfig overrides the lookup retry policy
func WithRetryConfig(cfg retry.Config) ResolverOption {
	return func(r *Resolver) {
		r.cfg = cfg
	}
}

// NewResolver creates an experiment resolver
func NewResolver(logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		script: defaultScript,
		cfg:    errors.DefaultRetryConfig().ToRetryConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the active experiment name for the hutch, e.g.
// "xpplp1216".
func (r *Resolver) Current(ctx context.Context, hutch string) (string, error) {
	if hutch == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: hutch is required", errors.ErrInvalidConfig),
			"experiment", "Current", "hutch validation")
	}

	script := fmt.Sprintf(r.script, hutch)
	name, err := retry.DoWithResult(ctx, r.cfg, func() (string, error) {
		out, err := exec.CommandContext(ctx, script, hutch).Output()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(out), "\n"), nil
	})
	if err != nil {
		return "", errors.WrapTransient(err, "experiment", "Current",
			fmt.Sprintf("look up active experiment for %s", hutch))
	}

	r.logger.Info("Selected active experiment", "experiment", name, "hutch", hutch)
	return name, nil
}

// Name holds the two forms of an experiment name used by the loaders
type Name struct {
	// Full includes the hutch prefix, e.g. "xpplp1216"
	Full string
	// Raw has the hutch prefix stripped, e.g. "lp1216"
	Raw string
}

// Split normalizes an experiment name against its hutch. Users supply
// either the full name or the bare suffix; both forms are recovered.
func Split(hutch, experiment string) Name {
	if strings.Contains(experiment, hutch) {
		return Name{
			Full: experiment,
			Raw:  strings.Replace(experiment, hutch, "", 1),
		}
	}
	return Name{
		Full: hutch + experiment,
		Raw:  experiment,
	}
}
