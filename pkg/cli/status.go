package cli

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulseofpeople/sessionkit/pkg/session"
)

func newStatusCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "status",
		Description: "Check the auth service and the stored session",
		Flags:       flag.NewFlagSet("status", flag.ContinueOnError),
	}

	showMetrics := cmd.Flags.Bool("metrics", false, "Print session metrics to stderr afterwards")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *showMetrics {
			defer writeMetrics(env.Err, env.Registry)
		}

		ctx := env.Context()
		fmt.Fprintf(env.Out, "Auth service: %s\n", env.Client.BaseURL())
		fmt.Fprintf(env.Out, "Token store:  %s\n", storeName(env.Config.Storage.Type))

		healthErr := env.Client.Health(ctx)
		if healthErr != nil {
			fmt.Fprintf(env.Out, "Health:       unreachable (%v)\n", healthErr)
			return fmt.Errorf("auth service health check failed: %w", healthErr)
		}
		fmt.Fprintln(env.Out, "Health:       ok")

		env.Session.Initialize(ctx)
		snap := env.Session.Snapshot()
		if snap.State == session.StateAuthenticated {
			fmt.Fprintf(env.Out, "Session:      %s as %s (%s)\n", snap.State, snap.User.Email, snap.User.Role)
		} else {
			fmt.Fprintf(env.Out, "Session:      %s\n", snap.State)
		}
		return nil
	}

	return cmd
}

func storeName(kind string) string {
	if kind == "" {
		return "file"
	}
	return kind
}

// writeMetrics prints every sample in the registry as name{labels} value
func writeMetrics(w io.Writer, registry *prometheus.Registry) {
	if registry == nil {
		fmt.Fprintln(w, "metrics disabled")
		return
	}
	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "failed to gather metrics: %v\n", err)
		return
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%g", name,
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
