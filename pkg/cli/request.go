package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/pulseofpeople/sessionkit/pkg/authclient"
)

type headerFlags http.Header

func (h headerFlags) String() string {
	return fmt.Sprint(http.Header(h))
}

func (h headerFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("header must be 'Name: value', got %q", value)
	}
	http.Header(h).Add(strings.TrimSpace(key), strings.TrimSpace(val))
	return nil
}

func newRequestCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "request",
		Description: "Call an API endpoint with the stored session",
		Flags:       flag.NewFlagSet("request", flag.ContinueOnError),
	}

	method := cmd.Flags.String("method", http.MethodGet, "HTTP method")
	data := cmd.Flags.String("data", "", "JSON request body")
	showMetrics := cmd.Flags.Bool("metrics", false, "Print session metrics to stderr afterwards")
	headers := headerFlags{}
	cmd.Flags.Var(headers, "header", "Extra header 'Name: value' (repeatable)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		endpoint := cmd.Flags.Arg(0)
		if endpoint == "" {
			return fmt.Errorf("endpoint is required")
		}

		opts := &authclient.RequestOptions{
			Method: strings.ToUpper(*method),
			Header: http.Header(headers),
		}
		if *data != "" {
			if !json.Valid([]byte(*data)) {
				return fmt.Errorf("--data must be valid JSON")
			}
			opts.Body = json.RawMessage(*data)
		}

		resp, err := env.Client.Execute(env.Context(), endpoint, opts)
		if *showMetrics {
			defer writeMetrics(env.Err, env.Registry)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(env.Err, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		if len(resp.Body) > 0 {
			fmt.Fprintln(env.Out, strings.TrimRight(string(resp.Body), "\n"))
		}
		if !resp.OK() {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return nil
	}

	return cmd
}
