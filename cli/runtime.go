package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/thisisjab/docquery/client"
	"github.com/thisisjab/docquery/config"
)

// dryRunEndpoint is used when --dry-run is given without any endpoint.
const dryRunEndpoint = "http://localhost"

// withDatabase builds the client from config, env and flags, runs fn and
// then stops the background workers, flushing pending audit records.
func withDatabase(ctx context.Context, opts *RootOptions, out, errOut io.Writer, fn func(*client.Database) error) error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()

	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
		cfg.TokenFile = ""
	}
	if opts.Transform != "" {
		cfg.Transform.ScriptPath = opts.Transform
	}

	var extra []client.Option
	if opts.DryRun {
		cfg.Audit.Type = ""
		cfg.Transform.ScriptPath = ""
		if cfg.Endpoint == "" {
			cfg.Endpoint = dryRunEndpoint
		}
		extra = append(extra, client.WithHTTPClient(&http.Client{Transport: dryRunTransport{out: out, errOut: errOut}}))
	}

	rt, err := cfg.Parse(ctx, extra...)
	if err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	wait := rt.Start(workerCtx)

	runErr := fn(rt.Database)

	cancel()
	wait()

	if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
		rt.Logger.Warn("cannot close audit storage.", "error", err)
	}

	return runErr
}

// dryRunTransport prints each request instead of sending it and answers with
// an empty object.
type dryRunTransport struct {
	out    io.Writer
	errOut io.Writer
}

func (t dryRunTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
	}

	color.New(color.FgCyan, color.Bold).Fprintf(t.errOut, "%s %s\n", req.Method, req.URL) //nolint:errcheck

	if err := printJSON(t.out, body); err != nil {
		return nil, fmt.Errorf("cannot print request body: %w", err)
	}

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader("{}")),
		Request:    req,
	}, nil
}

// printJSON writes raw indented, keeping the key order it was sent with.
func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := jsonIndent(&buf, raw); err != nil {
		return err
	}

	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
