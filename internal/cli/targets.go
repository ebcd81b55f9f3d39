package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/healthbatch/internal/domain"
)

type apiClient struct {
	base string
	key  string
	http *http.Client
}

func (c apiClient) do(method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.base, "/")+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return fmt.Errorf("API returned %s: %s", resp.Status, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newTargetsCmd() *cobra.Command {
	c := apiClient{http: &http.Client{Timeout: 30 * time.Second}}
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage targets through a running API",
	}
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&c.base, "api", base, "API base URL")
	cmd.PersistentFlags().StringVar(&c.key, "key", os.Getenv("ADMIN_API_KEY"), "API key sent as X-API-Key")

	cmd.AddCommand(newTargetsAddCmd(&c), newTargetsListCmd(&c))
	return cmd
}

func newTargetsAddCmd(c *apiClient) *cobra.Command {
	var p struct {
		Name        string `json:"name,omitempty"`
		URL         string `json:"url"`
		Method      string `json:"method,omitempty"`
		TimeoutMS   int64  `json:"timeout_ms,omitempty"`
		RequestBody string `json:"request_body,omitempty"`
		Environment string `json:"environment,omitempty"`
		Description string `json:"description,omitempty"`
	}
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Add a target; prompts for the URL when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Enter a site URL to monitor (e.g., https://example.com): ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				raw = line
			}
			raw = strings.TrimSpace(raw)
			if raw != "" && !strings.Contains(raw, "://") {
				raw = "https://" + raw
			}
			if _, err := url.ParseRequestURI(raw); err != nil {
				return fmt.Errorf("invalid URL %q", raw)
			}
			p.URL = raw

			var out struct {
				Target domain.Target       `json:"target"`
				Result *domain.ProbeResult `json:"result"`
			}
			if err := c.do(http.MethodPost, "/api/targets", p, &out); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Added target #%d %s (%s)\n", out.Target.ID, out.Target.Name, out.Target.URL)
			if r := out.Result; r != nil {
				if r.Success {
					fmt.Fprintf(w, "First probe: OK status=%d in %dms\n", r.ObservedStatus, r.ElapsedMS)
				} else {
					fmt.Fprintf(w, "First probe: FAILED %s\n", r.ErrorMessage)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "display name (defaults to the URL host)")
	f.StringVar(&p.Method, "method", "GET", "GET or POST")
	f.Int64Var(&p.TimeoutMS, "timeout-ms", 0, "per-target timeout in milliseconds")
	f.StringVar(&p.RequestBody, "body", "", "JSON body sent with POST")
	f.StringVar(&p.Environment, "env", "", "environment (empty means every environment)")
	f.StringVar(&p.Description, "description", "", "free-form description")
	return cmd
}

func newTargetsListCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ts []domain.Target
			if err := c.do(http.MethodGet, "/api/targets", nil, &ts); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMETHOD\tENABLED\tENV\tURL")
			for _, t := range ts {
				env := t.Environment
				if env == "" {
					env = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n", t.ID, t.Name, t.Method, t.Enabled, env, t.URL)
			}
			return tw.Flush()
		},
	}
}
