package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
)

const defaultMaxBody = 1 << 20

type HTTPProber struct {
	Client         *http.Client
	Logger         *zap.Logger
	DefaultTimeout time.Duration
	MaxBodyBytes   int64
	// DNSDiagnosis appends a DNS classification to failed probes.
	DNSDiagnosis bool

	now func() time.Time
}

func NewHTTPProber(logger *zap.Logger, defaultTimeout time.Duration, maxBody int64) *HTTPProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = domain.DefaultTimeoutMS * time.Millisecond
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTPProber{
		// the per-probe context carries the deadline
		Client:         &http.Client{},
		Logger:         logger,
		DefaultTimeout: defaultTimeout,
		MaxBodyBytes:   maxBody,
		now:            time.Now,
	}
}

// Probe issues one request to t. Any HTTP response counts as success and is
// reported with status 200; the real code is kept in ObservedStatus.
func (p *HTTPProber) Probe(ctx context.Context, t domain.Target) domain.ProbeResult {
	start := p.now()
	res := domain.ProbeResult{
		TargetID:  t.ID,
		Name:      t.Name,
		URL:       t.URL,
		Method:    domain.ParseMethod(string(t.Method)),
		StartedAt: start,
	}

	cctx, cancel := context.WithTimeout(ctx, t.ProbeTimeout(p.DefaultTimeout))
	defer cancel()

	body, observed, err := p.do(cctx, res.Method, t)
	res.EndedAt = p.now()
	res.ElapsedMS = res.EndedAt.Sub(start).Milliseconds()
	if err != nil {
		res.StatusCode = 0
		res.ErrorMessage = err.Error()
		if p.DNSDiagnosis {
			dns := CheckDNS(ctx, HostOf(t.URL))
			res.ErrorMessage = strings.TrimSpace(fmt.Sprintf("%s dns=%s", res.ErrorMessage, dns.Class))
			p.Logger.Debug("dns_check",
				zap.String("domain", dns.Domain),
				zap.String("class", dns.Class),
				zap.Strings("nameservers", dns.Nameservers),
				zap.String("cname", dns.CNAME),
				zap.String("resolver_error", dns.ResolverError),
			)
		}
		p.Logger.Debug("probe_failed",
			zap.String("target", t.Name),
			zap.String("url", t.URL),
			zap.Int64("elapsed_ms", res.ElapsedMS),
			zap.String("error", res.ErrorMessage),
		)
		return res
	}

	res.Success = true
	res.StatusCode = http.StatusOK
	res.ObservedStatus = observed
	res.Response = body
	res.ResponseJSON = structured(body)
	p.Logger.Debug("probe_ok",
		zap.String("target", t.Name),
		zap.String("url", t.URL),
		zap.Int("observed_status", observed),
		zap.Int64("elapsed_ms", res.ElapsedMS),
	)
	return res
}

func (p *HTTPProber) do(ctx context.Context, m domain.Method, t domain.Target) (string, int, error) {
	var (
		req *http.Request
		err error
	)
	if m == domain.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.URL, strings.NewReader(t.RequestBody))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	}
	if err != nil {
		return "", 0, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, p.MaxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(b), resp.StatusCode, nil
}

// structured returns body as JSON, wrapping non-JSON text as
// {"raw_response": text}. Empty bodies yield nil.
func structured(body string) json.RawMessage {
	if body == "" {
		return nil
	}
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	b, _ := json.Marshal(map[string]string{"raw_response": body})
	return b
}
