package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/prometheus/common/log"

	"github.com/BTBurke/oscmon/pkg/sample"
)

// StatusPath is appended to the poller base URL.
const StatusPath = "/status"

// DefaultRetries is how many times a failed poll is retried before the tick is abandoned.
const DefaultRetries = 3

// maxBody bounds the status document read from the module.
const maxBody = 1 << 20

// Poller reads the module's status document on every tick.  Transport errors and non-2xx
// responses are retried with exponential backoff; a malformed document is not retried.  When
// a tick's retries are exhausted the error is logged and handed to OnError, and polling
// continues on the next tick.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	retries  uint64
	backoff  func() backoff.BackOff
	onError  ErrorFunc
	log      log.Logger
}

// PollerOption configures a poller
type PollerOption func(p *Poller)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) PollerOption {
	return func(p *Poller) {
		p.client = c
	}
}

// WithRetries sets the retry budget per tick.
func WithRetries(n uint64) PollerOption {
	return func(p *Poller) {
		p.retries = n
	}
}

// WithBackOff replaces the exponential policy, mostly so tests do not sleep.
func WithBackOff(f func() backoff.BackOff) PollerOption {
	return func(p *Poller) {
		p.backoff = f
	}
}

// WithErrorFunc receives every poll that failed after retries.
func WithErrorFunc(f ErrorFunc) PollerOption {
	return func(p *Poller) {
		p.onError = f
	}
}

// WithPollerLogger replaces the default component logger.
func WithPollerLogger(l log.Logger) PollerOption {
	return func(p *Poller) {
		p.log = l
	}
}

// NewPoller polls base + StatusPath every interval.
func NewPoller(base string, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		url:      strings.TrimRight(base, "/") + StatusPath,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		retries:  DefaultRetries,
		backoff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:      log.Base().With("component", "poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// URL is the full status endpoint.
func (p *Poller) URL() string {
	return p.url
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context, out chan<- sample.Sample) error {
	p.log.Infof("polling %s every %s", p.url, p.interval)
	return Tick(ctx, p.interval, func(_ int, _ time.Time) error {
		s, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warnf("poll failed: %v", err)
			if p.onError != nil {
				p.onError(err)
			}
			return nil
		}
		emit(ctx, out, s)
		return nil
	})
}

// Poll fetches one sample, retrying transient failures.
func (p *Poller) Poll(ctx context.Context) (sample.Sample, error) {
	var s sample.Sample
	fetch := func() error {
		var err error
		s, err = p.fetch(ctx)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.backoff(), p.retries), ctx)
	if err := backoff.Retry(fetch, b); err != nil {
		return sample.Sample{}, err
	}
	return s, nil
}

func (p *Poller) fetch(ctx context.Context) (sample.Sample, error) {
	req, err := http.NewRequest(http.MethodGet, p.url, nil)
	if err != nil {
		return sample.Sample{}, backoff.Permanent(err)
	}
	resp, err := p.client.Do(req.WithContext(ctx))
	if err != nil {
		return sample.Sample{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return sample.Sample{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sample.Sample{}, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	s, err := sample.Decode(body)
	if err != nil {
		return sample.Sample{}, backoff.Permanent(fmt.Errorf("decoding status: %v", err))
	}
	return s, nil
}
