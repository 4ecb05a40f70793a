package ingest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-tracker/internal/resilience"
)

// Opener opens feeds from local paths or http(s) URLs.
type Opener struct {
	client *http.Client
	retry  resilience.RetryConfig
}

// NewOpener creates an Opener that retries transient download failures.
func NewOpener() *Opener {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("ingest", "download")
	return &Opener{
		client: &http.Client{Timeout: 2 * time.Minute},
		retry:  retry,
	}
}

// Open returns the feed body and its format, taken from the path or URL
// extension. The caller closes the body.
func (o *Opener) Open(ctx context.Context, src string) (io.ReadCloser, Format, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		format, err := FormatFor(src)
		if err != nil {
			return nil, "", err
		}
		f, err := os.Open(src)
		if err != nil {
			return nil, "", eris.Wrapf(err, "ingest: open %s", src)
		}
		return f, format, nil
	}

	format, err := FormatFor(u.Path)
	if err != nil {
		return nil, "", err
	}
	body, err := resilience.DoVal(ctx, o.retry, func(ctx context.Context) (io.ReadCloser, error) {
		return o.download(ctx, src)
	})
	if err != nil {
		return nil, "", err
	}
	return body, format, nil
}

func (o *Opener) download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create request")
	}
	req.Header.Set("User-Agent", "sales-tracker/1.0")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: download %s", redact(rawURL))
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	_ = resp.Body.Close()

	err = eris.Errorf("ingest: download %s: status %d", redact(rawURL), resp.StatusCode)
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(err, resp.StatusCode)
	}
	return nil, err
}

// redact drops the query string, which may carry an access token.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
