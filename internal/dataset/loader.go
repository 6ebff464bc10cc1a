package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"olist-dashboard/internal/models"
)

var (
	ErrUnreachable   = errors.New("dataset source unreachable")
	ErrEmptySource   = errors.New("dataset source is empty")
	ErrMissingColumn = errors.New("required column missing")
)

const defaultFetchTimeout = 30 * time.Second

type Loader struct {
	client   *http.Client
	cacheDir string
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithCache enables gob snapshots under dir. Remote snapshots older than ttl
// are ignored; local ones are ignored once the source file is newer.
func WithCache(dir string, ttl time.Duration) Option {
	return func(l *Loader) {
		l.cacheDir = dir
		l.cacheTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client: &http.Client{Timeout: defaultFetchTimeout},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the transaction table from a URL or a local path.
func (l *Loader) Load(ctx context.Context, source string) (*models.Table, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no source given", ErrUnreachable)
	}

	if table, ok := l.loadSnapshot(source); ok {
		l.logger.Info("loaded dataset from cache", "source", source, "records", table.Len())
		return table, nil
	}

	start := time.Now()
	l.logger.Info("loading dataset", "source", source)

	rc, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, err := Decode(rc, formatOf(source))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}

	if err := l.saveSnapshot(source, table); err != nil {
		l.logger.Warn("failed to save dataset cache", "error", err)
	}

	duration := time.Since(start)
	l.logger.Info("dataset loaded",
		"records", table.Len(),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(table.Len())/duration.Seconds()))

	return table, nil
}

func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !isRemote(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrUnreachable, source, resp.Status)
	}
	return resp.Body, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Format selects the decoder for a source.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
)

func formatOf(source string) Format {
	p := source
	if i := strings.IndexAny(p, "?#"); i >= 0 && isRemote(source) {
		p = p[:i]
	}
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}
