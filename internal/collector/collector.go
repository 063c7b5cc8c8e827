// Package collector watches a drop-folder and feeds its files into
// the ingestion API. Files that make it in are moved to a processed
// subdirectory; failures stay put and are retried with backoff.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const processedDir = "processed"

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".log":  true,
}

// Collector ships files from an inbox directory to the ingestion
// endpoint.
type Collector struct {
	inboxDir  string
	apiURL    string
	authToken string
	client    *http.Client
	rescan    time.Duration
	backoff   Backoff
}

func New(inboxDir, apiURL, authToken string) *Collector {
	return &Collector{
		inboxDir:  inboxDir,
		apiURL:    strings.TrimRight(apiURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: 30 * time.Second},
		rescan:    60 * time.Second,
		backoff:   NewBackoff(2*time.Second, 5*time.Minute),
	}
}

// Run watches the inbox until the context is cancelled. Filesystem
// events trigger immediate sweeps; a periodic rescan catches files
// dropped while the watcher was down and failed files due for retry.
func (c *Collector) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(c.inboxDir, processedDir), 0o755); err != nil {
		return fmt.Errorf("prepare inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(c.inboxDir); err != nil {
		return fmt.Errorf("watch %s: %w", c.inboxDir, err)
	}

	slog.Info("collector watching inbox", "dir", c.inboxDir)
	c.sweep(ctx)

	ticker := time.NewTicker(c.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				// Give the writer a moment to finish the file.
				time.Sleep(500 * time.Millisecond)
				c.sweep(ctx)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("collector watcher error", "error", err)
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep processes every eligible file currently in the inbox. Local
// file errors are logged and skipped so one bad file never blocks the
// rest; an ingestion-endpoint failure aborts the sweep and arms the
// backoff, since the endpoint being down would fail every remaining
// file too.
func (c *Collector) sweep(ctx context.Context) {
	if !c.backoff.Ready() {
		slog.Debug("collector backing off", "until", c.backoff.NextAttempt())
		return
	}

	entries, err := os.ReadDir(c.inboxDir)
	if err != nil {
		slog.Error("collector: read inbox failed", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !textExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(c.inboxDir, entry.Name())
		if err := c.processFile(ctx, path, entry.Name()); err != nil {
			if errors.Is(err, errIngestFailed) {
				slog.Error("collector: ingestion failed, backing off", "file", entry.Name(), "error", err)
				c.backoff.Failure()
				return
			}
			slog.Error("collector: skipping file", "file", entry.Name(), "error", err)
			continue
		}
		c.backoff.Success()
	}
}

// errIngestFailed marks failures of the ingestion endpoint itself, as
// opposed to local file problems.
var errIngestFailed = errors.New("ingest endpoint failure")

func (c *Collector) processFile(ctx context.Context, path, name string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	text := extractText(name, content)
	if strings.TrimSpace(text) == "" {
		slog.Debug("collector: skipping empty file", "file", name)
		return c.archive(path, name)
	}

	if err := c.ingest(ctx, text); err != nil {
		return fmt.Errorf("%w: %w", errIngestFailed, err)
	}
	return c.archive(path, name)
}

func (c *Collector) archive(path, name string) error {
	dest := filepath.Join(c.inboxDir, processedDir, name)
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("archive file: %w", err)
	}
	slog.Info("collector ingested file", "file", name)
	return nil
}

func (c *Collector) ingest(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/ingest", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ingest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// extractText frames file content with its filename so retrieval can
// tie an answer back to the document it came from.
func extractText(name string, content []byte) string {
	return fmt.Sprintf("File '%s': %s", name, strings.TrimSpace(string(content)))
}
