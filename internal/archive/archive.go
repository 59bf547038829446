// Package archive writes JSON snapshots of sync summaries and
// recommendation runs to local disk or S3 for offline analysis. Archiving is
// best-effort; callers log failures and move on.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
)

// Kinds of archived payloads.
const (
	KindSync            = "sync"
	KindRecommendations = "recommendations"
)

// Archiver persists one JSON payload per call.
type Archiver interface {
	Save(ctx context.Context, kind, accountID string, payload interface{}) error
}

// New builds an archiver from config. An empty type disables archiving.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Type {
	case "":
		return noop{}, nil
	case "local":
		path := cfg.LocalPath
		if path == "" {
			path = "./archive"
		}
		return &localArchiver{root: path, now: time.Now}, nil
	case "s3":
		return newS3Archiver(ctx, cfg)
	default:
		return nil, fmt.Errorf("archive: unknown type %q", cfg.Type)
	}
}

type noop struct{}

func (noop) Save(context.Context, string, string, interface{}) error { return nil }

// localArchiver writes payloads under root/kind/YYYY/MM/DD/.
type localArchiver struct {
	root string
	now  func() time.Time
}

func (a *localArchiver) Save(_ context.Context, kind, accountID string, payload interface{}) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", kind, err)
	}
	path := filepath.Join(a.root, objectKey(kind, accountID, a.now()))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

func objectKey(kind, accountID string, now time.Time) string {
	now = now.UTC()
	return filepath.Join(kind, now.Format("2006/01/02"),
		fmt.Sprintf("%s-%s.json", accountID, now.Format("150405")))
}
