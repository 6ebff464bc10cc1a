package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"olist-dashboard/internal/models"
)

const cacheVersion = "v1"

type snapshot struct {
	Source  string
	SavedAt time.Time
	Rows    []models.Transaction
}

var cacheNameReplacer = strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "=", "_", "\\", "_")

func (l *Loader) cacheFilename(source string) string {
	return filepath.Join(l.cacheDir, fmt.Sprintf("%s_%s.gob", cacheNameReplacer.Replace(source), cacheVersion))
}

func (l *Loader) saveSnapshot(source string, table *models.Table) error {
	if l.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return err
	}

	filename := l.cacheFilename(source)
	tmp, err := os.CreateTemp(l.cacheDir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	snap := snapshot{Source: source, SavedAt: l.now(), Rows: table.Rows()}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// loadSnapshot returns a cached table when one exists and is still fresh.
func (l *Loader) loadSnapshot(source string) (*models.Table, bool) {
	if l.cacheDir == "" {
		return nil, false
	}

	file, err := os.Open(l.cacheFilename(source))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		l.logger.Warn("discarding unreadable dataset cache", "error", err)
		return nil, false
	}
	if snap.Source != source || !l.fresh(source, snap.SavedAt) {
		return nil, false
	}
	return models.NewTable(snap.Rows), true
}

func (l *Loader) fresh(source string, savedAt time.Time) bool {
	if isRemote(source) {
		return l.cacheTTL > 0 && l.now().Sub(savedAt) < l.cacheTTL
	}
	info, err := os.Stat(source)
	if err != nil {
		return false
	}
	return info.ModTime().Before(savedAt)
}
