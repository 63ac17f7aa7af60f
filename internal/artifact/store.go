// Package artifact saves generated program documents to disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	header       = "# AI-Generated Smart Contract"
	fileLayout   = "20060102_150405"
	maxCollision = 100
)

// Store writes one file per saved document under dir.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger.Named("artifacts"), now: time.Now}
}

// Save writes source prefixed by a comment header and returns the file path.
// Files are never overwritten; a second save within the same second gets a
// numeric suffix.
func (s *Store) Save(description, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("refusing to save an empty document")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", s.dir, err)
	}

	now := s.now()
	content := Render(description, source, now)
	base := "contract_" + now.Format(fileLayout)

	for i := 0; i < maxCollision; i++ {
		name := base + ".yaml"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.yaml", base, i)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close artifact %s: %w", path, err)
		}
		s.logger.Info("Contract saved", zap.String("path", path))
		return path, nil
	}
	return "", fmt.Errorf("too many artifacts named %s in %s", base, s.dir)
}

// Render returns the saved file content. The description is folded onto a
// single comment line so the document still parses.
func Render(description, source string, generated time.Time) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	fmt.Fprintf(&b, "# Generated: %s\n", generated.Format(time.RFC3339))
	fmt.Fprintf(&b, "# Description: %s\n\n", strings.Join(strings.Fields(description), " "))
	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
