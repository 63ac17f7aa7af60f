package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileSink appends JSON lines to a file opened with O_APPEND. Each record is
// encoded into one buffer and written with a single write call under zap's
// lock, so concurrent records never interleave.
type FileSink struct {
	path   string
	file   *os.File
	logger *zap.Logger
}

var _ Sink = (*FileSink)(nil)

func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(f)), zapcore.InfoLevel)

	return &FileSink{path: path, file: f, logger: zap.New(core)}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(_ context.Context, rec Record) error {
	if ce := s.logger.Check(zapcore.InfoLevel, string(rec.Stage)); ce != nil {
		ce.Write(zap.Inline(rec))
		return nil
	}
	return errors.New("audit file sink is disabled")
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	_ = s.logger.Sync()
	return s.file.Close()
}

// ReadFile loads every record of a JSON-lines audit log. Lines that do not
// decode are skipped.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read audit log %s: %w", path, err)
	}
	return records, nil
}
