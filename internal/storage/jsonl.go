package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"yieldswap/internal/model"
)

// JsonlStorage appends log records, typed events, decode errors or
// window metrics to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string { return s.path }

// Reset truncates the output so a fresh run does not append to an old one.
func (s *JsonlStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureDir(s.path); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate output file: %w", err)
	}
	return nil
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	values := make([]interface{}, len(logs))
	for i := range logs {
		values[i] = logs[i]
	}
	return s.appendLines(values, "log record")
}

// PutWindowMetrics appends aggregated pair windows as JSON lines.
func (s *JsonlStorage) PutWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	values := make([]interface{}, len(metrics))
	for i := range metrics {
		values[i] = metrics[i]
	}
	return s.appendLines(values, "window metrics")
}

// PutTypedEvents appends decoded events as JSON lines.
func (s *JsonlStorage) PutTypedEvents(events []model.TypedEvent) error {
	values := make([]interface{}, len(events))
	for i := range events {
		values[i] = events[i]
	}
	return s.appendLines(values, "typed event")
}

// PutDecodeErrors appends rejected input lines as JSON lines.
func (s *JsonlStorage) PutDecodeErrors(errs []model.DecodeError) error {
	values := make([]interface{}, len(errs))
	for i := range errs {
		values[i] = errs[i]
	}
	return s.appendLines(values, "decode error")
}

func (s *JsonlStorage) appendLines(values []interface{}, kind string) error {
	if len(values) == 0 {
		return nil
	}
	if err := ensureDir(s.path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, value := range values {
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("write %s: %w", kind, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
