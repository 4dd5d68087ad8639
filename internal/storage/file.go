package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

var csvHeader = []string{
	"id", "title", "start_date", "end_date", "venue", "city", "address", "url", "image_url", "source", "fetched_at",
}

// FileStorage writes events to a single output file. The jsonl and csv
// formats stream on every Save; the json format keeps the accumulated run in
// memory and rewrites the full array so the file is always valid JSON.
type FileStorage struct {
	cfg    config.StorageConfig
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	events []types.NormalizedEvent
}

func NewFileStorage(cfg config.StorageConfig, logger *slog.Logger) (*FileStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputPath == "" {
		return nil, &types.StorageError{Backend: cfg.Type, Err: fmt.Errorf("output path not set")}
	}
	if dir := filepath.Dir(cfg.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StorageError{Backend: cfg.Type, Err: err}
		}
	}

	s := &FileStorage{
		cfg:    cfg,
		logger: logger.With("component", "storage", "backend", cfg.Type),
	}

	if cfg.Type == "jsonl" || cfg.Type == "csv" {
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, &types.StorageError{Backend: cfg.Type, Err: err}
		}
		s.file = file

		if cfg.Type == "csv" {
			s.csv = csv.NewWriter(file)
			if info, err := file.Stat(); err == nil && info.Size() == 0 {
				if err := s.csv.Write(csvHeader); err != nil {
					file.Close()
					return nil, &types.StorageError{Backend: cfg.Type, Err: err}
				}
				s.csv.Flush()
			}
		}
	}

	return s, nil
}

func (s *FileStorage) Save(ctx context.Context, events []types.NormalizedEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch s.cfg.Type {
	case "json":
		s.events = append(s.events, events...)
		err = s.rewriteJSON()
	case "jsonl":
		err = s.appendJSONL(events)
	case "csv":
		err = s.appendCSV(events)
	}
	if err != nil {
		return &types.StorageError{Backend: s.cfg.Type, Err: err}
	}

	s.logger.Debug("saved events", "count", len(events), "path", s.cfg.OutputPath)
	return nil
}

func (s *FileStorage) rewriteJSON() error {
	data, err := json.MarshalIndent(s.events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.OutputPath, append(data, '\n'), 0o644)
}

func (s *FileStorage) appendJSONL(events []types.NormalizedEvent) error {
	enc := json.NewEncoder(s.file)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStorage) appendCSV(events []types.NormalizedEvent) error {
	for _, e := range events {
		end := ""
		if e.EndDate != nil {
			end = e.EndDate.Format(time.RFC3339)
		}
		record := []string{
			e.ID,
			e.Title,
			e.StartDate.Format(time.RFC3339),
			end,
			e.Venue.Name,
			e.Venue.City,
			e.Venue.Address,
			e.URL,
			e.ImageURL,
			e.Source,
			strconv.FormatInt(e.FetchedAt.Unix(), 10),
		}
		if err := s.csv.Write(record); err != nil {
			return err
		}
	}
	s.csv.Flush()
	return s.csv.Error()
}

func (s *FileStorage) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.csv != nil {
		s.csv.Flush()
		if err := s.csv.Error(); err != nil {
			return &types.StorageError{Backend: s.cfg.Type, Err: err}
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return &types.StorageError{Backend: s.cfg.Type, Err: err}
		}
		s.file = nil
	}
	return nil
}
