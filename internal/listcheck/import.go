package listcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
	"gopkg.in/yaml.v3"
)

// ReadLevels reads a level list from a .json, .yaml or .yml file. YAML documents
// use the same keys as the JSON format, legacy keys included.
func ReadLevels(path string) ([]model.Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLevels(data, filepath.Ext(path))
}

// ParseLevels decodes data according to the file extension ext.
func ParseLevels(data []byte, ext string) ([]model.Level, error) {
	switch strings.ToLower(ext) {
	case ".json":
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		// Round trip through JSON so the level decoder sees the usual keys.
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var levels []model.Level
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}
	return levels, nil
}

// Import replaces the remote list with the levels in path.
func Import(ctx context.Context, cfg Config, path string) ([]model.Level, error) {
	levels, err := ReadLevels(path)
	if err != nil {
		return nil, err
	}
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	checker := &Checker{cfg: cfg, client: client}
	if err := checker.authenticate(ctx); err != nil {
		return nil, err
	}
	out, err := client.Replace(ctx, levels)
	if err != nil {
		return nil, fmt.Errorf("replace list: %w", err)
	}
	logger.Get().Named("listcheck").Info(ctx, "levels imported",
		logger.String("file", path),
		logger.Int("levels", len(out)))
	return out, nil
}
