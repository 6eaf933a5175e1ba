package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// jobTable is the on-disk layout of a deadline table.
type jobTable struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// LoadConfig loads search parameters from a JSON or YAML file.
func LoadConfig(path string) (Params, error) {
	var p Params
	err := loadFile(path, &p)
	return p, err
}

// DecodeConfig reads search parameters from r.
func DecodeConfig(r io.Reader, format string) (Params, error) {
	var p Params
	err := decode(r, format, &p)
	return p, err
}

// LoadJobs loads a deadline table from a JSON or YAML file.
func LoadJobs(path string) ([]Job, error) {
	var t jobTable
	if err := loadFile(path, &t); err != nil {
		return nil, err
	}
	return t.Jobs, nil
}

// DecodeJobs reads a deadline table from r.
func DecodeJobs(r io.Reader, format string) ([]Job, error) {
	var t jobTable
	if err := decode(r, format, &t); err != nil {
		return nil, err
	}
	return t.Jobs, nil
}

func loadFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decode(f, strings.TrimPrefix(filepath.Ext(path), "."), v)
}

func decode(r io.Reader, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(v); err != nil && err != io.EOF {
			return err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}
