package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// decodeFilter reads a JSON object; integral numbers become int64.
func decodeFilter(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	filters, err := storage.DecodeJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("filter should be a JSON object: %w", err)
	}
	return filters, nil
}
