// Package codec serializes discovery results for export.
package codec

import (
	"fmt"
	"io"

	"guestmap/internal/domain"
)

// Exporter writes a discovery result in one output format
type Exporter interface {
	Export(result *domain.WorkloadDiscoveryResult, w io.Writer) error
	Format() string
}

// ForFormat returns the exporter for a format name
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}
