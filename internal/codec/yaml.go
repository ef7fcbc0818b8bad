package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"guestmap/internal/domain"
)

// YAMLCodec exports results as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Export writes the result to w as YAML
func (c *YAMLCodec) Export(result *domain.WorkloadDiscoveryResult, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
