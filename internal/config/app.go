package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
	"gopkg.in/yaml.v3"
)

// StringList accepts either a YAML string or a list of strings.
// Hooks are usually written as a block scalar but lists are allowed too.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Empty reports whether there is no non-blank entry.
func (s StringList) Empty() bool {
	for _, item := range s {
		if strings.TrimSpace(item) != "" {
			return false
		}
	}
	return true
}

// LoadApp reads the application config in appRoot. A missing file yields an
// empty config, since applications are allowed to rely on detection alone.
func LoadApp(appRoot string) (*AppConfig, error) {
	path := filepath.Join(appRoot, AppConfigFile)
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read "+path,
			"Check file permissions")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid application config",
			"Check the YAML syntax in "+path)
	}

	if err := ValidateApp(cfg, path); err != nil {
		return nil, err
	}

	return cfg, nil
}
