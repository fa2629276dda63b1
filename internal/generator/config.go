package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-modulus/internal/models"
)

// LoadConfigs reads generator configs from a JSON or YAML file
func LoadConfigs(path string) ([]models.GeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator config: %w", err)
	}

	var configs []models.GeneratorConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &configs)
	default:
		err = json.Unmarshal(data, &configs)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid generator config %s: %w", path, err)
	}

	for i, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("invalid generator config %s: entry %d has no name", path, i)
		}
		if cfg.Type == "" {
			return nil, fmt.Errorf("invalid generator config %s: generator %q has no type", path, cfg.Name)
		}
	}

	return configs, nil
}
