package rowtable

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TableConfig is the optional YAML-loadable shape of a Table's
// construction parameters, for callers who prefer a config file over
// building the struct literally.
type TableConfig struct {
	TableName           string `yaml:"tableName"`
	PartitionKeyAttr     string `yaml:"partitionKeyAttr"`
	SortKeyAttr          string `yaml:"sortKeyAttr"`
	ConsistentRead       bool   `yaml:"consistentRead"`
	MaxBatchConcurrency  int    `yaml:"maxBatchConcurrency"`
}

// LoadTableConfig searches for rowtable.yaml starting from the current
// directory and walking up to the filesystem root, returning an empty
// config if none is found.
func LoadTableConfig() TableConfig {
	var cfg TableConfig

	path := findTableConfigFile()
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)
	return cfg
}

func findTableConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "rowtable.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
