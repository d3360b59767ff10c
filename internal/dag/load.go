package dag

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/taskforge/taskforge/pkg/models"
)

// LoadPlan decodes a Plan document from raw bytes. Format is chosen by
// extension (".yaml"/".yml" -> YAML, everything else -> JSON), mirroring
// the teacher's YAML-first task file convention in task_manager.go while
// also accepting the JSON form spec.md §6 names.
func LoadPlan(path string, data []byte) (*models.Plan, error) {
	var plan models.Plan
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, errors.Wrap(err, "decode plan yaml")
		}
	default:
		if err := json.Unmarshal(data, &plan); err != nil {
			return nil, errors.Wrap(err, "decode plan json")
		}
	}
	return &plan, nil
}
