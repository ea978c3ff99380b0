package sequence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadProgram reads a show from a .json or yaml file.
func LoadProgram(path string) (Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}
	var prog Program
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(b, &prog)
	} else {
		err = yaml.Unmarshal(b, &prog)
	}
	if err != nil {
		return Program{}, fmt.Errorf("program %s: %w", path, err)
	}
	if err := prog.Validate(); err != nil {
		return Program{}, fmt.Errorf("program %s: %w", path, err)
	}
	return prog, nil
}
