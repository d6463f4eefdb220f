package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadWorkspace loads the live graph from path. YAML is used for .yaml and
// .yml files, JSON otherwise. A missing file is an empty graph.
func ReadWorkspace(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Graph{}, nil
	}
	if err != nil {
		return Graph{}, fmt.Errorf("failed to read workspace: %w", err)
	}

	var g Graph
	if isYAML(path) {
		err = yaml.Unmarshal(data, &g)
	} else if len(strings.TrimSpace(string(data))) > 0 {
		err = json.Unmarshal(data, &g)
	}
	if err != nil {
		return Graph{}, fmt.Errorf("failed to parse workspace %s: %w", path, err)
	}
	return g, nil
}

// WriteWorkspace replaces the file at path with g.
func WriteWorkspace(path string, g Graph) error {
	g = Graph{Nodes: nonNil(g.Nodes), Edges: nonNil(g.Edges)}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode workspace: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".workspace-*")
	if err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
