package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadDir loads and compiles every component fixture under dir. All CUE
// files in the directory are loaded as one instance, so fixtures may share
// definitions; components live under the top-level "component" struct.
// Specs are returned sorted by name.
func LoadDir(dir string) ([]*Spec, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("fixture directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing fixture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances(cueFiles, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	root := ctx.BuildInstance(inst)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	componentsVal := root.LookupPath(cue.ParsePath("component"))
	if !componentsVal.Exists() {
		return nil, fmt.Errorf("no component fixtures found in %s", dir)
	}

	iter, err := componentsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*Spec
	for iter.Next() {
		spec, err := Compile(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("component.%s: %w", iter.Label(), err)
		}
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(a, b int) bool {
		return specs[a].Name < specs[b].Name
	})
	return specs, nil
}

// findCUEFiles lists non-hidden *.cue files directly under dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
