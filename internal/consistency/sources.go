package consistency

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenContract/internal/normalize"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

var openAPIMethods = []string{"get", "post", "put", "patch", "delete"}

// handlerCallRe matches http.<method>('<path>' registrations in mock handler sources.
var handlerCallRe = regexp.MustCompile("http\\.(get|post|put|patch|delete)\\s*\\(\\s*(?:'([^']+)'|\"([^\"]+)\"|`([^`]+)`)")

// OpenAPIKeys extracts (method, path) keys from an OpenAPI YAML or JSON document.
func OpenAPIKeys(data []byte) (*state.KeySet, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	keys := state.NewKeySet(len(doc.Paths) * 2)
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		item := doc.Paths[p]
		for _, m := range openAPIMethods {
			if _, ok := item[m]; ok {
				keys.Add(state.Key{Method: strings.ToUpper(m), Path: p})
			}
		}
	}
	return keys, nil
}

// HandlerKeys extracts (method, path) keys from mock handler sources. path may
// be a single file or a directory of .js/.ts files; index files are skipped.
// Colon parameters are converted to the {name} form.
func HandlerKeys(path string) (*state.KeySet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var files []string
	if info.IsDir() {
		for _, pattern := range []string{"*.js", "*.ts"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	keys := state.NewKeySet(64)
	for _, f := range files {
		base := filepath.Base(f)
		if base == "index.js" || base == "index.ts" {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for _, m := range handlerCallRe.FindAllStringSubmatch(string(data), -1) {
			route := m[2]
			if route == "" {
				route = m[3]
			}
			if route == "" {
				route = m[4]
			}
			keys.Add(state.Key{Method: strings.ToUpper(m[1]), Path: normalize.FromColon(route)})
		}
	}
	return keys, nil
}
