// Package framework detects the frontend framework of a project from its files.
package framework

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Type represents a frontend framework or build tool.
type Type string

const (
	TypeUnknown   Type = "unknown"
	TypeAngularJS Type = "angularjs" // AngularJS 1.x
	TypeAngular   Type = "angular"   // Angular 2+
	TypeReact     Type = "react"
	TypeVue       Type = "vue"
	TypeVueCLI    Type = "vue-cli"
	TypeVite      Type = "vite"
	TypeEmber     Type = "ember"
	TypeSvelte    Type = "svelte"
	TypeNext      Type = "nextjs"
	TypeNuxt      Type = "nuxt"
)

// Handler recognizes one framework.
type Handler interface {
	// Type returns the framework type.
	Type() Type

	// Detect checks if this framework is present in the project.
	Detect(p *Project) bool
}

// Project is a read-only view of the files used for detection.
type Project struct {
	Root string

	deps map[string]string
	doc  *goquery.Document
}

// indexPages are the HTML shells inspected for mount points, in order.
var indexPages = []string{"index.html", "public/index.html", "src/index.html"}

// LoadProject reads package.json and the first HTML shell found under root.
// Missing or malformed files leave the corresponding evidence empty.
func LoadProject(root string) *Project {
	p := &Project{Root: root, deps: make(map[string]string)}

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			for name, v := range pkg.Dependencies {
				p.deps[name] = v
			}
			for name, v := range pkg.DevDependencies {
				p.deps[name] = v
			}
		}
	}

	for _, page := range indexPages {
		f, err := os.Open(filepath.Join(root, page))
		if err != nil {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(f)
		f.Close()
		if err == nil {
			p.doc = doc
			break
		}
	}

	return p
}

// HasFile reports whether any of the named files exists directly under the root.
func (p *Project) HasFile(names ...string) bool {
	for _, name := range names {
		if info, err := os.Stat(filepath.Join(p.Root, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// HasDependency reports whether package.json declares any of the named packages.
func (p *Project) HasDependency(names ...string) bool {
	for _, name := range names {
		if _, ok := p.deps[name]; ok {
			return true
		}
	}
	return false
}

// DependencyVersion returns the declared version range of a package.
func (p *Project) DependencyVersion(name string) string {
	return strings.TrimLeft(p.deps[name], "^~")
}

// HasElement reports whether the HTML shell contains an element matching selector.
func (p *Project) HasElement(selector string) bool {
	if p.doc == nil {
		return false
	}
	return p.doc.Find(selector).Length() > 0
}

// DetectionResult contains the result of framework detection.
type DetectionResult struct {
	Frameworks []Type
	Primary    Type
	Version    string
}

// Detector detects frameworks in a project.
type Detector struct {
	handlers []Handler
}

// NewDetector creates a detector with all handlers. Meta-frameworks and build
// tool configs are checked before the libraries they wrap.
func NewDetector() *Detector {
	return &Detector{
		handlers: []Handler{
			NewNextHandler(),
			NewNuxtHandler(),
			NewVueCLIHandler(),
			NewViteHandler(),
			NewReactHandler(),
			NewVueHandler(),
			NewAngularHandler(),
			NewAngularJSHandler(),
			NewEmberHandler(),
			NewSvelteHandler(),
		},
	}
}

// Detect detects all frameworks present under root.
func (d *Detector) Detect(root string) *DetectionResult {
	p := LoadProject(root)
	result := &DetectionResult{
		Frameworks: make([]Type, 0),
		Primary:    TypeUnknown,
	}

	for _, handler := range d.handlers {
		if handler.Detect(p) {
			result.Frameworks = append(result.Frameworks, handler.Type())
			if result.Primary == TypeUnknown {
				result.Primary = handler.Type()
			}
		}
	}

	if pkg := versionPackage(result.Primary); pkg != "" {
		result.Version = p.DependencyVersion(pkg)
	}
	return result
}

// GetHandler returns the handler for a framework type, or nil.
func (d *Detector) GetHandler(t Type) Handler {
	for _, handler := range d.handlers {
		if handler.Type() == t {
			return handler
		}
	}
	return nil
}

func versionPackage(t Type) string {
	switch t {
	case TypeNext:
		return "next"
	case TypeNuxt:
		return "nuxt"
	case TypeVite:
		return "vite"
	case TypeVueCLI:
		return "@vue/cli-service"
	case TypeReact:
		return "react"
	case TypeVue:
		return "vue"
	case TypeAngular:
		return "@angular/core"
	case TypeAngularJS:
		return "angular"
	case TypeEmber:
		return "ember-source"
	case TypeSvelte:
		return "svelte"
	}
	return ""
}
