package framework

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  Type
	}{
		{
			name:  "empty project",
			files: map[string]string{},
			want:  TypeUnknown,
		},
		{
			name:  "next config",
			files: map[string]string{"next.config.js": "module.exports = {}", "package.json": `{"dependencies":{"react":"18"}}`},
			want:  TypeNext,
		},
		{
			name:  "nuxt config",
			files: map[string]string{"nuxt.config.ts": "export default {}"},
			want:  TypeNuxt,
		},
		{
			name:  "vue cli",
			files: map[string]string{"vue.config.js": "", "package.json": `{"dependencies":{"vue":"2"}}`},
			want:  TypeVueCLI,
		},
		{
			name:  "vite wins over react dependency",
			files: map[string]string{"vite.config.ts": "", "package.json": `{"dependencies":{"react":"^18.2.0"}}`},
			want:  TypeVite,
		},
		{
			name:  "react from devDependencies",
			files: map[string]string{"package.json": `{"devDependencies":{"react":"^18.2.0"}}`},
			want:  TypeReact,
		},
		{
			name:  "vue dependency",
			files: map[string]string{"package.json": `{"dependencies":{"vue":"^3.4.0"}}`},
			want:  TypeVue,
		},
		{
			name:  "angular from html shell",
			files: map[string]string{"src/index.html": `<html><body><app-root></app-root></body></html>`},
			want:  TypeAngular,
		},
		{
			name:  "angularjs from ng-app",
			files: map[string]string{"index.html": `<html ng-app="shop"><body></body></html>`},
			want:  TypeAngularJS,
		},
		{
			name:  "next data script",
			files: map[string]string{"public/index.html": `<script id="__NEXT_DATA__" type="application/json">{}</script>`},
			want:  TypeNext,
		},
		{
			name:  "malformed package.json is ignored",
			files: map[string]string{"package.json": `{not json`},
			want:  TypeUnknown,
		},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeFiles(t, tt.files)
			got := d.Detect(root)
			if got.Primary != tt.want {
				t.Errorf("Primary = %v, want %v (all: %v)", got.Primary, tt.want, got.Frameworks)
			}
		})
	}
}

func TestDetector_Version(t *testing.T) {
	root := writeFiles(t, map[string]string{"package.json": `{"dependencies":{"vue":"^3.4.0"}}`})

	got := NewDetector().Detect(root)
	if got.Version != "3.4.0" {
		t.Errorf("Version = %q, want 3.4.0", got.Version)
	}
}

func TestDetector_MultipleFrameworks(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"vite.config.js": "",
		"package.json":   `{"dependencies":{"vue":"3"}}`,
	})

	got := NewDetector().Detect(root)
	if len(got.Frameworks) != 2 {
		t.Errorf("Frameworks = %v, want [vite vue]", got.Frameworks)
	}
}

func TestDetector_GetHandler(t *testing.T) {
	d := NewDetector()
	if h := d.GetHandler(TypeReact); h == nil || h.Type() != TypeReact {
		t.Errorf("GetHandler(react) = %v", h)
	}
	if h := d.GetHandler(TypeUnknown); h != nil {
		t.Errorf("GetHandler(unknown) = %v, want nil", h)
	}
}

func TestProject_HasFileIgnoresDirs(t *testing.T) {
	root := writeFiles(t, map[string]string{"next.config.js/keep": ""})
	p := LoadProject(root)
	if p.HasFile("next.config.js") {
		t.Error("a directory should not count as a config file")
	}
}
