package framework

// ViteHandler detects projects bundled with Vite.
type ViteHandler struct{}

// NewViteHandler creates a new Vite handler.
func NewViteHandler() *ViteHandler {
	return &ViteHandler{}
}

// Type returns the framework type.
func (h *ViteHandler) Type() Type {
	return TypeVite
}

// Detect checks for a Vite config file.
func (h *ViteHandler) Detect(p *Project) bool {
	return p.HasFile("vite.config.ts", "vite.config.js", "vite.config.mjs")
}

// EmberHandler handles Ember applications.
type EmberHandler struct{}

// NewEmberHandler creates a new Ember handler.
func NewEmberHandler() *EmberHandler {
	return &EmberHandler{}
}

// Type returns the framework type.
func (h *EmberHandler) Type() Type {
	return TypeEmber
}

// Detect checks for ember-source or ember-cli-build.js.
func (h *EmberHandler) Detect(p *Project) bool {
	return p.HasFile("ember-cli-build.js") || p.HasDependency("ember-source")
}

// SvelteHandler handles Svelte applications.
type SvelteHandler struct{}

// NewSvelteHandler creates a new Svelte handler.
func NewSvelteHandler() *SvelteHandler {
	return &SvelteHandler{}
}

// Type returns the framework type.
func (h *SvelteHandler) Type() Type {
	return TypeSvelte
}

// Detect checks for svelte or svelte.config.js.
func (h *SvelteHandler) Detect(p *Project) bool {
	return p.HasFile("svelte.config.js") || p.HasDependency("svelte", "@sveltejs/kit")
}
