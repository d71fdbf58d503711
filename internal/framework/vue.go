package framework

// VueHandler handles Vue applications.
type VueHandler struct{}

// NewVueHandler creates a new Vue handler.
func NewVueHandler() *VueHandler {
	return &VueHandler{}
}

// Type returns the framework type.
func (h *VueHandler) Type() Type {
	return TypeVue
}

// Detect checks for a vue dependency or a Vue mount point with directives.
func (h *VueHandler) Detect(p *Project) bool {
	return p.HasDependency("vue") || p.HasElement("[data-v-app], [v-cloak]")
}

// NuxtHandler handles Nuxt applications.
type NuxtHandler struct{}

// NewNuxtHandler creates a new Nuxt handler.
func NewNuxtHandler() *NuxtHandler {
	return &NuxtHandler{}
}

// Type returns the framework type.
func (h *NuxtHandler) Type() Type {
	return TypeNuxt
}

// Detect checks for a Nuxt config or dependency.
func (h *NuxtHandler) Detect(p *Project) bool {
	return p.HasFile("nuxt.config.ts", "nuxt.config.js") ||
		p.HasDependency("nuxt", "nuxt3") ||
		p.HasElement("#__nuxt")
}

// VueCLIHandler handles projects built with Vue CLI.
type VueCLIHandler struct{}

// NewVueCLIHandler creates a new Vue CLI handler.
func NewVueCLIHandler() *VueCLIHandler {
	return &VueCLIHandler{}
}

// Type returns the framework type.
func (h *VueCLIHandler) Type() Type {
	return TypeVueCLI
}

// Detect checks for vue.config.js.
func (h *VueCLIHandler) Detect(p *Project) bool {
	return p.HasFile("vue.config.js")
}
