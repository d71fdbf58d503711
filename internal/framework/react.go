package framework

// ReactHandler handles React applications.
type ReactHandler struct{}

// NewReactHandler creates a new React handler.
func NewReactHandler() *ReactHandler {
	return &ReactHandler{}
}

// Type returns the framework type.
func (h *ReactHandler) Type() Type {
	return TypeReact
}

// Detect checks for a react dependency or a React mount point.
func (h *ReactHandler) Detect(p *Project) bool {
	return p.HasDependency("react", "react-dom") ||
		p.HasElement("[data-reactroot], [data-reactid]")
}

// NextHandler handles Next.js applications.
type NextHandler struct{}

// NewNextHandler creates a new Next.js handler.
func NewNextHandler() *NextHandler {
	return &NextHandler{}
}

// Type returns the framework type.
func (h *NextHandler) Type() Type {
	return TypeNext
}

// Detect checks for a Next.js config, dependency or data script.
func (h *NextHandler) Detect(p *Project) bool {
	return p.HasFile("next.config.js", "next.config.mjs", "next.config.ts") ||
		p.HasDependency("next") ||
		p.HasElement("script#__NEXT_DATA__, #__next")
}
