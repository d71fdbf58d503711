package framework

// AngularHandler handles Angular 2+ applications.
type AngularHandler struct{}

// NewAngularHandler creates a new Angular handler.
func NewAngularHandler() *AngularHandler {
	return &AngularHandler{}
}

// Type returns the framework type.
func (h *AngularHandler) Type() Type {
	return TypeAngular
}

// Detect checks for angular.json, @angular/core or an app-root element.
func (h *AngularHandler) Detect(p *Project) bool {
	return p.HasFile("angular.json") ||
		p.HasDependency("@angular/core") ||
		p.HasElement("app-root, [ng-version]")
}

// AngularJSHandler handles AngularJS 1.x applications.
type AngularJSHandler struct{}

// NewAngularJSHandler creates a new AngularJS handler.
func NewAngularJSHandler() *AngularJSHandler {
	return &AngularJSHandler{}
}

// Type returns the framework type.
func (h *AngularJSHandler) Type() Type {
	return TypeAngularJS
}

// Detect checks for the angular package or ng-app bootstrapping.
func (h *AngularJSHandler) Detect(p *Project) bool {
	return p.HasDependency("angular") || p.HasElement("[ng-app], [data-ng-app]")
}
