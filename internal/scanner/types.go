// Package scanner finds API call sites in frontend source text.
package scanner

import "strings"

// PatternID names the recognizer that produced an observation.
type PatternID string

const (
	PatternAxiosMethod PatternID = "axios.method"
	PatternAxiosConfig PatternID = "axios.config"
	PatternFetch       PatternID = "fetch"
	PatternRequest     PatternID = "request.custom"
	PatternReactQuery  PatternID = "react-query"
	PatternSWR         PatternID = "swr/useRequest"
	PatternWxRequest   PatternID = "wx.request"
)

const (
	// UnresolvedPath marks an observation whose URL could not be extracted.
	UnresolvedPath = "[unresolved]"

	// MethodUnknown is used when the HTTP method cannot be determined.
	MethodUnknown = "UNKNOWN"
)

// Observation is one raw detection of an API call in source text.
type Observation struct {
	Method  string    `json:"method"`
	RawPath string    `json:"path"`
	File    string    `json:"file"`
	Line    int       `json:"line"`
	Pattern PatternID `json:"pattern"`
	Context string    `json:"context"`
}

// Unresolved reports whether the observation carries no usable URL.
func (o Observation) Unresolved() bool {
	return o.RawPath == UnresolvedPath || strings.TrimSpace(o.RawPath) == ""
}

// Policy holds the scanning constants. They affect recall, not correctness,
// but must stay fixed between runs for results to be comparable.
type Policy struct {
	// MethodWindow is the number of bytes after a match start searched for a method field.
	MethodWindow int `json:"method_window" yaml:"method_window" koanf:"method_window"`

	// ContextMaxLen bounds the recorded source line, in runes.
	ContextMaxLen int `json:"context_max_len" yaml:"context_max_len" koanf:"context_max_len"`

	// Extensions lists the file suffixes that are scanned.
	Extensions []string `json:"extensions" yaml:"extensions" koanf:"extensions"`

	// IgnoreDirs lists directory names that are never descended into.
	IgnoreDirs []string `json:"ignore_dirs" yaml:"ignore_dirs" koanf:"ignore_dirs"`

	// Workers bounds the number of files scanned concurrently.
	Workers int `json:"workers" yaml:"workers" koanf:"workers"`
}

// DefaultPolicy returns the standard scanning policy.
func DefaultPolicy() Policy {
	return Policy{
		MethodWindow:  500,
		ContextMaxLen: 120,
		Extensions:    []string{".js", ".ts", ".jsx", ".tsx", ".vue", ".wxml"},
		IgnoreDirs: []string{
			"node_modules", "dist", "build", ".git", "coverage",
			"__tests__", ".nuxt", ".output", ".cache", ".next",
		},
		Workers: 8,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MethodWindow <= 0 {
		p.MethodWindow = d.MethodWindow
	}
	if p.ContextMaxLen <= 0 {
		p.ContextMaxLen = d.ContextMaxLen
	}
	if len(p.Extensions) == 0 {
		p.Extensions = d.Extensions
	}
	if p.IgnoreDirs == nil {
		p.IgnoreDirs = d.IgnoreDirs
	}
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	return p
}
