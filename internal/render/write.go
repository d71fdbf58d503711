package render

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/output"
)

// Artifact locations relative to the output root.
const (
	DocsDir      = "docs"
	MockDir      = "mock"
	OpenAPIFile  = "docs/openapi.yaml"
	MarkdownFile = "docs/api-docs.md"
	HandlersDir  = "mock/handlers"
	MockDataDir  = "mock/data"
	BrowserFile  = "mock/browser.js"
)

// Options configures WriteAll.
type Options struct {
	Doc    DocOptions
	Now    time.Time
	Logger *logger.Logger
}

// WriteAll renders every artifact for snap under root and returns the written
// paths in write order.
func WriteAll(snap *contract.Snapshot, root string, opts Options) ([]string, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("render")
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var written []string
	write := func(rel string, data []byte) error {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := output.WriteFileAtomic(path, data); err != nil {
			return err
		}
		log.WithFile(path).Debug("artifact written")
		written = append(written, path)
		return nil
	}

	doc, err := OpenAPI(snap, opts.Doc)
	if err != nil {
		return written, err
	}
	if err := write(OpenAPIFile, doc); err != nil {
		return written, err
	}

	md := Markdown(snap, opts.Doc.withDefaults().ProjectName, opts.Now)
	if err := write(MarkdownFile, []byte(md)); err != nil {
		return written, err
	}

	files, err := MSW(snap)
	if err != nil {
		return written, err
	}
	for _, name := range files.Names() {
		if err := write(MockDir+"/"+name, files[name]); err != nil {
			return written, fmt.Errorf("failed to write mock file %s: %w", name, err)
		}
	}

	log.WithField("files", len(written)).Info("artifacts rendered")
	return written, nil
}
