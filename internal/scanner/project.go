package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/PentesterFlow/OpenContract/internal/framework"
)

// ProjectInfo describes the project-level facts gathered alongside a scan.
type ProjectInfo struct {
	Framework   string   `json:"framework"`
	BaseURL     string   `json:"baseURL"`
	AuthPattern string   `json:"authPattern"`
	APIDirs     []string `json:"apiDirs"`
}

var (
	// baseURLMarkers identify lines that configure the API base URL.
	baseURLMarkers = []string{"baseURL", "BASE_URL", "VITE_API", "REACT_APP_API", "VUE_APP_API", "API_BASE"}

	// authMarkers identify request authentication setup.
	authMarkers = []string{"Authorization", "Bearer", "Access-Token", "interceptors.request"}

	// apiDirCandidates are conventional locations of API wrapper layers.
	apiDirCandidates = []string{"src/api", "src/services", "src/request", "src/http", "api", "services"}

	envFiles = []string{".env", ".env.local", ".env.development"}
)

const baseURLMaxLen = 100

// fileSignals holds the project-level hints found in one file.
type fileSignals struct {
	baseURL string
	auth    string
}

func inspect(content string) fileSignals {
	var s fileSignals

	for _, marker := range baseURLMarkers {
		if !strings.Contains(content, marker) {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(line, marker) {
				s.baseURL = truncate(strings.TrimSpace(line), baseURLMaxLen)
				break
			}
		}
		break
	}

	for _, marker := range authMarkers {
		if !strings.Contains(content, marker) {
			continue
		}
		switch {
		case strings.Contains(content, "Bearer"):
			s.auth = "Bearer Token"
		case strings.Contains(content, "Access-Token"):
			s.auth = "Access-Token Header"
		default:
			s.auth = "Detected: " + marker
		}
		break
	}

	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// AnalyzeProject gathers framework, base URL, auth pattern and API wrapper
// directories for the project at root. files are the discovered sources in scan order.
func AnalyzeProject(root string, files []string, hints []string) ProjectInfo {
	signals := make([]fileSignals, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		signals = append(signals, inspect(string(data)))
	}
	return resolveProject(root, hints, signals)
}

func resolveProject(root string, hints []string, signals []fileSignals) ProjectInfo {
	info := ProjectInfo{
		Framework: string(framework.NewDetector().Detect(root).Primary),
		APIDirs:   discoverAPIDirs(root, hints),
	}

	for _, s := range signals {
		if info.BaseURL == "" && s.baseURL != "" {
			info.BaseURL = s.baseURL
		}
		if info.AuthPattern == "" && s.auth != "" {
			info.AuthPattern = s.auth
		}
	}
	if info.BaseURL == "" {
		info.BaseURL = baseURLFromEnv(root)
	}

	return info
}

// baseURLFromEnv looks for a base URL variable in the project's dotenv files.
func baseURLFromEnv(root string) string {
	for _, name := range envFiles {
		vars, err := godotenv.Read(filepath.Join(root, name))
		if err != nil {
			continue
		}

		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, marker := range baseURLMarkers {
			for _, k := range keys {
				if strings.Contains(k, marker) {
					return k + "=" + vars[k]
				}
			}
		}
	}
	return ""
}

// discoverAPIDirs returns the existing conventional API dirs followed by any
// existing entry hints not already listed.
func discoverAPIDirs(root string, hints []string) []string {
	dirs := make([]string, 0)
	seen := make(map[string]bool)

	add := func(d string) {
		d = strings.Trim(filepath.ToSlash(filepath.Clean(d)), "/")
		if d == "" || d == "." || seen[d] {
			return
		}
		if info, err := os.Stat(filepath.Join(root, d)); err == nil && info.IsDir() {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}

	for _, d := range apiDirCandidates {
		add(d)
	}
	for _, h := range hints {
		add(h)
	}
	return dirs
}
