package scaffold

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
)

// Scaffold paths, relative to the app directory.
const (
	PathPackageJSON    = "package.json"
	PathViteConfig     = "vite.config.js"
	PathTailwindConfig = "tailwind.config.js"
	PathPostCSSConfig  = "postcss.config.js"
	PathIndexHTML      = "index.html"
	PathMainJSX        = "src/main.jsx"
	PathAppJSX         = "src/App.jsx"
	PathIndexCSS       = "src/index.css"
)

// Paths lists every scaffold file in write order.
var Paths = []string{
	PathPackageJSON,
	PathViteConfig,
	PathTailwindConfig,
	PathPostCSSConfig,
	PathIndexHTML,
	PathMainJSX,
	PathAppJSX,
	PathIndexCSS,
}

// Options parameterizes the generated project.
type Options struct {
	Name  string
	Title string
	Port  int
	// AllowedHosts lists host patterns the dev server accepts. The first
	// entry is normally the provider's public domain pattern.
	AllowedHosts []string
}

// DefaultOptions returns options for the given port and provider host pattern.
func DefaultOptions(port int, hostPattern string) Options {
	return Options{
		Name:         "sandbox-app",
		Title:        "Sandbox App",
		Port:         port,
		AllowedHosts: []string{hostPattern, "localhost", "127.0.0.1"},
	}
}

// Validate checks that all required fields are set.
func (o Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("invalid port: %d", o.Port)
	}
	if len(o.AllowedHosts) == 0 {
		return fmt.Errorf("at least one allowed host is required")
	}
	return nil
}

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func renderPackageJSON(o Options) (string, error) {
	pkg := packageJSON{
		Name:    o.Name,
		Version: "1.0.0",
		Type:    "module",
		Scripts: map[string]string{
			"dev":     "vite --host",
			"build":   "vite build",
			"preview": "vite preview",
		},
		Dependencies: map[string]string{
			"react":     "^18.2.0",
			"react-dom": "^18.2.0",
		},
		DevDependencies: map[string]string{
			"@vitejs/plugin-react": "^4.0.0",
			"vite":                 "^4.3.9",
			"tailwindcss":          "^3.3.0",
			"postcss":              "^8.4.31",
			"autoprefixer":         "^10.4.16",
		},
	}

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// Generate renders the project scaffold. The result always holds exactly
// one File per entry of Paths, in that order.
func Generate(o Options) ([]provider.File, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaffold options: %w", err)
	}

	files := make([]provider.File, 0, len(Paths))
	for _, path := range Paths {
		var content string
		if path == PathPackageJSON {
			rendered, err := renderPackageJSON(o)
			if err != nil {
				return nil, fmt.Errorf("failed to render %s: %w", path, err)
			}
			content = rendered
		} else {
			var buf bytes.Buffer
			if err := fileTemplates[path].Execute(&buf, o); err != nil {
				return nil, fmt.Errorf("failed to render %s: %w", path, err)
			}
			content = buf.String()
		}
		files = append(files, provider.File{Path: path, Content: content})
	}

	return files, nil
}
