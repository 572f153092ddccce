package scaffold

import (
	"strings"
	"text/template"
)

// jsString renders s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// jsList renders a JavaScript array of string literals.
func jsList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = jsString(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// htmlText escapes text for an HTML element body.
func htmlText(s string) string {
	return template.HTMLEscapeString(s)
}

const viteConfigText = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    host: '0.0.0.0',
    port: {{.Port}},
    strictPort: true,
    hmr: false,
    allowedHosts: {{jsList .AllowedHosts}}
  }
})
`

const tailwindConfigText = `/** @type {import('tailwindcss').Config} */
export default {
  content: [
    "./index.html",
    "./src/**/*.{js,ts,jsx,tsx}",
  ],
  theme: {
    extend: {},
  },
  plugins: [],
}
`

const postcssConfigText = `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}
`

const indexHTMLText = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{htmlText .Title}}</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>
`

const mainJSXText = `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App.jsx'
import './index.css'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

const appJSXText = `function App() {
  return (
    <div className="min-h-screen bg-gray-900 text-white flex items-center justify-center p-4">
      <div className="text-center max-w-2xl">
        <p className="text-lg text-gray-400">
          {{htmlText .Title}} is ready<br/>
          Start building your React app with Vite and Tailwind CSS!
        </p>
      </div>
    </div>
  )
}

export default App
`

const indexCSSText = `@tailwind base;
@tailwind components;
@tailwind utilities;

@layer base {
  :root {
    font-synthesis: none;
    text-rendering: optimizeLegibility;
    -webkit-font-smoothing: antialiased;
    -moz-osx-font-smoothing: grayscale;
    -webkit-text-size-adjust: 100%;
  }

  * {
    margin: 0;
    padding: 0;
    box-sizing: border-box;
  }
}

body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
  background-color: rgb(17 24 39);
}
`

// fileTemplates maps scaffold paths to parsed templates, initialized at package load time.
var fileTemplates map[string]*template.Template

func init() {
	funcs := template.FuncMap{
		"jsList":   jsList,
		"htmlText": htmlText,
	}
	texts := map[string]string{
		PathViteConfig:     viteConfigText,
		PathTailwindConfig: tailwindConfigText,
		PathPostCSSConfig:  postcssConfigText,
		PathIndexHTML:      indexHTMLText,
		PathMainJSX:        mainJSXText,
		PathAppJSX:         appJSXText,
		PathIndexCSS:       indexCSSText,
	}
	fileTemplates = make(map[string]*template.Template, len(texts))
	for path, text := range texts {
		fileTemplates[path] = template.Must(template.New(path).Funcs(funcs).Parse(text))
	}
}
