// Package scaffold renders the initial project written into a new sandbox:
// a React app built with Vite and styled with Tailwind CSS.
//
// Generate returns exactly eight files:
//
//	package.json
//	vite.config.js       binds 0.0.0.0 on the configured port, strictPort, no HMR
//	tailwind.config.js
//	postcss.config.js
//	index.html
//	src/main.jsx
//	src/App.jsx
//	src/index.css        Tailwind directives; touched to force a CSS rebuild
//
// The Vite allowedHosts list must include the provider's public domain
// pattern or the dev server rejects proxied requests.
package scaffold
