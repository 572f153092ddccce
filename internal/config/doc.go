// Package config provides configuration types and loading for forage-preview.
//
// # Configuration File
//
// Configuration is read from a TOML file (default
// /etc/forage-preview/config.toml). A missing file means built-in defaults;
// unknown keys are rejected.
//
//	[sandbox]
//	timeout_minutes = 15
//	app_port = 5173
//	app_dir = "/home/user/app"
//
//	[provider]
//	kind = "auto"            # auto, e2b, or docker
//	e2b_domain = "e2b.app"
//
//	[install]
//	max_attempts = 3
//	attempt_timeout = "120s"
//	backoff_base = "2s"
//	backoff_jitter = "1s"
//
//	[devserver]
//	max_attempts = 3
//	probe_delay = "3s"
//	startup_delay = "7s"
//
//	[readiness]
//	safety_factor = 1.5
//	nudge_pause = "3s"
//
// # Environment Overrides
//
//	E2B_API_KEY                     provider.e2b_api_key
//	FORAGE_PREVIEW_PROVIDER         provider.kind
//	FORAGE_PREVIEW_LISTEN           server.listen
//	FORAGE_PREVIEW_API_KEY          server.api_key
//	FORAGE_PREVIEW_STATE_DIR        state.dir
//	FORAGE_PREVIEW_TIMEOUT_MINUTES  sandbox.timeout_minutes
//
// # Validation
//
// Load validates after applying overrides; Validate can be called on a
// hand-built Config in tests.
package config
