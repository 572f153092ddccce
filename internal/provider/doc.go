// Package provider provisions the sandbox environments that host a preview.
//
// # Backends
//
//   - e2b: remote sandboxes through the e2b control plane. Commands and file
//     writes run through the code interpreter inside the sandbox, which
//     streams NDJSON events back.
//   - docker: a local Docker or Podman container that publishes the app port
//     on an ephemeral loopback port and exits when its timeout elapses.
//   - mock: in-memory, for tests.
//
// # Usage
//
//	p, err := provider.New(cfg)
//	env, err := p.Create(ctx, provider.CreateOptions{Port: 5173, Timeout: 15 * time.Minute})
//	res, err := p.Execute(ctx, env.ID, provider.Command{Line: "npm install", Dir: "/home/user/app"})
//
// Providers that support resetting an environment's expiry also implement
// TimeoutExtender.
package provider
