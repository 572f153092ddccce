// Package session holds the single active preview session.
//
// A Store owns at most one Session. Replace tears the previous environment
// down before handing out a Handle for the next bootstrap; every mutation
// goes through that Handle, and a Handle superseded by a later Replace or
// DestroyCurrent silently stops applying changes:
//
//	h := store.Replace(ctx)
//	h.SetEnvironment("e2b", env, expiresAt)
//	h.SeedManifest(paths)
//	h.SetStatus(session.StatusInstalling)
//	ready := h.MarkReady()
//
// The Store also tracks the manifest of files written into the current
// session so later file operations can tell creates from updates.
package session
