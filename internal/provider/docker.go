package provider

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/system"
)

// DockerProvider implements Provider with a local Docker or Podman engine.
// Environments are containers named ContainerPrefix+id that sleep for the
// configured timeout and are removed when they exit.
type DockerProvider struct {
	// Command is the container command to use (docker or podman)
	Command string

	// ContainerPrefix is prepended to environment ids to form container names
	ContainerPrefix string

	// Image is the Node image environments run.
	Image string

	Exec system.CommandExecutor
	FS   system.FileSystem
}

// NewDockerProvider creates a new Docker/Podman provider.
// If command is empty it auto-detects which engine is available.
func NewDockerProvider(command, containerPrefix, image string) (*DockerProvider, error) {
	if command == "" {
		detected, err := detectEngine()
		if err != nil {
			return nil, err
		}
		command = detected
	}

	return &DockerProvider{
		Command:         command,
		ContainerPrefix: containerPrefix,
		Image:           image,
		Exec:            system.DefaultExecutor(),
		FS:              system.DefaultFS(),
	}, nil
}

func detectEngine() (string, error) {
	// Try podman first (preferred for rootless)
	if _, err := exec.LookPath("podman"); err == nil {
		logging.Debug("detected podman")
		return "podman", nil
	}
	if _, err := exec.LookPath("docker"); err == nil {
		logging.Debug("detected docker")
		return "docker", nil
	}
	return "", fmt.Errorf("neither podman nor docker found in PATH")
}

// containerName returns the full container name for an environment
func (p *DockerProvider) containerName(id string) string {
	return p.ContainerPrefix + id
}

// Name returns the provider identifier
func (p *DockerProvider) Name() string {
	return p.Command
}

// runCmd executes a docker/podman command and returns trimmed stdout
func (p *DockerProvider) runCmd(ctx context.Context, args ...string) (string, error) {
	res, err := p.Exec.Capture(ctx, p.Command, args...)
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", p.Command, args[0], err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s %s failed: %s", p.Command, args[0], strings.TrimSpace(string(res.Stderr)))
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Create starts a detached container publishing opts.Port on an ephemeral
// loopback port.
func (p *DockerProvider) Create(ctx context.Context, opts CreateOptions) (*Environment, error) {
	id := uuid.NewString()[:12]
	name := p.containerName(id)
	logging.Debug("creating container", "container", name, "runtime", p.Command)

	lifetime := int(opts.Timeout / time.Second)
	if lifetime <= 0 {
		lifetime = int((15 * time.Minute) / time.Second)
	}

	args := []string{"run", "-d", "--rm",
		"--name", name,
		"--label", "forage-preview=" + id,
		"-p", fmt.Sprintf("127.0.0.1::%d", opts.Port),
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, p.Image, "sleep", strconv.Itoa(lifetime))

	if _, err := p.runCmd(ctx, args...); err != nil {
		return nil, err
	}

	hostPort, err := p.runCmd(ctx, "port", name, strconv.Itoa(opts.Port))
	if err != nil {
		_ = p.Destroy(ctx, id)
		return nil, err
	}
	// Multiple bindings come back one per line; the first is enough.
	host := strings.TrimSpace(strings.SplitN(hostPort, "\n", 2)[0])
	if host == "" {
		_ = p.Destroy(ctx, id)
		return nil, fmt.Errorf("%s port returned no binding for %d", p.Command, opts.Port)
	}

	if opts.WorkDir != "" {
		if _, err := p.runCmd(ctx, "exec", name, "mkdir", "-p", opts.WorkDir); err != nil {
			_ = p.Destroy(ctx, id)
			return nil, err
		}
	}

	now := time.Now()
	return &Environment{
		ID:        id,
		Host:      host,
		URL:       "http://" + host,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(lifetime) * time.Second),
	}, nil
}

// Destroy removes the container
func (p *DockerProvider) Destroy(ctx context.Context, id string) error {
	name := p.containerName(id)
	logging.Debug("destroying container", "container", name)

	_, err := p.runCmd(ctx, "rm", "-f", name)
	if err != nil && isGone(err.Error()) {
		return nil
	}
	return err
}

// Execute runs cmd.Line with sh inside the container
func (p *DockerProvider) Execute(ctx context.Context, id string, cmd Command) (*ExecResult, error) {
	args := []string{"exec"}
	if cmd.Dir != "" {
		args = append(args, "-w", cmd.Dir)
	}
	for _, env := range cmd.EnvList() {
		args = append(args, "-e", env)
	}
	args = append(args, p.containerName(id), "sh", "-c", cmd.Line)

	res, err := p.Exec.Capture(ctx, p.Command, args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}

	return &ExecResult{
		ExitCode: res.ExitCode,
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
	}, nil
}

// WriteFiles stages files in a local directory and copies the whole tree
// into the container with one cp.
func (p *DockerProvider) WriteFiles(ctx context.Context, id string, root string, files []File) error {
	stage, err := p.FS.MkdirTemp("", "forage-preview-stage-*")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer func() {
		if err := p.FS.RemoveAll(stage); err != nil {
			logging.Warn("failed to remove staging dir", "path", stage, "error", err)
		}
	}()

	for _, f := range files {
		// SecureJoin keeps "../" and absolute paths inside the staging dir.
		dst, err := securejoin.SecureJoin(stage, f.Path)
		if err != nil {
			return fmt.Errorf("invalid file path %q: %w", f.Path, err)
		}
		if err := p.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f.Path, err)
		}
		if err := p.FS.WriteFile(dst, []byte(f.Content), 0644); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f.Path, err)
		}
	}

	name := p.containerName(id)
	if _, err := p.runCmd(ctx, "exec", name, "mkdir", "-p", root); err != nil {
		return err
	}
	_, err = p.runCmd(ctx, "cp", stage+"/.", name+":"+root)
	return err
}

var _ Provider = (*DockerProvider)(nil)
