// Package dxcdocker runs dxc inside a container image. The scratch directory
// is bind-mounted into the container as its working directory.
package dxcdocker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"

	"dxdrive/internal/backend"
	"dxdrive/internal/backend/dxcli"
)

const (
	// DefaultImage ships a Linux build of dxc on its PATH.
	DefaultImage = "ghcr.io/microsoft/directxshadercompiler:latest"
	workDir      = "/work"
	// memoryLimit caps the container at 1 GiB.
	memoryLimit = 1 << 30
)

// API is the subset of the Docker client the runner uses.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Runner executes dxc in a fresh container per invocation.
type Runner struct {
	api   API
	image string
	// Binary is the compiler inside the image.
	Binary string
	log    logrus.FieldLogger

	mu    sync.Mutex
	ready bool
}

var (
	_ dxcli.Runner          = (*Runner)(nil)
	_ backend.Fingerprinter = (*Runner)(nil)
	_ API                   = (*client.Client)(nil)
)

// NewClient connects to the Docker daemon configured by the environment.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return cli, nil
}

// NewRunner creates a runner using api and image (DefaultImage when empty).
func NewRunner(api API, imageName string, log logrus.FieldLogger) *Runner {
	if imageName == "" {
		imageName = DefaultImage
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{api: api, image: imageName, Binary: "dxc", log: log}
}

// New returns a dxcli backend running dxc in imageName. Scratch directories
// must live on the OS filesystem for the bind mount to see them.
func New(api API, imageName string, opts dxcli.Options) *dxcli.Backend {
	return dxcli.New(NewRunner(api, imageName, opts.Logger), opts)
}

func (r *Runner) Name() string { return "dxc-docker" }

// Fingerprint names the image and the compiler inside it, so results from
// different compiler builds never share a cache key.
func (r *Runner) Fingerprint() string {
	return r.Name() + "|" + r.image + "|" + r.Binary
}

// Available pings the daemon and makes sure the image is present, pulling it
// on first use. Only success is remembered; a failed check is retried by the
// next caller.
func (r *Runner) Available(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}
	if err := r.prepare(ctx); err != nil {
		return err
	}
	r.ready = true
	return nil
}

func (r *Runner) prepare(ctx context.Context) error {
	if _, err := r.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	if _, err := r.api.ImageInspect(ctx, r.image); err == nil {
		return nil
	}
	r.log.WithField("image", r.image).Info("pulling compiler image")
	reader, err := r.api.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", r.image, err)
	}
	defer reader.Close()
	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull %s: %w", r.image, err)
	}
	return nil
}

// Run starts a container with dir mounted at /work and waits for it.
func (r *Runner) Run(ctx context.Context, dir string, args []string) (dxcli.RunResult, error) {
	if err := r.Available(ctx); err != nil {
		return dxcli.RunResult{}, err
	}
	resp, err := r.api.ContainerCreate(ctx, &container.Config{
		Image:           r.image,
		Cmd:             append([]string{r.Binary}, args...),
		WorkingDir:      workDir,
		NetworkDisabled: true,
	}, &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dir,
			Target: workDir,
		}},
		Resources: container.Resources{
			Memory: memoryLimit,
		},
	}, nil, nil, "")
	if err != nil {
		return dxcli.RunResult{}, fmt.Errorf("create container: %w", err)
	}
	log := r.log.WithField("container", resp.ID)
	defer func() {
		if rerr := r.api.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true}); rerr != nil {
			log.WithError(rerr).Warn("removing container")
		}
	}()

	if err := r.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return dxcli.RunResult{}, fmt.Errorf("start container: %w", err)
	}
	waitCh, errCh := r.api.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exit int64
	select {
	case err := <-errCh:
		return dxcli.RunResult{}, fmt.Errorf("wait container: %w", err)
	case st := <-waitCh:
		if st.Error != nil && st.Error.Message != "" {
			return dxcli.RunResult{}, fmt.Errorf("wait container: %s", st.Error.Message)
		}
		exit = st.StatusCode
	}

	var stderr bytes.Buffer
	logs, err := r.api.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err == nil {
		_, _ = stdcopy.StdCopy(&stderr, &stderr, logs)
		logs.Close()
	} else {
		log.WithError(err).Debug("reading container logs")
	}
	log.WithField("exit", exit).Debug("compiler container finished")
	return dxcli.RunResult{ExitCode: int(exit), Stderr: stderr.Bytes()}, nil
}
