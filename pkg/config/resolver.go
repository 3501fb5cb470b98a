package config

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

const (
	fsidCommand    = "ceph fsid"
	userKeyCommand = "ceph auth get-key client.openshift"

	defaultSSHTimeout = 15 * time.Second
)

// SecretResolver fetches the two values that cannot be defaulted: the Ceph
// cluster FSID and the key of the client.openshift identity.
type SecretResolver interface {
	ClusterFSID(ctx context.Context) (string, error)
	UserKey(ctx context.Context) (string, error)
}

// SSHResolver runs read-only ceph commands on the Ceph host through the local
// ssh binary. Using the binary instead of an in-process SSH client keeps the
// operator's ~/.ssh/config, agent and known_hosts in effect. BatchMode makes
// sure ssh itself never prompts; the only interactive path is the explicit
// fallback in Resolve.
type SSHResolver struct {
	Host    string
	Timeout time.Duration
}

// NewSSHResolver returns a resolver for the given host with the default
// per-command timeout.
func NewSSHResolver(host string) *SSHResolver {
	return &SSHResolver{
		Host:    host,
		Timeout: defaultSSHTimeout,
	}
}

func (r *SSHResolver) ClusterFSID(ctx context.Context) (string, error) {
	return r.run(ctx, fsidCommand)
}

func (r *SSHResolver) UserKey(ctx context.Context) (string, error) {
	return r.run(ctx, userKeyCommand)
}

// run executes a single remote command and returns its trimmed single-line
// output. There is no retry; the caller decides what to do on failure.
func (r *SSHResolver) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	klog.V(2).Infof("Running %q on %s", command, r.Host)
	cmd := exec.CommandContext(ctx, "ssh",
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=10",
		r.Host, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ssh %s %q timed out after %s", r.Host, command, r.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ssh %s %q: %w: %s", r.Host, command, err, msg)
		}
		return "", fmt.Errorf("ssh %s %q: %w", r.Host, command, err)
	}

	value := strings.TrimSpace(stdout.String())
	if value == "" {
		return "", fmt.Errorf("ssh %s %q returned no output", r.Host, command)
	}
	return value, nil
}
