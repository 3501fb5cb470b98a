package config

import (
	"context"
	"fmt"
	"strconv"

	"k8s.io/klog/v2"
)

// Environment variables understood by the generator. An unset or empty
// variable falls back to its default, matching shell ${VAR:-default}
// expansion of the original deployment scripts.
const (
	EnvCephVMHost         = "CEPH_VM_HOST"
	EnvCephMonIP          = "CEPH_MON_IP"
	EnvCephFSID           = "CEPH_FSID"
	EnvCephUserKey        = "CEPH_USER_KEY"
	EnvCSIVersion         = "CSI_VERSION"
	EnvOutputDir          = "OUTPUT_DIR"
	EnvPoolGeneral        = "POOL_GENERAL"
	EnvPoolVMs            = "POOL_VMS"
	EnvProvisionerVersion = "PROVISIONER_VERSION"
	EnvSnapshotterVersion = "SNAPSHOTTER_VERSION"
	EnvAttacherVersion    = "ATTACHER_VERSION"
	EnvResizerVersion     = "RESIZER_VERSION"
	EnvRegistrarVersion   = "REGISTRAR_VERSION"
	EnvControllerReplicas = "CONTROLLER_REPLICAS"
)

const (
	DefaultCephVMHost         = "ceph-standalone"
	DefaultCephMonIP          = "10.X.X.X"
	DefaultCSIVersion         = "v3.13.0"
	DefaultOutputDir          = "./ceph-csi-manifests"
	DefaultPoolGeneral        = "openshift"
	DefaultPoolVMs            = "openshift-vms"
	DefaultProvisionerVersion = "v5.1.0"
	DefaultSnapshotterVersion = "v8.2.0"
	DefaultAttacherVersion    = "v4.8.1"
	DefaultResizerVersion     = "v1.13.1"
	DefaultRegistrarVersion   = "v2.13.0"
	DefaultControllerReplicas = 2
)

// GetenvFunc reads one environment variable. Plumbed through explicitly so
// tests can run with a synthetic environment instead of mutating the real one.
type GetenvFunc func(key string) string

// PromptFunc asks the operator for a single line of input. It must return an
// error instead of blocking when no interactive terminal is available.
type PromptFunc func(prompt string) (string, error)

// Config holds every value the manifest renderer interpolates. It is built
// once by Resolve and never mutated afterwards; rendering code must not read
// the process environment on its own.
type Config struct {
	CephVMHost  string
	CephMonIP   string
	CephFSID    string
	CephUserKey string

	CSIVersion         string
	ProvisionerVersion string
	SnapshotterVersion string
	AttacherVersion    string
	ResizerVersion     string
	RegistrarVersion   string

	OutputDir   string
	PoolGeneral string
	PoolVMs     string

	ControllerReplicas int
}

// Resolve builds a Config from the environment, completing the two Ceph
// secrets through the given SecretResolver when they are not set. Each
// missing secret is resolved independently: one remote lookup, then one
// interactive prompt on lookup failure. When both secrets come from the
// environment the resolver is never invoked.
func Resolve(ctx context.Context, getenv GetenvFunc, secrets SecretResolver, prompt PromptFunc) (*Config, error) {
	cfg := &Config{
		CephVMHost:         envOrDefault(getenv, EnvCephVMHost, DefaultCephVMHost),
		CephMonIP:          envOrDefault(getenv, EnvCephMonIP, DefaultCephMonIP),
		CephFSID:           getenv(EnvCephFSID),
		CephUserKey:        getenv(EnvCephUserKey),
		CSIVersion:         envOrDefault(getenv, EnvCSIVersion, DefaultCSIVersion),
		ProvisionerVersion: envOrDefault(getenv, EnvProvisionerVersion, DefaultProvisionerVersion),
		SnapshotterVersion: envOrDefault(getenv, EnvSnapshotterVersion, DefaultSnapshotterVersion),
		AttacherVersion:    envOrDefault(getenv, EnvAttacherVersion, DefaultAttacherVersion),
		ResizerVersion:     envOrDefault(getenv, EnvResizerVersion, DefaultResizerVersion),
		RegistrarVersion:   envOrDefault(getenv, EnvRegistrarVersion, DefaultRegistrarVersion),
		OutputDir:          envOrDefault(getenv, EnvOutputDir, DefaultOutputDir),
		PoolGeneral:        envOrDefault(getenv, EnvPoolGeneral, DefaultPoolGeneral),
		PoolVMs:            envOrDefault(getenv, EnvPoolVMs, DefaultPoolVMs),
	}

	replicas := envOrDefault(getenv, EnvControllerReplicas, strconv.Itoa(DefaultControllerReplicas))
	n, err := strconv.Atoi(replicas)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvControllerReplicas, replicas)
	}
	cfg.ControllerReplicas = n

	if cfg.CephFSID != "" && cfg.CephUserKey != "" {
		klog.V(2).Infof("Both %s and %s set, skipping remote lookup", EnvCephFSID, EnvCephUserKey)
		return cfg, nil
	}

	if cfg.CephFSID == "" {
		cfg.CephFSID, err = resolveSecret(ctx, "cluster FSID", secrets.ClusterFSID, prompt)
		if err != nil {
			return nil, err
		}
	}
	if cfg.CephUserKey == "" {
		cfg.CephUserKey, err = resolveSecret(ctx, "client.openshift key", secrets.UserKey, prompt)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// resolveSecret tries the remote lookup once and falls back to a single
// interactive prompt. The fallback is always logged; a secret is never
// silently defaulted.
func resolveSecret(ctx context.Context, name string, lookup func(context.Context) (string, error), prompt PromptFunc) (string, error) {
	value, lookupErr := lookup(ctx)
	if lookupErr == nil {
		klog.Infof("Fetched %s from the Ceph host", name)
		return value, nil
	}
	klog.Warningf("Remote lookup of %s failed: %v", name, lookupErr)

	value, promptErr := prompt(fmt.Sprintf("Enter %s manually: ", name))
	if promptErr != nil {
		return "", fmt.Errorf("cannot resolve %s: remote lookup failed (%v) and manual entry unavailable: %w", name, lookupErr, promptErr)
	}
	if value == "" {
		return "", fmt.Errorf("cannot resolve %s: empty manual entry", name)
	}
	return value, nil
}

func envOrDefault(getenv GetenvFunc, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// Replacements returns the placeholder/value pairs applied to every template.
func (c *Config) Replacements() []string {
	return []string{
		"${CEPH_FSID}", c.CephFSID,
		"${CEPH_MON_IP}", c.CephMonIP,
		"${CEPH_USER_KEY}", c.CephUserKey,
		"${CSI_VERSION}", c.CSIVersion,
		"${PROVISIONER_VERSION}", c.ProvisionerVersion,
		"${SNAPSHOTTER_VERSION}", c.SnapshotterVersion,
		"${ATTACHER_VERSION}", c.AttacherVersion,
		"${RESIZER_VERSION}", c.ResizerVersion,
		"${REGISTRAR_VERSION}", c.RegistrarVersion,
		"${POOL_GENERAL}", c.PoolGeneral,
		"${POOL_VMS}", c.PoolVMs,
		"${CONTROLLER_REPLICAS}", strconv.Itoa(c.ControllerReplicas),
	}
}
