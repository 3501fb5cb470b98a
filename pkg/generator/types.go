package generator

// AssetReader reads one embedded template by name.
type AssetReader func(assetName string) ([]byte, error)

// SidecarConfig describes a single CSI sidecar container to inject into the
// controller Deployment or the node DaemonSet.
type SidecarConfig struct {
	// Name of the template asset with the strategic merge patch adding the
	// sidecar container. The template carries no kind, so the same sidecar
	// can be merged into a Deployment and a DaemonSet.
	TemplateAssetName string
	// Extra arguments appended to the sidecar container, such as timeouts.
	ExtraArguments []string
	// Extra placeholder/value pairs applied when reading the template, on
	// top of the configuration-wide replacements.
	ExtraReplacements []string
}

// WithExtraArguments returns a copy of the sidecar with the given arguments
// appended to its container.
func (s SidecarConfig) WithExtraArguments(args ...string) SidecarConfig {
	s.ExtraArguments = append(append([]string{}, s.ExtraArguments...), args...)
	return s
}

// WithExtraReplacements returns a copy of the sidecar with extra
// placeholder/value pairs.
func (s SidecarConfig) WithExtraReplacements(pairs ...string) SidecarConfig {
	s.ExtraReplacements = append(append([]string{}, s.ExtraReplacements...), pairs...)
	return s
}

var (
	// DefaultProvisioner is the external-provisioner sidecar.
	DefaultProvisioner = SidecarConfig{
		TemplateAssetName: "common/sidecars/provisioner.yaml",
	}
	// DefaultAttacher is the external-attacher sidecar.
	DefaultAttacher = SidecarConfig{
		TemplateAssetName: "common/sidecars/attacher.yaml",
	}
	// DefaultResizer is the external-resizer sidecar.
	DefaultResizer = SidecarConfig{
		TemplateAssetName: "common/sidecars/resizer.yaml",
	}
	// DefaultSnapshotter is the external-snapshotter sidecar.
	DefaultSnapshotter = SidecarConfig{
		TemplateAssetName: "common/sidecars/snapshotter.yaml",
	}
	// DefaultLivenessProbe is the cephcsi liveness sidecar. The socket address
	// and metrics port differ per workload, so they come in as replacements.
	DefaultLivenessProbe = SidecarConfig{
		TemplateAssetName: "common/sidecars/livenessprobe.yaml",
	}
	// DefaultNodeDriverRegistrar is the kubelet plugin registration sidecar.
	DefaultNodeDriverRegistrar = SidecarConfig{
		TemplateAssetName: "common/sidecars/node_driver_registrar.yaml",
	}
)

// DefaultControllerSidecars are the sidecars injected into the controller
// Deployment, in container order after the cephcsi controller container.
var DefaultControllerSidecars = []SidecarConfig{
	DefaultProvisioner.WithExtraArguments(
		"--default-fstype=ext4",
		"--extra-create-metadata=true",
	),
	DefaultAttacher,
	DefaultResizer,
	DefaultSnapshotter.WithExtraArguments(
		"--extra-create-metadata=true",
	),
	DefaultLivenessProbe.WithExtraReplacements(
		"${LIVENESS_PROBE_PORT}", "8680",
		"${LIVENESS_CSI_ADDRESS}", "unix:///csi/csi-provisioner.sock",
	),
}

// DefaultNodeSidecars are the sidecars injected into the node DaemonSet.
var DefaultNodeSidecars = []SidecarConfig{
	DefaultNodeDriverRegistrar,
	DefaultLivenessProbe.WithExtraReplacements(
		"${LIVENESS_PROBE_PORT}", "8681",
		"${LIVENESS_CSI_ADDRESS}", "unix:///csi/csi.sock",
	),
}
