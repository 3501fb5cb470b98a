package generator

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/openshift/ceph-csi-deploy/pkg/config"
	"github.com/openshift/ceph-csi-deploy/pkg/manifests"
	"k8s.io/klog/v2"
)

// Output file names. The numeric prefixes give operators a natural apply
// order; no file depends on another file's content.
const (
	NamespaceFileName        = "01-namespace.yaml"
	ConfigMapsFileName       = "02-csi-config-map.yaml"
	SecretFileName           = "03-ceph-secret.yaml"
	ProvisionerRBACFileName  = "04-csi-provisioner-rbac.yaml"
	NodePluginRBACFileName   = "05-csi-nodeplugin-rbac.yaml"
	CSIDriverFileName        = "06-csidriver.yaml"
	ControllerFileName       = "07-csi-rbdplugin-provisioner.yaml"
	NodeDaemonSetFileName    = "08-csi-rbdplugin.yaml"
	StorageClassFileName     = "09-storageclass.yaml"
	VirtStorageClassFileName = "10-storageclass-virtualization.yaml"
	ApplySCCScriptFileName   = "11-apply-scc.sh"
)

const (
	namespaceKind          = "Namespace"
	configMapKind          = "ConfigMap"
	secretKind             = "Secret"
	serviceAccountKind     = "ServiceAccount"
	roleKind               = "Role.rbac.authorization.k8s.io"
	roleBindingKind        = "RoleBinding.rbac.authorization.k8s.io"
	clusterRoleKind        = "ClusterRole.rbac.authorization.k8s.io"
	clusterRoleBindingKind = "ClusterRoleBinding.rbac.authorization.k8s.io"
	csiDriverKind          = "CSIDriver.storage.k8s.io"
	deploymentKind         = "Deployment.apps"
	daemonSetKind          = "DaemonSet.apps"
	storageClassKind       = "StorageClass.storage.k8s.io"
)

// manifestSpec describes how one output file is rendered: the base template,
// optional patches (".patch" suffix selects an RFC 6902 patch, anything else
// is a strategic merge patch) and the expected kinds of the result.
type manifestSpec struct {
	fileName        string
	assetName       string
	patchAssetNames []string
	expectedKinds   []string
	executable      bool
}

// catalogue is the fixed, ordered list of rendered files. The controller
// Deployment and node DaemonSet additionally get their sidecars injected.
var catalogue = []manifestSpec{
	{
		fileName:      NamespaceFileName,
		assetName:     "base/namespace.yaml",
		expectedKinds: []string{namespaceKind},
	},
	{
		fileName:      ConfigMapsFileName,
		assetName:     "base/csi-config-map.yaml",
		expectedKinds: []string{configMapKind, configMapKind, configMapKind},
	},
	{
		fileName:      SecretFileName,
		assetName:     "base/secret.yaml",
		expectedKinds: []string{secretKind},
	},
	{
		fileName:  ProvisionerRBACFileName,
		assetName: "base/provisioner-rbac.yaml",
		expectedKinds: []string{
			serviceAccountKind, clusterRoleKind, clusterRoleBindingKind, roleKind, roleBindingKind,
		},
	},
	{
		fileName:  NodePluginRBACFileName,
		assetName: "base/nodeplugin-rbac.yaml",
		expectedKinds: []string{
			serviceAccountKind, clusterRoleKind, clusterRoleBindingKind,
		},
	},
	{
		fileName:      CSIDriverFileName,
		assetName:     "base/csidriver.yaml",
		expectedKinds: []string{csiDriverKind},
	},
	{
		fileName:      ControllerFileName,
		assetName:     "base/controller.yaml",
		expectedKinds: []string{deploymentKind},
	},
	{
		fileName:      NodeDaemonSetFileName,
		assetName:     "base/node.yaml",
		expectedKinds: []string{daemonSetKind},
	},
	{
		fileName:        StorageClassFileName,
		assetName:       "base/storageclass.yaml",
		patchAssetNames: []string{"patches/storageclass_set_default.yaml.patch"},
		expectedKinds:   []string{storageClassKind},
	},
	{
		fileName:        VirtStorageClassFileName,
		assetName:       "base/storageclass-virtualization.yaml",
		patchAssetNames: []string{"patches/storageclass_set_virt_default.yaml.patch"},
		expectedKinds:   []string{storageClassKind},
	},
	{
		fileName:   ApplySCCScriptFileName,
		assetName:  "base/apply-scc.sh",
		executable: true,
	},
}

// AssetGenerator renders the ceph-csi deployment manifests from the embedded
// templates and a resolved configuration.
type AssetGenerator struct {
	reader             AssetReader
	replacements       []string
	controllerSidecars []SidecarConfig
	nodeSidecars       []SidecarConfig
}

// NewAssetGenerator creates a generator with the default sidecar sets.
func NewAssetGenerator(cfg *config.Config, reader AssetReader) *AssetGenerator {
	return &AssetGenerator{
		reader:             reader,
		replacements:       cfg.Replacements(),
		controllerSidecars: DefaultControllerSidecars,
		nodeSidecars:       DefaultNodeSidecars,
	}
}

// Generate renders all eleven files. Nothing is written to the filesystem;
// the result is returned as a ManifestSet to be saved by the caller.
func (gen *AssetGenerator) Generate() (*manifests.ManifestSet, error) {
	set := &manifests.ManifestSet{}
	for _, spec := range catalogue {
		data, err := gen.render(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", spec.fileName, err)
		}
		m := manifests.Manifest{Name: spec.fileName, Data: data}
		if spec.executable {
			m.Mode = manifests.ExecutableFileMode
		}
		if err := set.Add(m); err != nil {
			return nil, err
		}
		klog.V(4).Infof("Rendered %s from %s", spec.fileName, spec.assetName)
	}
	return set, nil
}

func (gen *AssetGenerator) render(spec manifestSpec) ([]byte, error) {
	asset := gen.mustReadAsset(spec.assetName, nil)

	var sidecars []SidecarConfig
	switch spec.fileName {
	case ControllerFileName:
		sidecars = gen.controllerSidecars
	case NodeDaemonSetFileName:
		sidecars = gen.nodeSidecars
	}
	for _, sidecar := range sidecars {
		if err := gen.addSidecar(asset, sidecar); err != nil {
			return nil, err
		}
	}

	for _, patchName := range spec.patchAssetNames {
		if err := gen.applyAssetPatch(asset, patchName, nil); err != nil {
			return nil, err
		}
	}

	if len(spec.expectedKinds) > 0 {
		if err := manifests.VerifyKinds(asset.Bytes(), spec.expectedKinds); err != nil {
			return nil, err
		}
	}
	return asset.Bytes(), nil
}

// addSidecar merges the sidecar template into the workload, appending its
// container after the existing ones, and then adds its extra arguments.
func (gen *AssetGenerator) addSidecar(source *Asset, sidecar SidecarConfig) error {
	patch := gen.mustReadAsset(sidecar.TemplateAssetName, sidecar.ExtraReplacements)
	if err := gen.addArguments(patch, sidecar.ExtraArguments); err != nil {
		return err
	}
	return source.ApplyStrategicMergePatch(sidecar.TemplateAssetName, patch)
}

// addArguments appends the arguments to the first container of the sidecar
// template using a JSON patch per argument.
func (gen *AssetGenerator) addArguments(sidecar *Asset, extraArguments []string) error {
	if len(extraArguments) == 0 {
		return nil
	}
	// JSON patch cannot add multiple list elements in one operation, so the
	// single-argument patch asset is repeated per argument.
	patchYAML := bytes.NewBuffer(nil)
	for _, arg := range extraArguments {
		argPatch := gen.mustReadAsset("patches/add_cmdline_arg.yaml.patch", []string{"${EXTRA_ARGUMENTS}", arg})
		patchYAML.Write(argPatch.Bytes())
	}
	return sidecar.ApplyJSONPatch("patches/add_cmdline_arg.yaml.patch", &Asset{data: patchYAML.Bytes()})
}

// applyAssetPatch applies a strategic merge or JSON patch from the assets.
func (gen *AssetGenerator) applyAssetPatch(source *Asset, patchAssetName string, extraReplacements []string) error {
	patch := gen.mustReadAsset(patchAssetName, extraReplacements)
	if isJSONPatch(patchAssetName) {
		return source.ApplyJSONPatch(patchAssetName, patch)
	}
	return source.ApplyStrategicMergePatch(patchAssetName, patch)
}

func isJSONPatch(assetName string) bool {
	return strings.HasSuffix(assetName, ".patch")
}

func (gen *AssetGenerator) mustReadAsset(assetName string, extraReplacements []string) *Asset {
	return NewAssetFromTemplate(gen.reader, assetName, append(gen.replacements, extraReplacements...))
}
