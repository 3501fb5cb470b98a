package generator

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openshift/ceph-csi-deploy/assets"
	"github.com/openshift/ceph-csi-deploy/pkg/config"
	"github.com/openshift/ceph-csi-deploy/pkg/manifests"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	sigyaml "sigs.k8s.io/yaml"
)

var expectedFileNames = []string{
	"01-namespace.yaml",
	"02-csi-config-map.yaml",
	"03-ceph-secret.yaml",
	"04-csi-provisioner-rbac.yaml",
	"05-csi-nodeplugin-rbac.yaml",
	"06-csidriver.yaml",
	"07-csi-rbdplugin-provisioner.yaml",
	"08-csi-rbdplugin.yaml",
	"09-storageclass.yaml",
	"10-storageclass-virtualization.yaml",
	"11-apply-scc.sh",
}

type staticResolver struct{}

func (staticResolver) ClusterFSID(ctx context.Context) (string, error) { return "", nil }
func (staticResolver) UserKey(ctx context.Context) (string, error)     { return "", nil }

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	if _, ok := env[config.EnvCephFSID]; !ok {
		env[config.EnvCephFSID] = "test-fsid"
	}
	if _, ok := env[config.EnvCephUserKey]; !ok {
		env[config.EnvCephUserKey] = "test-key"
	}
	cfg, err := config.Resolve(context.Background(), func(key string) string { return env[key] },
		staticResolver{}, func(string) (string, error) {
			t.Fatal("prompt must not be called")
			return "", nil
		})
	if err != nil {
		t.Fatalf("failed to resolve config: %v", err)
	}
	return cfg
}

func generate(t *testing.T, env map[string]string) *manifests.ManifestSet {
	t.Helper()
	gen := NewAssetGenerator(testConfig(t, env), assets.ReadFile)
	set, err := gen.Generate()
	if err != nil {
		t.Fatalf("failed to generate manifests: %v", err)
	}
	return set
}

func getManifest(t *testing.T, set *manifests.ManifestSet, name string) []byte {
	t.Helper()
	data, err := set.Get(name)
	if err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	return data
}

func decodeDeployment(t *testing.T, data []byte) *appsv1.Deployment {
	t.Helper()
	deployment := &appsv1.Deployment{}
	if err := sigyaml.Unmarshal(data, deployment); err != nil {
		t.Fatalf("failed to decode Deployment: %v", err)
	}
	return deployment
}

func decodeDaemonSet(t *testing.T, data []byte) *appsv1.DaemonSet {
	t.Helper()
	ds := &appsv1.DaemonSet{}
	if err := sigyaml.Unmarshal(data, ds); err != nil {
		t.Fatalf("failed to decode DaemonSet: %v", err)
	}
	return ds
}

func decodeStorageClass(t *testing.T, data []byte) *storagev1.StorageClass {
	t.Helper()
	sc := &storagev1.StorageClass{}
	if err := sigyaml.Unmarshal(data, sc); err != nil {
		t.Fatalf("failed to decode StorageClass: %v", err)
	}
	return sc
}

func containerNames(containers []corev1.Container) []string {
	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name)
	}
	return names
}

func TestGenerateFileNames(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "defaults", env: map[string]string{}},
		{name: "custom values", env: map[string]string{
			config.EnvCephMonIP:          "192.168.1.50",
			config.EnvPoolGeneral:        "mypool",
			config.EnvControllerReplicas: "5",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := generate(t, tc.env)
			if diff := cmp.Diff(expectedFileNames, set.Names()); diff != "" {
				t.Errorf("unexpected file names (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultScenario(t *testing.T) {
	set := generate(t, map[string]string{})

	namespace := getManifest(t, set, NamespaceFileName)
	if !bytes.Contains(namespace, []byte("name: openshift-storage")) {
		t.Errorf("namespace manifest should contain openshift-storage:\n%s", namespace)
	}

	configMaps := getManifest(t, set, ConfigMapsFileName)
	for _, want := range []string{`"clusterID": "test-fsid"`, `"10.X.X.X:6789"`, "mon_host = 10.X.X.X"} {
		if !bytes.Contains(configMaps, []byte(want)) {
			t.Errorf("config map manifest should contain %q:\n%s", want, configMaps)
		}
	}

	secret := getManifest(t, set, SecretFileName)
	for _, want := range []string{"userID: openshift", "userKey: test-key"} {
		if !bytes.Contains(secret, []byte(want)) {
			t.Errorf("secret manifest should contain %q:\n%s", want, secret)
		}
	}

	sc := decodeStorageClass(t, getManifest(t, set, StorageClassFileName))
	if sc.Name != "ceph-rbd" {
		t.Errorf("expected storage class ceph-rbd, got %q", sc.Name)
	}
	if sc.Annotations["storageclass.kubernetes.io/is-default-class"] != "true" {
		t.Errorf("ceph-rbd should be the default storage class, annotations: %v", sc.Annotations)
	}
	if sc.Parameters["pool"] != "openshift" {
		t.Errorf("expected pool openshift, got %q", sc.Parameters["pool"])
	}

	virtSC := decodeStorageClass(t, getManifest(t, set, VirtStorageClassFileName))
	if virtSC.Name != "ceph-rbd-virtualization" {
		t.Errorf("expected storage class ceph-rbd-virtualization, got %q", virtSC.Name)
	}
	if virtSC.Annotations["storageclass.kubernetes.io/is-default-class"] != "" {
		t.Errorf("virtualization class must not be the default class, annotations: %v", virtSC.Annotations)
	}
	if virtSC.Annotations["storageclass.kubevirt.io/is-default-virt-class"] != "true" {
		t.Errorf("virtualization class should be the default virt class, annotations: %v", virtSC.Annotations)
	}
	if virtSC.Parameters["pool"] != "openshift-vms" {
		t.Errorf("expected pool openshift-vms, got %q", virtSC.Parameters["pool"])
	}
}

func TestInterpolation(t *testing.T) {
	set := generate(t, map[string]string{
		config.EnvCephFSID:    "11111111-2222-3333-4444-555555555555",
		config.EnvCephMonIP:   "192.168.1.50",
		config.EnvCSIVersion:  "v3.14.0",
		config.EnvPoolGeneral: "mypool",
		config.EnvPoolVMs:     "myvms",
	})

	sc := decodeStorageClass(t, getManifest(t, set, StorageClassFileName))
	if sc.Parameters["pool"] != "mypool" {
		t.Errorf("expected pool mypool, got %q", sc.Parameters["pool"])
	}
	if sc.Parameters["clusterID"] != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("expected clusterID from FSID, got %q", sc.Parameters["clusterID"])
	}

	virtSC := decodeStorageClass(t, getManifest(t, set, VirtStorageClassFileName))
	if virtSC.Parameters["pool"] != "myvms" {
		t.Errorf("expected pool myvms, got %q", virtSC.Parameters["pool"])
	}

	configMaps := getManifest(t, set, ConfigMapsFileName)
	if !bytes.Contains(configMaps, []byte(`"192.168.1.50:6789"`)) {
		t.Errorf("config map should contain the monitor address:\n%s", configMaps)
	}

	controller := getManifest(t, set, ControllerFileName)
	if !bytes.Contains(controller, []byte("quay.io/cephcsi/cephcsi:v3.14.0")) {
		t.Errorf("controller should use the configured cephcsi version:\n%s", controller)
	}
	node := getManifest(t, set, NodeDaemonSetFileName)
	if !bytes.Contains(node, []byte("quay.io/cephcsi/cephcsi:v3.14.0")) {
		t.Errorf("node plugin should use the configured cephcsi version:\n%s", node)
	}

	// No placeholder may survive rendering.
	for _, name := range set.Names() {
		data := getManifest(t, set, name)
		if bytes.Contains(data, []byte("${")) {
			t.Errorf("%s contains an unexpanded placeholder:\n%s", name, data)
		}
	}
}

func TestControllerDeployment(t *testing.T) {
	set := generate(t, map[string]string{
		config.EnvControllerReplicas: "3",
		config.EnvProvisionerVersion: "v5.2.0",
	})
	deployment := decodeDeployment(t, getManifest(t, set, ControllerFileName))

	if deployment.Name != "csi-rbdplugin-provisioner" {
		t.Errorf("unexpected deployment name %q", deployment.Name)
	}
	if deployment.Spec.Replicas == nil || *deployment.Spec.Replicas != 3 {
		t.Errorf("expected 3 replicas, got %v", deployment.Spec.Replicas)
	}

	expectedContainers := []string{
		"csi-rbdplugin",
		"csi-provisioner",
		"csi-attacher",
		"csi-resizer",
		"csi-snapshotter",
		"liveness-prometheus",
	}
	names := containerNames(deployment.Spec.Template.Spec.Containers)
	if diff := cmp.Diff(expectedContainers, names); diff != "" {
		t.Errorf("unexpected containers (-want +got):\n%s", diff)
	}

	var provisioner *corev1.Container
	for i := range deployment.Spec.Template.Spec.Containers {
		if deployment.Spec.Template.Spec.Containers[i].Name == "csi-provisioner" {
			provisioner = &deployment.Spec.Template.Spec.Containers[i]
		}
	}
	if provisioner == nil {
		t.Fatal("csi-provisioner container not found")
	}
	if provisioner.Image != "registry.k8s.io/sig-storage/csi-provisioner:v5.2.0" {
		t.Errorf("unexpected provisioner image %q", provisioner.Image)
	}
	// Extra arguments are appended after the template's own arguments.
	args := strings.Join(provisioner.Args, " ")
	if !strings.Contains(args, "--default-fstype=ext4") || !strings.Contains(args, "--extra-create-metadata=true") {
		t.Errorf("expected extra provisioner arguments, got %v", provisioner.Args)
	}

	// Sidecars share the provisioner socket volume defined by the base template.
	volumes := map[string]bool{}
	for _, v := range deployment.Spec.Template.Spec.Volumes {
		volumes[v.Name] = true
	}
	for _, want := range []string{"socket-dir", "ceph-config", "ceph-csi-config", "ceph-csi-encryption-kms-config", "keys-tmp-dir"} {
		if !volumes[want] {
			t.Errorf("expected volume %s, volumes: %v", want, volumes)
		}
	}
}

func TestNodeDaemonSet(t *testing.T) {
	set := generate(t, map[string]string{
		config.EnvRegistrarVersion: "v2.14.0",
	})
	ds := decodeDaemonSet(t, getManifest(t, set, NodeDaemonSetFileName))

	if ds.Name != "csi-rbdplugin" {
		t.Errorf("unexpected daemonset name %q", ds.Name)
	}
	expectedContainers := []string{
		"csi-rbdplugin",
		"driver-registrar",
		"liveness-prometheus",
	}
	names := containerNames(ds.Spec.Template.Spec.Containers)
	if diff := cmp.Diff(expectedContainers, names); diff != "" {
		t.Errorf("unexpected containers (-want +got):\n%s", diff)
	}

	plugin := ds.Spec.Template.Spec.Containers[0]
	if plugin.SecurityContext == nil || plugin.SecurityContext.Privileged == nil || !*plugin.SecurityContext.Privileged {
		t.Error("node plugin container must be privileged")
	}
	registrar := ds.Spec.Template.Spec.Containers[1]
	if registrar.Image != "registry.k8s.io/sig-storage/csi-node-driver-registrar:v2.14.0" {
		t.Errorf("unexpected registrar image %q", registrar.Image)
	}
	if !ds.Spec.Template.Spec.HostNetwork {
		t.Error("node plugin must use host networking")
	}
}

func TestGenerateIdempotent(t *testing.T) {
	env := map[string]string{
		config.EnvCephMonIP:  "192.168.1.50",
		config.EnvCSIVersion: "v3.14.0",
	}
	first := generate(t, env)
	second := generate(t, env)
	for _, name := range first.Names() {
		a := getManifest(t, first, name)
		b := getManifest(t, second, name)
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between two runs with identical configuration", name)
		}
	}
}

func TestApplySCCScript(t *testing.T) {
	set := generate(t, map[string]string{})
	script := getManifest(t, set, ApplySCCScriptFileName)
	if !bytes.HasPrefix(script, []byte("#!/bin/sh")) {
		t.Errorf("script should start with a shebang:\n%s", script)
	}
	for _, want := range []string{
		"oc adm policy add-scc-to-user privileged -z rbd-csi-provisioner -n openshift-storage",
		"oc adm policy add-scc-to-user privileged -z rbd-csi-nodeplugin -n openshift-storage",
	} {
		if !bytes.Contains(script, []byte(want)) {
			t.Errorf("script should contain %q:\n%s", want, script)
		}
	}
}

func TestRBACIsStatic(t *testing.T) {
	// The RBAC files carry no interpolation; custom configuration must not
	// change a single byte of the policy documents.
	defaults := generate(t, map[string]string{})
	custom := generate(t, map[string]string{
		config.EnvCephFSID:    "another-fsid",
		config.EnvCephUserKey: "another-key",
		config.EnvPoolGeneral: "mypool",
	})
	for _, name := range []string{ProvisionerRBACFileName, NodePluginRBACFileName, NamespaceFileName, CSIDriverFileName} {
		if !bytes.Equal(getManifest(t, defaults, name), getManifest(t, custom, name)) {
			t.Errorf("%s should not depend on configuration values", name)
		}
	}
}
