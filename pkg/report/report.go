package report

import (
	"fmt"
	"io"

	"github.com/openshift/ceph-csi-deploy/pkg/config"
)

// Print writes the post-generation summary: the configuration that was
// rendered into the manifests and the commands the operator runs next.
// It is program output, not logging, and goes to the given writer as-is.
func Print(w io.Writer, cfg *config.Config, fileNames []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "ceph-csi manifests generated")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Ceph host:            %s\n", cfg.CephVMHost)
	fmt.Fprintf(w, "  Monitor address:      %s:6789\n", cfg.CephMonIP)
	fmt.Fprintf(w, "  Cluster FSID:         %s\n", cfg.CephFSID)
	fmt.Fprintf(w, "  client.openshift key: %s\n", maskKey(cfg.CephUserKey))
	fmt.Fprintf(w, "  ceph-csi version:     %s\n", cfg.CSIVersion)
	fmt.Fprintf(w, "  Pools:                %s, %s\n", cfg.PoolGeneral, cfg.PoolVMs)
	fmt.Fprintf(w, "  Controller replicas:  %d\n", cfg.ControllerReplicas)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files in %s:\n", cfg.OutputDir)
	for _, name := range fileNames {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintf(w, "  1. Grant the SCCs:      sh %s/11-apply-scc.sh\n", cfg.OutputDir)
	fmt.Fprintf(w, "  2. Apply the manifests: oc apply -f %s/\n", cfg.OutputDir)
	fmt.Fprintln(w, "  3. Verify the driver:   oc get pods -n openshift-storage")
	fmt.Fprintln(w, "                          oc get sc ceph-rbd ceph-rbd-virtualization")
}

// maskKey keeps enough of the key to recognize it in `ceph auth list` output
// without echoing the whole credential.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
