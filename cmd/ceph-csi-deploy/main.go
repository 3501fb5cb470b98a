package main

import (
	"context"
	"flag"
	"os"

	"github.com/openshift/ceph-csi-deploy/assets"
	"github.com/openshift/ceph-csi-deploy/pkg/config"
	"github.com/openshift/ceph-csi-deploy/pkg/generator"
	"github.com/openshift/ceph-csi-deploy/pkg/report"
	"k8s.io/klog/v2"
)

// ceph-csi-deploy renders the manifests for deploying the ceph-csi RBD driver
// against an external Ceph cluster. All configuration comes from environment
// variables; the cluster FSID and the client.openshift key are fetched over
// ssh from the Ceph host when not set.
func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx := context.Background()
	host := os.Getenv(config.EnvCephVMHost)
	if host == "" {
		host = config.DefaultCephVMHost
	}

	cfg, err := config.Resolve(ctx, os.Getenv, config.NewSSHResolver(host), config.TerminalPrompt)
	if err != nil {
		klog.Exitf("Failed to resolve configuration: %v", err)
	}

	gen := generator.NewAssetGenerator(cfg, assets.ReadFile)
	set, err := gen.Generate()
	if err != nil {
		klog.Exitf("Failed to generate manifests: %v", err)
	}
	if err := set.Save(cfg.OutputDir); err != nil {
		klog.Exitf("Failed to save manifests: %v", err)
	}

	report.Print(os.Stdout, cfg, set.Names())
}
