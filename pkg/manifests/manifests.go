package manifests

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// Default permission bits for saved files. The SCC helper script is the only
// executable output.
const (
	ManifestFileMode   os.FileMode = 0644
	ExecutableFileMode os.FileMode = 0755
)

// Manifest is one rendered output file.
type Manifest struct {
	// Name is the file name inside the output directory, e.g. "01-namespace.yaml".
	Name string
	// Data is the final rendered content.
	Data []byte
	// Mode is the permission bits to save the file with.
	Mode os.FileMode
}

// ManifestSet is the ordered collection of rendered files. The order is the
// order in which files are saved and in which an operator applies them; no
// file depends on another file's content.
type ManifestSet struct {
	manifests []Manifest
}

// Add appends a manifest. Names must be unique within the set.
func (s *ManifestSet) Add(m Manifest) error {
	for i := range s.manifests {
		if s.manifests[i].Name == m.Name {
			return fmt.Errorf("duplicate manifest %s", m.Name)
		}
	}
	if m.Mode == 0 {
		m.Mode = ManifestFileMode
	}
	s.manifests = append(s.manifests, m)
	return nil
}

// Names returns the file names in save order.
func (s *ManifestSet) Names() []string {
	names := make([]string, 0, len(s.manifests))
	for i := range s.manifests {
		names = append(names, s.manifests[i].Name)
	}
	return names
}

// Get returns the content of the named manifest.
func (s *ManifestSet) Get(name string) ([]byte, error) {
	for i := range s.manifests {
		if s.manifests[i].Name == name {
			return s.manifests[i].Data, nil
		}
	}
	return nil, fmt.Errorf("manifest %s not found", name)
}

// Save writes all manifests to the given directory, creating it if needed.
// Existing files are overwritten, nothing else in the directory is touched.
// The first write error aborts the save; a partially written directory is
// safe to regenerate because rendering is deterministic.
func (s *ManifestSet) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	for i := range s.manifests {
		m := &s.manifests[i]
		path := filepath.Join(dir, m.Name)
		if err := os.WriteFile(path, m.Data, m.Mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		klog.Infof("Wrote %s", path)
	}
	return nil
}
