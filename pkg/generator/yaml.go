package generator

import (
	"bytes"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"sigs.k8s.io/kustomize/kyaml/yaml"
	"sigs.k8s.io/kustomize/kyaml/yaml/merge2"
	sigyaml "sigs.k8s.io/yaml"
)

// Asset is one YAML (or script) template loaded from the embedded assets,
// with all placeholder replacements already applied.
type Asset struct {
	data []byte
}

// NewAssetFromTemplate loads a template and applies the replacements.
// It panics when the asset does not exist - the assets are embedded in the
// binary, so a missing one is a programming error, not a runtime condition.
func NewAssetFromTemplate(reader AssetReader, assetName string, replacements []string) *Asset {
	assetBytes, err := reader(assetName)
	if err != nil {
		panic(err)
	}
	return &Asset{data: replaceBytes(assetBytes, replacements)}
}

// Bytes returns the current content of the asset.
func (a *Asset) Bytes() []byte {
	return a.data
}

// ApplyStrategicMergePatch merges the patch into the asset. List elements of
// the patch, such as containers, are appended after the existing ones.
func (a *Asset) ApplyStrategicMergePatch(patchAssetName string, patch *Asset) error {
	opts := yaml.MergeOptions{ListIncreaseDirection: yaml.MergeOptionsListAppend}
	merged, err := merge2.MergeStrings(string(patch.data), string(a.data), false, opts)
	if err != nil {
		return fmt.Errorf("failed to apply patch %s: %w", patchAssetName, err)
	}
	a.data = []byte(merged)
	return nil
}

// ApplyJSONPatch applies an RFC 6902 patch, provided as YAML, to the asset.
func (a *Asset) ApplyJSONPatch(patchAssetName string, patch *Asset) error {
	patchJSON, err := sigyaml.YAMLToJSON(patch.data)
	if err != nil {
		return fmt.Errorf("failed to parse patch %s: %w", patchAssetName, err)
	}
	sourceJSON, err := sigyaml.YAMLToJSON(a.data)
	if err != nil {
		return err
	}
	jpatch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return fmt.Errorf("failed to decode patch %s: %w", patchAssetName, err)
	}
	sourceJSON, err = jpatch.Apply(sourceJSON)
	if err != nil {
		return fmt.Errorf("failed to apply patch %s: %w", patchAssetName, err)
	}
	finalYAML, err := sigyaml.JSONToYAML(sourceJSON)
	if err != nil {
		return err
	}
	a.data = finalYAML
	return nil
}

// Apply all replacements to the source bytes.
func replaceBytes(src []byte, replacements []string) []byte {
	for i := 0; i+1 < len(replacements); i += 2 {
		src = bytes.ReplaceAll(src, []byte(replacements[i]), []byte(replacements[i+1]))
	}
	return src
}
