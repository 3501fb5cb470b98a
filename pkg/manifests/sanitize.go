package manifests

import (
	sigyaml "sigs.k8s.io/yaml"
)

// Sanitize reorders fields of a single YAML document in a canonical order, so
// two renderings can be compared easily with `diff`.
func Sanitize(src []byte) ([]byte, error) {
	var obj interface{}
	if err := sigyaml.Unmarshal(src, &obj); err != nil {
		return nil, err
	}
	return sigyaml.Marshal(obj)
}
