package manifests

import (
	"bytes"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/kubernetes/scheme"
)

// SplitDocuments splits a multi-document YAML file into its documents.
// Comment-only and empty documents are dropped.
func SplitDocuments(data []byte) [][]byte {
	var docs [][]byte
	for _, doc := range bytes.Split(data, []byte("\n---\n")) {
		if isEmptyDocument(doc) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func isEmptyDocument(doc []byte) bool {
	for _, line := range bytes.Split(doc, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && !bytes.HasPrefix(line, []byte("#")) {
			return false
		}
	}
	return true
}

// KindOf returns the group-kind of a single YAML document, e.g.
// "Deployment.apps" or "ConfigMap".
func KindOf(doc []byte) (string, error) {
	_, gvk, err := scheme.Codecs.UniversalDecoder().Decode(doc, nil, &unstructured.Unstructured{})
	if err != nil {
		return "", err
	}
	return gvk.GroupKind().String(), nil
}

// VerifyKinds checks that the documents of a rendered YAML file decode to
// exactly the expected group-kinds, in order. It catches template or patch
// mistakes before anything is written to disk.
func VerifyKinds(data []byte, expected []string) error {
	docs := SplitDocuments(data)
	if len(docs) != len(expected) {
		return fmt.Errorf("expected %d documents, got %d", len(expected), len(docs))
	}
	for i, doc := range docs {
		kind, err := KindOf(doc)
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
		if kind != expected[i] {
			return fmt.Errorf("document %d: expected %s, got %s", i+1, expected[i], kind)
		}
	}
	return nil
}
