// Package policy loads the remediation policy document and evaluates the
// namespace gate for detected incidents. The policy is loaded once per
// process lifetime and is immutable afterwards, so a single Gate may be
// shared across concurrent incident workers without locking.
package policy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Document is the on-disk policy structure. A missing or malformed
// memory_remediation section is a fatal startup error.
type Document struct {
	MemoryRemediation *MemoryRemediation `json:"memory_remediation"`
}

// MemoryRemediation scopes which namespaces may be remediated and whether
// remediation would run automatically. AutoRemediate is a single
// cluster-wide flag, not per-namespace.
type MemoryRemediation struct {
	AllowedNamespaces []string `json:"allowed_namespaces"`
	AutoRemediate     bool     `json:"auto_remediate"`
}

// Load reads and validates the policy document from r.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding policy document: %w", err)
	}
	if doc.MemoryRemediation == nil {
		return nil, fmt.Errorf("policy document is missing the memory_remediation section")
	}
	return &doc, nil
}

// LoadFromFile reads the policy document from the given path. Unlike the
// agent config there is no default: the agent must not start scanning
// without a valid policy.
func LoadFromFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening policy file %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading policy from %s: %w", path, err)
	}
	return doc, nil
}

// Gate evaluates policy decisions for incident namespaces. It is pure and
// safe for concurrent use.
type Gate struct {
	allowed       map[string]struct{}
	autoRemediate bool
}

// NewGate builds a Gate from a loaded policy document.
func NewGate(doc *Document) (*Gate, error) {
	if doc == nil || doc.MemoryRemediation == nil {
		return nil, fmt.Errorf("policy document must carry a memory_remediation section")
	}

	allowed := make(map[string]struct{}, len(doc.MemoryRemediation.AllowedNamespaces))
	for _, ns := range doc.MemoryRemediation.AllowedNamespaces {
		allowed[ns] = struct{}{}
	}

	return &Gate{
		allowed:       allowed,
		autoRemediate: doc.MemoryRemediation.AutoRemediate,
	}, nil
}

// Decide maps a namespace to a PolicyDecision. Allowed is namespace
// membership in the allowlist; AutoRemediate mirrors the cluster-wide flag.
// The decision is recomputed per incident and never cached. No remediation
// is ever triggered here: the caller computes permission only, and the
// reporter unconditionally states that remediation is disabled.
func (g *Gate) Decide(namespace string) model.PolicyDecision {
	_, ok := g.allowed[namespace]
	return model.PolicyDecision{
		Allowed:       ok,
		AutoRemediate: g.autoRemediate,
	}
}
