// Package guardrail synthesizes vendor-specific protection rules from run
// findings, keeping every rule traceable back to its source findings.
package guardrail

import (
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Vendor identifies a guardrail rule format.
type Vendor string

const (
	VendorHumanbound         Vendor = "humanbound"
	VendorAzureContentSafety Vendor = "azure-content-safety"
	VendorAWSBedrock         Vendor = "aws-bedrock"
	VendorOpenAIModeration   Vendor = "openai-moderation"
)

// IsValid returns true for a known vendor.
func (v Vendor) IsValid() bool {
	switch v {
	case VendorHumanbound, VendorAzureContentSafety, VendorAWSBedrock, VendorOpenAIModeration:
		return true
	default:
		return false
	}
}

// Vendors lists all supported rule formats.
func Vendors() []Vendor {
	return []Vendor{
		VendorHumanbound,
		VendorAzureContentSafety,
		VendorAWSBedrock,
		VendorOpenAIModeration,
	}
}

// RuleType distinguishes pattern-match rules from policy-block rules.
type RuleType string

const (
	RuleTypePattern RuleType = "pattern"
	RuleTypePolicy  RuleType = "policy"
)

// Rule is one vendor-specific protection rule. FindingIDs carry the
// provenance: every rule points at the finding(s) it was derived from.
type Rule struct {
	ID          string            `json:"id" yaml:"id"`
	Type        RuleType          `json:"type" yaml:"type"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Pattern     string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Action      string            `json:"action" yaml:"action"`
	Params      map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	FindingIDs  []types.ID        `json:"finding_ids" yaml:"finding_ids"`
}

// RuleSet is a versioned, exportable collection of rules for one vendor.
type RuleSet struct {
	Vendor      Vendor    `json:"vendor" yaml:"vendor"`
	Version     int       `json:"version" yaml:"version"`
	RunID       types.ID  `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Rules       []Rule    `json:"rules" yaml:"rules"`
}
