package guardrail

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// minSignatureKeywords is the smallest keyword set considered a reliable
// pattern. Findings below it yield zero rules.
const minSignatureKeywords = 2

// Synthesizer maps findings onto vendor rule sets.
type Synthesizer struct {
	logger *slog.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithLogger sets the synthesizer logger.
func WithLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a rule synthesizer.
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the rule set for one vendor from a run's findings.
// A finding without a reliable signature yields zero rules; that is logged,
// never fatal.
func (s *Synthesizer) Synthesize(runID types.ID, vendor Vendor, findings []*finding.Finding) (*RuleSet, error) {
	if !vendor.IsValid() {
		return nil, types.NewError(types.EXPORT_FAILED, "unknown guardrail vendor: "+string(vendor))
	}

	set := &RuleSet{
		Vendor:      vendor,
		Version:     1,
		RunID:       runID,
		GeneratedAt: time.Now(),
		Rules:       []Rule{},
	}

	for i, f := range findings {
		keywords := signatureKeywords(f.Prompt)
		if len(keywords) < minSignatureKeywords {
			s.logger.Info("no reliable signature for finding, skipping rule",
				"finding_id", f.ID.String(),
				"category", f.Category)
			continue
		}

		set.Rules = append(set.Rules, buildRule(vendor, i, f, keywords))
	}

	return set, nil
}

// buildRule renders one finding into the vendor's rule shape.
func buildRule(vendor Vendor, index int, f *finding.Finding, keywords []string) Rule {
	pattern := keywordPattern(keywords)
	name := fmt.Sprintf("%s-%03d", strings.ReplaceAll(f.Category, "/", "-"), index+1)

	rule := Rule{
		ID:          fmt.Sprintf("%s/%s", vendor, name),
		Name:        name,
		Description: f.Rationale,
		FindingIDs:  []types.ID{f.ID},
	}

	switch vendor {
	case VendorHumanbound:
		rule.Type = RuleTypePattern
		rule.Pattern = pattern
		rule.Action = "block"
		rule.Params = map[string]string{
			"severity": f.Severity.String(),
			"category": f.Category,
		}
	case VendorAzureContentSafety:
		rule.Type = RuleTypePattern
		rule.Pattern = pattern
		rule.Action = "blocklist"
		rule.Params = map[string]string{
			"blocklist_name": "humanbound-" + strings.ReplaceAll(f.Category, "/", "-"),
			"is_regex":       "true",
		}
	case VendorAWSBedrock:
		rule.Type = RuleTypePolicy
		rule.Action = "denied_topic"
		rule.Params = map[string]string{
			"topic_name":     name,
			"definition":     topicDefinition(f),
			"input_strength": bedrockStrength(f.Severity),
		}
	case VendorOpenAIModeration:
		rule.Type = RuleTypePolicy
		rule.Pattern = pattern
		rule.Action = "flag"
		rule.Params = map[string]string{
			"threshold": fmt.Sprintf("%.2f", moderationThreshold(f.Severity)),
		}
	}

	return rule
}

// signatureKeywords extracts the distinctive tokens of a finding prompt.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var signatureStopwords = map[string]bool{
	"the": true, "and": true, "you": true, "your": true, "please": true,
	"now": true, "tell": true, "what": true, "all": true, "are": true,
	"for": true, "with": true, "this": true, "that": true, "can": true,
}

func signatureKeywords(prompt string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(prompt), -1)

	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokens {
		if len(tok) <= 3 || signatureStopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	sort.Strings(out)

	return out
}

// keywordPattern renders keywords as a case-insensitive alternation.
func keywordPattern(keywords []string) string {
	escaped := make([]string, len(keywords))
	for i, k := range keywords {
		escaped[i] = regexp.QuoteMeta(k)
	}
	return "(?i)(" + strings.Join(escaped, "|") + ")"
}

func topicDefinition(f *finding.Finding) string {
	if f.Rationale != "" {
		return f.Rationale
	}
	return "Requests matching the " + f.Category + " attack pattern."
}

func bedrockStrength(sev types.Severity) string {
	if sev.AtLeast(types.SeverityHigh) {
		return "HIGH"
	}
	if sev == types.SeverityMedium {
		return "MEDIUM"
	}
	return "LOW"
}

func moderationThreshold(sev types.Severity) float64 {
	// Stricter thresholds for higher-severity findings.
	switch sev {
	case types.SeverityCritical:
		return 0.2
	case types.SeverityHigh:
		return 0.35
	case types.SeverityMedium:
		return 0.5
	default:
		return 0.7
	}
}
