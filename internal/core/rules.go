package core

// 规则编号（稳定标识，下游工具据此过滤/放行）
const (
	RuleReadFailure      = "SS-000"
	RuleDirectConstruct  = "SS-001"
	RuleShadowedField    = "SS-002"
	RuleMissingSelfClone = "SS-005"
	RuleAliasHandle      = "SS-006"
	RuleHelperHandle     = "SS-007"
	RuleMethodChain      = "SS-008"
	RuleUnsafeRelaunder  = "SS-009"
)

// RuleInfo 规则元数据
type RuleInfo struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

var ruleCatalogue = []RuleInfo{
	{
		Code:        RuleReadFailure,
		Name:        "file-not-analyzed",
		Severity:    SeverityError,
		Description: "The file could not be read and was not analyzed.",
	},
	{
		Code:        RuleDirectConstruct,
		Name:        "direct-handle-construction",
		Severity:    SeverityError,
		Description: "A closure-factory function constructs a new shared handle instead of cloning the one owned by self.",
	},
	{
		Code:        RuleShadowedField,
		Name:        "local-shadows-self-field",
		Severity:    SeverityWarning,
		Description: "A freshly constructed local handle has the same name as a self field used in the same function; closures will observe the local copy.",
	},
	{
		Code:        RuleMissingSelfClone,
		Name:        "missing-clone-from-self",
		Severity:    SeverityWarning,
		Description: "A closure captures a locally constructed handle; clone the field from self before building the closure.",
	},
	{
		Code:        RuleAliasHandle,
		Name:        "alias-wraps-handle",
		Severity:    SeverityWarning,
		Description: "A type alias resolves to a shared handle type (Info at declaration, Warning when constructed in a closure factory).",
	},
	{
		Code:        RuleHelperHandle,
		Name:        "helper-returns-handle",
		Severity:    SeverityWarning,
		Description: "A function returns a shared handle type (Info at declaration, Warning when called in a closure factory).",
	},
	{
		Code:        RuleMethodChain,
		Name:        "method-chain-construction",
		Severity:    SeverityWarning,
		Description: "A method chain produces a handle that is not a clone of a self field. `.clone()` of a self field, or of a local cloned from one, is the accepted idiom and is never reported.",
	},
	{
		Code:        RuleUnsafeRelaunder,
		Name:        "unsafe-raw-relaunder",
		Severity:    SeverityError,
		Description: "A shared handle is reconstructed from a raw pointer, hiding where it came from.",
	},
}

// Rules 返回规则目录副本
func Rules() []RuleInfo {
	out := make([]RuleInfo, len(ruleCatalogue))
	copy(out, ruleCatalogue)
	return out
}

// LookupRule 按编号查找规则
func LookupRule(code string) (RuleInfo, bool) {
	for _, r := range ruleCatalogue {
		if r.Code == code {
			return r, true
		}
	}
	return RuleInfo{}, false
}
