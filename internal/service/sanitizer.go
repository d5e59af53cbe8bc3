package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup that must never be persisted.
type Sanitizer interface {
	// Text removes every tag; used for titles, excerpts, tag names and comments.
	Text(input string) string
	// Markdown removes unsafe HTML embedded in markdown source.
	Markdown(input string) string
}

// PolicySanitizer 基于 bluemonday 的默认实现。
type PolicySanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// bluemonday 会转义文本节点，这里只还原不能构成标签的实体（引用、& 与引号）。
// &lt; 保持转义，实体编码的标签不会被还原成真正的标签。
var safeEntityRestorer = strings.NewReplacer(
	"&gt;", ">",
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&quot;", `"`,
)

// NewPolicySanitizer builds the sanitizer used by the services.
func NewPolicySanitizer() *PolicySanitizer {
	return &PolicySanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
}

func (p *PolicySanitizer) Text(input string) string {
	return strings.TrimSpace(safeEntityRestorer.Replace(p.strict.Sanitize(input)))
}

func (p *PolicySanitizer) Markdown(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	return safeEntityRestorer.Replace(p.ugc.Sanitize(input))
}
