package domain

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// MessageTemplate is a named, per-channel message template.
type MessageTemplate struct {
	ID              uuid.UUID
	Code            string
	Name            string
	Channel         Channel
	SubjectTemplate string
	BodyTemplate    string
	Variables       []string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// variablePattern matches template variables like {{variable_name}}.
var variablePattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// ExtractVariables extracts the variable names referenced by body (and,
// optionally, subject), in first-seen order, deduplicated.
func ExtractVariables(texts ...string) []string {
	seen := make(map[string]bool)
	variables := make([]string, 0)
	for _, text := range texts {
		for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
			name := match[1]
			if !seen[name] {
				seen[name] = true
				variables = append(variables, name)
			}
		}
	}
	return variables
}

// RenderString substitutes {{name}} tokens in content with vars. Matching is
// a single left-to-right pass over the original content — a substituted
// value is never re-scanned for further tokens. Variables absent from vars
// are left as the literal token.
func RenderString(content string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(content, func(token string) string {
		name := variablePattern.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}

// Render renders the template's subject and body against vars.
func (t *MessageTemplate) Render(vars map[string]string) (subject, body string) {
	return RenderString(t.SubjectTemplate, vars), RenderString(t.BodyTemplate, vars)
}

// Validate returns the names in t.Variables that are absent from vars.
func (t *MessageTemplate) Validate(vars map[string]string) []string {
	missing := make([]string, 0)
	for _, v := range t.Variables {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

// TemplateRepository persists MessageTemplate rows.
type TemplateRepository interface {
	GetActiveByCodeAndChannel(ctx context.Context, code string, channel Channel) (*MessageTemplate, error)
}
