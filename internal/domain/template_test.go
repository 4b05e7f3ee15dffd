package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		wantVars []string
	}{
		{"single variable", []string{"Hello {{name}}!"}, []string{"name"}},
		{"multiple variables", []string{"Hello {{name}}, your code is {{code}}"}, []string{"name", "code"}},
		{"duplicate variables", []string{"{{name}} said hello to {{name}}"}, []string{"name"}},
		{"no variables", []string{"Hello World!"}, []string{}},
		{"underscore in variable name", []string{"Hello {{first_name}} {{last_name}}"}, []string{"first_name", "last_name"}},
		{"variables across subject and body", []string{"Re: {{topic}}", "Body {{name}}"}, []string{"topic", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := ExtractVariables(tt.texts...)
			assert.Len(t, vars, len(tt.wantVars))
			for _, v := range tt.wantVars {
				assert.Contains(t, vars, v)
			}
		})
	}
}

func TestRenderString(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]string
		want    string
	}{
		{"render single variable", "Hello {{name}}!", map[string]string{"name": "John"}, "Hello John!"},
		{
			"render multiple variables",
			"Hello {{name}}, your code is {{code}}",
			map[string]string{"name": "John", "code": "123456"},
			"Hello John, your code is 123456",
		},
		{
			"missing variable left as literal token",
			"Hello {{name}}, {{greeting}}",
			map[string]string{"name": "John"},
			"Hello John, {{greeting}}",
		},
		{
			"substituted value is not re-scanned for tokens",
			"{{a}}",
			map[string]string{"a": "{{b}}", "b": "should not appear"},
			"{{b}}",
		},
		{"no variables", "Hello World!", map[string]string{}, "Hello World!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderString(tt.content, tt.vars))
		})
	}
}

func TestMessageTemplate_Validate(t *testing.T) {
	tmpl := &MessageTemplate{
		Variables: ExtractVariables("Hello {{name}}, your code is {{code}}"),
	}

	missing := tmpl.Validate(map[string]string{"name": "John"})
	assert.Equal(t, []string{"code"}, missing)

	missing = tmpl.Validate(map[string]string{"name": "John", "code": "1"})
	assert.Empty(t, missing)
}

func TestMessageTemplate_Render(t *testing.T) {
	tmpl := &MessageTemplate{
		SubjectTemplate: "Welcome {{name}}",
		BodyTemplate:    "Hi {{name}}, enjoy {{product}}",
	}

	subject, body := tmpl.Render(map[string]string{"name": "Ada", "product": "notify-dispatch"})
	assert.Equal(t, "Welcome Ada", subject)
	assert.Equal(t, "Hi Ada, enjoy notify-dispatch", body)
}
