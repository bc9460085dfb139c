package template

import (
	"embed"
	"fmt"

	"github.com/Tpanarchist/omen/vocab"
)

//go:embed templates/*.yaml
var templateFS embed.FS

var templateFiles = map[vocab.TemplateID]string{
	vocab.TemplateAGrounding:     "templates/a_grounding.yaml",
	vocab.TemplateBVerification:  "templates/b_verification.yaml",
	vocab.TemplateCReadOnlyAct:   "templates/c_readonly_act.yaml",
	vocab.TemplateDWriteAct:      "templates/d_write_act.yaml",
	vocab.TemplateEEscalation:    "templates/e_escalation.yaml",
	vocab.TemplateFDegradedTools: "templates/f_degraded_tools.yaml",
	vocab.TemplateGCompileToCode: "templates/g_compile_to_code.yaml",
	vocab.TemplateHFullStack:     "templates/h_full_stack.yaml",
}

// Registry holds the parsed, validated Definition for every canonical
// template, loaded once from the embedded YAML fixtures.
type Registry struct {
	definitions map[vocab.TemplateID]Definition
}

// DefaultRegistry loads and validates all eight canonical templates
// (A-H) from their embedded YAML sources. It panics on a malformed
// fixture, since these ship with the binary and a broken one is a
// build-time defect, not a runtime condition callers should handle.
func DefaultRegistry() *Registry {
	r := &Registry{definitions: make(map[vocab.TemplateID]Definition, len(templateFiles))}
	for id, path := range templateFiles {
		data, err := templateFS.ReadFile(path)
		if err != nil {
			panic(fmt.Sprintf("template: embedded fixture %s missing: %v", path, err))
		}
		def, err := LoadFromYAML(data)
		if err != nil {
			panic(fmt.Sprintf("template: fixture %s invalid: %v", path, err))
		}
		if def.ID != id {
			panic(fmt.Sprintf("template: fixture %s declares id %q, expected %q", path, def.ID, id))
		}
		if _, err := def.Graph(); err != nil {
			panic(fmt.Sprintf("template: fixture %s has an invalid topology: %v", path, err))
		}
		r.definitions[id] = def
	}
	return r
}

// Definition returns the parsed definition for id.
func (r *Registry) Definition(id vocab.TemplateID) (Definition, bool) {
	d, ok := r.definitions[id]
	return d, ok
}
