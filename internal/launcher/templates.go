package launcher

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// renderEnv expands template expressions in entry environment values, so
// catalog entries can carry settings like {{ env "HOME" }}/data without
// baking in machine-specific paths. Values without template markers pass
// through untouched.
func renderEnv(env map[string]string) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(env))
	for k, v := range env {
		if !strings.Contains(v, "{{") {
			out[k] = v
			continue
		}

		tmpl, err := template.New(k).Funcs(sprig.TxtFuncMap()).Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse template in env %s: %w", k, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, nil); err != nil {
			return nil, fmt.Errorf("render template in env %s: %w", k, err)
		}
		out[k] = sb.String()
	}
	return out, nil
}
