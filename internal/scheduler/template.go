package scheduler

import "strings"

// RenderTemplate substitutes {{name}} placeholders with bound variables.
// Unbound placeholders are left as-is so a missing binding is visible in
// the delivered text rather than silently blanked.
func RenderTemplate(content string, vars map[string]string) string {
	if len(vars) == 0 {
		return content
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}
