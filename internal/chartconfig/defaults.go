package chartconfig

import "github.com/dunamismax/chartflow/internal/domain"

func renderDefaults() map[string]any {
	return map[string]any{
		"responsive":          false,
		"maintainAspectRatio": false,
		"animation":           false,
		"plugins": map[string]any{
			"legend": map[string]any{
				"display": true,
			},
		},
	}
}

// ApplyRenderDefaults returns a copy of spec with server-side rendering
// defaults merged under the caller's options. Caller values win; nested
// objects such as plugins.legend are merged key by key.
func ApplyRenderDefaults(spec domain.ChartSpec) domain.ChartSpec {
	out := spec
	out.Options = mergeOptions(renderDefaults(), spec.Options)
	return out
}

func mergeOptions(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}

	for k, v := range overrides {
		base, baseIsMap := out[k].(map[string]any)
		if baseIsMap {
			if v == nil {
				continue
			}
			if over, ok := v.(map[string]any); ok {
				out[k] = mergeOptions(base, over)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
