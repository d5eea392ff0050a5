package workflow

import (
	"fmt"
	"strings"

	"github.com/dgxrun/weave/pkg/envlookup"
)

// token is a single `${kind:arg}` reference found in a template string.
type token struct {
	kind string // "ctx" or "env"
	arg  string
	// span is the [start,end) byte range in the source string.
	start, end int
}

// scanTokens finds every `${ctx:path}` / `${env:NAME}` occurrence in s.
func scanTokens(s string) []token {
	var out []token
	i := 0
	for {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			break
		}
		start += i
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start + 1
		inner := s[start+2 : end-1]
		kind, arg, ok := strings.Cut(inner, ":")
		if ok && (kind == "ctx" || kind == "env") {
			out = append(out, token{kind: kind, arg: arg, start: start, end: end})
		}
		i = end
	}
	return out
}

// Interpolator resolves `${ctx:path}` and `${env:NAME}` tokens against
// a workflow context and an environment resolver.
type Interpolator struct {
	Context *Context
	Env     *envlookup.Resolver
}

// NewInterpolator returns an Interpolator bound to ctx and env.
func NewInterpolator(ctx *Context, env *envlookup.Resolver) *Interpolator {
	return &Interpolator{Context: ctx, Env: env}
}

// Interpolate substitutes every token in template with its resolved
// string form. A token whose target is missing resolves to an empty
// string rather than erroring, matching step handlers' tolerance for
// absent optional bindings; ResolveValue (used by type/setContext)
// is the strict counterpart that does error.
func (in *Interpolator) Interpolate(template string) string {
	tokens := scanTokens(template)
	if len(tokens) == 0 {
		return template
	}
	var b strings.Builder
	last := 0
	for _, t := range tokens {
		b.WriteString(template[last:t.start])
		b.WriteString(in.resolveToken(t))
		last = t.end
	}
	b.WriteString(template[last:])
	return b.String()
}

func (in *Interpolator) resolveToken(t token) string {
	switch t.kind {
	case "ctx":
		if in.Context == nil {
			return ""
		}
		v, ok := in.Context.Get(t.arg)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", v)
	case "env":
		if in.Env == nil {
			return ""
		}
		v, _ := in.Env.Lookup(t.arg)
		return v
	default:
		return ""
	}
}

// ResolveValue resolves a ValueSource per the shared type/setContext/
// capture contract: literal, then context, then environment, then
// template interpolation, then logical key (the caller supplies the
// resolved element's text separately for the logical-key case, since
// that requires the resolver, not this package).
func (in *Interpolator) ResolveValue(v ValueSource) (string, error) {
	if v.Literal != nil {
		return *v.Literal, nil
	}
	if v.ContextKey != "" {
		if in.Context == nil {
			return "", fmt.Errorf("context key %q: no context bound", v.ContextKey)
		}
		val, ok := in.Context.Get(v.ContextKey)
		if !ok {
			return "", fmt.Errorf("context key %q: not set", v.ContextKey)
		}
		return fmt.Sprintf("%v", val), nil
	}
	if v.EnvName != "" {
		if in.Env == nil {
			return "", fmt.Errorf("env name %q: no environment resolver bound", v.EnvName)
		}
		val, ok := in.Env.Lookup(v.EnvName)
		if !ok {
			return "", fmt.Errorf("env name %q: not set", v.EnvName)
		}
		return val, nil
	}
	if v.Template != "" {
		return in.Interpolate(v.Template), nil
	}
	return "", nil
}
