package pyvm

import (
	"strings"

	"go.starlark.net/starlark"
)

// newBBUtilsModule exposes the subset of bb.utils spec §4.I/§4.J name
// as Starlark builtins, closed over the running block's datastore so
// `contains`/`filter`/`which` can read the live variable snapshot.
func newBBUtilsModule(ds *dataStore) *module {
	return newModule("bb.utils", starlark.StringDict{
		"contains": starlark.NewBuiltin("contains", ds.bbContains),
		"filter":   starlark.NewBuiltin("filter", ds.bbFilter),
		"vercmp":   starlark.NewBuiltin("vercmp", bbVercmp),
		"which":    starlark.NewBuiltin("which", ds.bbWhich),
	})
}

func (d *dataStore) bbContains(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var varName, item string
	var trueV, falseV starlark.Value = starlark.String(""), starlark.String("")
	var dArg starlark.Value
	if err := starlark.UnpackArgs("contains", args, kwargs,
		"variable", &varName, "checkvalue", &item, "truevalue?", &trueV, "falsevalue?", &falseV, "d?", &dArg); err != nil {
		return nil, err
	}
	if containsToken(d.vars[varName], item) {
		return trueV, nil
	}
	return falseV, nil
}

func (d *dataStore) bbFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var varName, items string
	var dArg starlark.Value
	if err := starlark.UnpackArgs("filter", args, kwargs, "variable", &varName, "checkvalues", &items, "d?", &dArg); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, t := range strings.Fields(d.vars[varName]) {
		set[t] = true
	}
	var kept []string
	for _, t := range strings.Fields(items) {
		if set[t] {
			kept = append(kept, t)
		}
	}
	return starlark.String(strings.Join(kept, " ")), nil
}

func bbVercmp(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c string
	if err := starlark.UnpackArgs("vercmp", args, kwargs, "a", &a, "b", &c); err != nil {
		return nil, err
	}
	return starlark.MakeInt(debianVercmp(a, c)), nil
}

func (d *dataStore) bbWhich(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pathVar, item string
	if err := starlark.UnpackArgs("which", args, kwargs, "path", &pathVar, "item", &item); err != nil {
		return nil, err
	}
	receiver := d.vars[pathVar]
	var toks []string
	if strings.Contains(receiver, ":") {
		toks = strings.Split(receiver, ":")
	} else {
		toks = strings.Fields(receiver)
	}
	for _, t := range toks {
		if t == item {
			return starlark.String(item), nil
		}
	}
	return starlark.String(""), nil
}

func containsToken(haystack, item string) bool {
	for _, t := range strings.Fields(haystack) {
		if t == item {
			return true
		}
	}
	return false
}

// debianVercmp mirrors package pyexec's Hybrid-tier implementation of
// spec §4.I's Debian-style component comparison; duplicated rather than
// imported so this optional adapter stays decoupled from the core
// interpreter (see DESIGN.md).
func debianVercmp(a, c string) int {
	ai, bi := 0, 0
	for ai < len(a) || bi < len(c) {
		aStart := ai
		for ai < len(a) && !isDigitByte(a[ai]) {
			ai++
		}
		bStart := bi
		for bi < len(c) && !isDigitByte(c[bi]) {
			bi++
		}
		if as, bs := a[aStart:ai], c[bStart:bi]; as != bs {
			if as < bs {
				return -1
			}
			return 1
		}
		aStart = ai
		for ai < len(a) && isDigitByte(a[ai]) {
			ai++
		}
		bStart = bi
		for bi < len(c) && isDigitByte(c[bi]) {
			bi++
		}
		an := strings.TrimLeft(a[aStart:ai], "0")
		bn := strings.TrimLeft(c[bStart:bi], "0")
		if len(an) != len(bn) {
			if len(an) < len(bn) {
				return -1
			}
			return 1
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }
