package pyvm

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// dataStore is the `d` value exposed to a Starlark-hosted anonymous
// Python block, mirroring BitBake's own datastore object closely
// enough for the methods spec §4.J names.
type dataStore struct {
	vars  map[string]string
	flags map[string]map[string]string
	dirty map[string]bool
}

func newDataStore(initial map[string]string) *dataStore {
	vars := make(map[string]string, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &dataStore{vars: vars, flags: map[string]map[string]string{}, dirty: map[string]bool{}}
}

func (d *dataStore) dirtyWrites() map[string]string {
	out := make(map[string]string, len(d.dirty))
	for name := range d.dirty {
		out[name] = d.vars[name]
	}
	return out
}

func (d *dataStore) String() string        { return "<bb.data.DataSmart>" }
func (d *dataStore) Type() string          { return "DataSmart" }
func (d *dataStore) Freeze()               {}
func (d *dataStore) Truth() starlark.Bool  { return true }
func (d *dataStore) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: DataSmart") }

func (d *dataStore) Attr(name string) (starlark.Value, error) {
	switch name {
	case "getVar":
		return starlark.NewBuiltin("getVar", d.builtinGetVar), nil
	case "setVar":
		return starlark.NewBuiltin("setVar", d.builtinSetVar), nil
	case "appendVar":
		return starlark.NewBuiltin("appendVar", d.builtinAppendVar), nil
	case "prependVar":
		return starlark.NewBuiltin("prependVar", d.builtinPrependVar), nil
	case "delVar":
		return starlark.NewBuiltin("delVar", d.builtinDelVar), nil
	case "getVarFlag":
		return starlark.NewBuiltin("getVarFlag", d.builtinGetVarFlag), nil
	case "setVarFlag":
		return starlark.NewBuiltin("setVarFlag", d.builtinSetVarFlag), nil
	case "expand":
		return starlark.NewBuiltin("expand", d.builtinExpand), nil
	}
	return nil, nil
}

func (d *dataStore) AttrNames() []string {
	names := []string{"getVar", "setVar", "appendVar", "prependVar", "delVar", "getVarFlag", "setVarFlag", "expand"}
	sort.Strings(names)
	return names
}

var (
	_ starlark.Value    = (*dataStore)(nil)
	_ starlark.HasAttrs = (*dataStore)(nil)
)

func (d *dataStore) builtinGetVar(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	expand := false
	if err := starlark.UnpackArgs("getVar", args, kwargs, "name", &name, "expand?", &expand); err != nil {
		return nil, err
	}
	v := d.vars[name]
	if expand {
		v = d.expandText(v)
	}
	return starlark.String(v), nil
}

func (d *dataStore) builtinSetVar(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, value string
	if err := starlark.UnpackArgs("setVar", args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	d.vars[name] = value
	d.dirty[name] = true
	return starlark.None, nil
}

func (d *dataStore) builtinAppendVar(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, value string
	if err := starlark.UnpackArgs("appendVar", args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	d.vars[name] = joinNonEmpty(d.vars[name], value)
	d.dirty[name] = true
	return starlark.None, nil
}

func (d *dataStore) builtinPrependVar(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, value string
	if err := starlark.UnpackArgs("prependVar", args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	d.vars[name] = joinNonEmpty(value, d.vars[name])
	d.dirty[name] = true
	return starlark.None, nil
}

func (d *dataStore) builtinDelVar(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs("delVar", args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	delete(d.vars, name)
	d.dirty[name] = true
	return starlark.None, nil
}

func (d *dataStore) builtinGetVarFlag(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, flag string
	if err := starlark.UnpackArgs("getVarFlag", args, kwargs, "name", &name, "flag", &flag); err != nil {
		return nil, err
	}
	return starlark.String(d.flags[name][flag]), nil
}

func (d *dataStore) builtinSetVarFlag(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, flag, value string
	if err := starlark.UnpackArgs("setVarFlag", args, kwargs, "name", &name, "flag", &flag, "value", &value); err != nil {
		return nil, err
	}
	if d.flags[name] == nil {
		d.flags[name] = map[string]string{}
	}
	d.flags[name][flag] = value
	return starlark.None, nil
}

func (d *dataStore) builtinExpand(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs("expand", args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	return starlark.String(d.expandText(text)), nil
}

// expandText does a single-pass, non-recursive ${VAR} substitution
// against the current snapshot; full §4.D expansion semantics live in
// package eval and are applied by the Extractor before/after a block
// runs, so this only needs to cover references a script builds itself.
func (d *dataStore) expandText(text string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "${") {
			end := strings.Index(text[i:], "}")
			if end < 0 {
				b.WriteString(text[i:])
				break
			}
			name := text[i+2 : i+end]
			b.WriteString(d.vars[name])
			i += end + 1
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
