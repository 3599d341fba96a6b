package pyvm

import (
	"strings"

	"go.starlark.net/starlark"
)

// newOEUtilsModule exposes the oe.utils helpers spec §4.H/§4.I name.
func newOEUtilsModule(ds *dataStore) *module {
	return newModule("oe.utils", starlark.StringDict{
		"conditional":         starlark.NewBuiltin("conditional", ds.oeConditional),
		"any_distro_features": starlark.NewBuiltin("any_distro_features", ds.oeAnyDistroFeatures),
		"all_distro_features": starlark.NewBuiltin("all_distro_features", ds.oeAllDistroFeatures),
	})
}

func (d *dataStore) oeConditional(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var varName, checkValue string
	var trueV, falseV starlark.Value = starlark.String(""), starlark.String("")
	var dArg starlark.Value
	if err := starlark.UnpackArgs("conditional", args, kwargs,
		"variable", &varName, "checkvalue", &checkValue, "truevalue?", &trueV, "falsevalue?", &falseV, "d?", &dArg); err != nil {
		return nil, err
	}
	if d.vars[varName] == checkValue {
		return trueV, nil
	}
	return falseV, nil
}

func (d *dataStore) oeAnyDistroFeatures(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return d.distroFeatures(args, kwargs, "any_distro_features", true)
}

func (d *dataStore) oeAllDistroFeatures(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return d.distroFeatures(args, kwargs, "all_distro_features", false)
}

func (d *dataStore) distroFeatures(args starlark.Tuple, kwargs []starlark.Tuple, name string, any bool) (starlark.Value, error) {
	var dArg starlark.Value
	var features string
	var trueV, falseV starlark.Value = starlark.String("1"), starlark.String("")
	if err := starlark.UnpackArgs(name, args, kwargs,
		"d", &dArg, "features", &features, "truevalue?", &trueV, "falsevalue?", &falseV); err != nil {
		return nil, err
	}
	have := map[string]bool{}
	for _, t := range strings.Fields(d.vars["DISTRO_FEATURES"]) {
		have[t] = true
	}
	wanted := strings.Fields(features)
	matched := 0
	for _, f := range wanted {
		if have[f] {
			matched++
		}
	}
	ok := matched > 0
	if !any {
		ok = matched == len(wanted)
	}
	if ok {
		return trueV, nil
	}
	return falseV, nil
}
