// Package eval implements the BitBake variable evaluator (spec §4.D):
// assignment-operator semantics, override-qualified folding, and
// recursive ${VAR} expansion over an ordered variable snapshot.
package eval

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/syntax"
)

const defaultMaxExpansionDepth = 10

// varRecord is the evaluator's per-variable bookkeeping: the live folded
// value plus enough state to implement the operator priority rules
// (`=` beats `?=` beats `??=`, and a built-in default loses to anything).
type varRecord struct {
	value            string
	set              bool // some assignment (incl. a satisfied ?=/??=) has applied
	hasUnconditional bool // =, :=, +=, =+, .=, or =. has applied
	isDefault        bool // value came only from SeedDefault, not yet overridden
}

// overrideEntry is one stored override-qualified assignment (spec §4.D:
// "stored separately and applied at expansion time").
type overrideEntry struct {
	suffix   []string
	operator syntax.AssignOp
	value    string
	seq      int
}

// Evaluator holds one recipe's (or build context's) ordered variable
// snapshot plus the active OVERRIDES list used to fold override-qualified
// assignments in at FoldOverrides time.
type Evaluator struct {
	vars            map[string]*varRecord
	order           []string
	overrideEntries map[string][]overrideEntry
	overrideSeq     int
	overrides       []string
	maxDepth        int
	diags           *diagnostic.Bag
}

// New creates an Evaluator with the given active OVERRIDES (ordered,
// rightmost-wins per spec §3) and expansion depth bound. maxDepth <= 0
// uses the spec's documented default of 10.
func New(overrides []string, maxDepth int, diags *diagnostic.Bag) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = defaultMaxExpansionDepth
	}
	return &Evaluator{
		vars:            map[string]*varRecord{},
		overrideEntries: map[string][]overrideEntry{},
		overrides:       overrides,
		maxDepth:        maxDepth,
		diags:           diags,
	}
}

// Overrides returns the active OVERRIDES list.
func (e *Evaluator) Overrides() []string { return e.overrides }

// SetOverrides replaces the active OVERRIDES list; callers must follow
// with FoldOverrides to re-fold stored override entries.
func (e *Evaluator) SetOverrides(overrides []string) { e.overrides = overrides }

func (e *Evaluator) record(name string) *varRecord {
	rec, ok := e.vars[name]
	if !ok {
		rec = &varRecord{}
		e.vars[name] = rec
		e.order = append(e.order, name)
	}
	return rec
}

// Names returns every variable name seen so far, in first-assignment order.
func (e *Evaluator) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// SeedDefault sets name's initial value if, and only if, nothing has been
// assigned to it yet. It never marks the variable as "set" for the
// purposes of operator priority, so any real assignment — including a
// later `?=`/`??=` — still wins over a built-in default (spec §4.D).
func (e *Evaluator) SeedDefault(name, value string) {
	rec := e.record(name)
	if rec.set {
		return
	}
	rec.value = value
	rec.isDefault = true
}

// SeedFilenameDefaults derives PN/PV/BPN/BP and common directory variable
// defaults from a recipe's file name (spec §4.D).
func (e *Evaluator) SeedFilenameDefaults(path string) {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = stripAppendSuffix(base)
	pn, pv := splitPnPv(base)

	e.SeedDefault("PN", pn)
	e.SeedDefault("PV", pv)
	e.SeedDefault("BPN", pn)
	e.SeedDefault("BP", pn+"-"+pv)
	e.SeedDefault("WORKDIR", "${TMPDIR}/work/${PN}-${PV}")
	e.SeedDefault("S", "${WORKDIR}/${BP}")
	e.SeedDefault("B", "${S}")
	e.SeedDefault("D", "${WORKDIR}/image")
	e.SeedDefault("STAGING_DIR_HOST", "${WORKDIR}/recipe-sysroot")
	e.SeedDefault("STAGING_DIR_TARGET", "${WORKDIR}/recipe-sysroot")
	e.SeedDefault("STAGING_BINDIR_NATIVE", "${WORKDIR}/recipe-sysroot-native/usr/bin")
}

// stripAppendSuffix returns base unchanged: no "-r0" or wildcard version
// marker is removed here, since .bbappend matching itself lives in the
// layer package.
func stripAppendSuffix(base string) string {
	return base
}

// splitPnPv splits a recipe base name "pkg_ver" into (pn, pv). Recipes
// with no version component ("pkg") return pv = "".
func splitPnPv(base string) (string, string) {
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 {
		return base, ""
	}
	return base[:idx], base[idx+1:]
}

// Assign applies one statement-level assignment (spec §4.D's operator
// table for unsuffixed names; override-suffixed names are stashed for
// FoldOverrides).
func (e *Evaluator) Assign(data syntax.AssignmentData) {
	if len(data.OverrideSuffix) > 0 {
		e.assignOverride(data)
		return
	}
	e.assignBase(data.Name, data.Operator, data.Value)
}

func (e *Evaluator) assignBase(name string, op syntax.AssignOp, value string) {
	rec := e.record(name)
	rec.isDefault = false

	switch op {
	case syntax.OpAssign:
		rec.value = value
		rec.set = true
		rec.hasUnconditional = true
	case syntax.OpImmediate:
		rec.value = e.Expand(value)
		rec.set = true
		rec.hasUnconditional = true
	case syntax.OpSoftDefault:
		if !rec.hasUnconditional {
			rec.value = value
			rec.set = true
		}
	case syntax.OpWeakDefault:
		if !rec.set {
			rec.value = value
			rec.set = true
		}
	case syntax.OpAppend:
		rec.value = joinSpace(rec.value, value)
		rec.set = true
		rec.hasUnconditional = true
	case syntax.OpPrepend:
		rec.value = joinSpace(value, rec.value)
		rec.set = true
		rec.hasUnconditional = true
	case syntax.OpAppendNoSpace:
		rec.value = rec.value + value
		rec.set = true
		rec.hasUnconditional = true
	case syntax.OpPrependNoSpace:
		rec.value = value + rec.value
		rec.set = true
		rec.hasUnconditional = true
	}
}

func (e *Evaluator) assignOverride(data syntax.AssignmentData) {
	e.record(data.Name) // ensure it is tracked/ordered even with no base assignment
	e.overrideSeq++
	e.overrideEntries[data.Name] = append(e.overrideEntries[data.Name], overrideEntry{
		suffix:   data.OverrideSuffix,
		operator: data.Operator,
		value:    data.Value,
		seq:      e.overrideSeq,
	})
}

// GetValue returns a variable's current folded value (unexpanded RHS
// text, i.e. `${...}` references are not resolved until Expand is called).
func (e *Evaluator) GetValue(name string) (string, bool) {
	rec, ok := e.vars[name]
	if !ok {
		return "", false
	}
	return rec.value, true
}

// FoldOverrides applies every stored override-qualified assignment against
// the currently active OVERRIDES, per the three-step rule order in spec
// §4.D: plain conditional overrides apply using ordinary operator
// semantics, then append/prepend-tagged entries apply in source order,
// then remove-tagged entries apply last.
func (e *Evaluator) FoldOverrides() {
	active := map[string]bool{}
	for _, o := range e.overrides {
		active[o] = true
	}

	for name, entries := range e.overrideEntries {
		rec := e.record(name)
		folded := rec.value

		var plain, tagged []overrideEntry
		for _, ent := range entries {
			first := ent.suffix[0]
			if first == "append" || first == "prepend" || first == "remove" {
				tagged = append(tagged, ent)
			} else {
				plain = append(plain, ent)
			}
		}

		for _, ent := range plain {
			if allActive(ent.suffix, active) {
				folded = applyOperatorValue(folded, ent.operator, e.Expand(ent.value))
			}
		}
		for _, ent := range tagged {
			if ent.operator == syntax.OpOverrideRemove {
				continue
			}
			qualifiers := ent.suffix[1:]
			if !allActive(qualifiers, active) {
				continue
			}
			v := e.Expand(ent.value)
			switch ent.operator {
			case syntax.OpOverrideAppend:
				folded = folded + v
			case syntax.OpOverridePrepend:
				folded = v + folded
			}
		}
		for _, ent := range tagged {
			if ent.operator != syntax.OpOverrideRemove {
				continue
			}
			qualifiers := ent.suffix[1:]
			if !allActive(qualifiers, active) {
				continue
			}
			folded = removeTokens(folded, e.Expand(ent.value))
		}

		rec.value = folded
		rec.set = true
		rec.isDefault = false
	}
}

func allActive(particles []string, active map[string]bool) bool {
	for _, p := range particles {
		if !active[p] {
			return false
		}
	}
	return true
}

func applyOperatorValue(cur string, op syntax.AssignOp, v string) string {
	switch op {
	case syntax.OpAssign, syntax.OpImmediate:
		return v
	case syntax.OpSoftDefault, syntax.OpWeakDefault:
		if cur == "" {
			return v
		}
		return cur
	case syntax.OpAppend:
		return joinSpace(cur, v)
	case syntax.OpPrepend:
		return joinSpace(v, cur)
	case syntax.OpAppendNoSpace:
		return cur + v
	case syntax.OpPrependNoSpace:
		return v + cur
	default:
		return cur
	}
}

func joinSpace(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// removeTokens removes every whitespace-separated token in remove from s,
// preserving the relative order and spacing convention of the survivors.
func removeTokens(s, remove string) string {
	drop := map[string]bool{}
	for _, tok := range strings.Fields(remove) {
		drop[tok] = true
	}
	var kept []string
	for _, tok := range strings.Fields(s) {
		if !drop[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

var expansionPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand recursively resolves `${VAR}` references in text against the
// current snapshot, left-to-right, bounded by maxDepth (spec §4.D).
// Unresolved references are left textually intact and reported via a
// diagnostic; the depth bound itself is how expansion cycles are detected.
func (e *Evaluator) Expand(text string) string {
	return e.expandDepth(text, 0)
}

func (e *Evaluator) expandDepth(text string, depth int) string {
	if depth >= e.maxDepth {
		if e.diags != nil {
			e.diags.Add(diagnostic.Warnf(diagnostic.KindExpansionDepth,
				"expansion depth exceeded (max %d) while expanding %q", e.maxDepth, text))
		}
		return text
	}
	return expansionPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := expansionPattern.FindStringSubmatch(m)
		name := sub[1]
		val, ok := e.GetValue(name)
		if !ok {
			if e.diags != nil {
				e.diags.Add(diagnostic.Infof(diagnostic.KindUnresolvedVariable, "unresolved variable %s", name))
			}
			return m
		}
		return e.expandDepth(val, depth+1)
	})
}
