// Package uri parses BitBake SRC_URI entries (spec §4.C): already-expanded
// text between whitespace delimiters, split into a base URL and a
// semicolon-separated parameter list, with scheme-specific parameter
// folding for the fetcher families BitBake ships.
package uri

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SchemeKind is the closed set of recognised fetcher schemes, with
// SchemeOther acting as the forward-compatible catch-all variant.
type SchemeKind string

const (
	SchemeGit   SchemeKind = "git"
	SchemeGitSM SchemeKind = "gitsm"
	SchemeHTTP  SchemeKind = "http"
	SchemeHTTPS SchemeKind = "https"
	SchemeFTP   SchemeKind = "ftp"
	SchemeFTPS  SchemeKind = "ftps"
	SchemeFile  SchemeKind = "file"
	SchemeSVN   SchemeKind = "svn"
	SchemeHg    SchemeKind = "hg"
	SchemeBzr   SchemeKind = "bzr"
	SchemeCVS   SchemeKind = "cvs"
	SchemeNPM   SchemeKind = "npm"
	SchemeS3    SchemeKind = "s3"
	SchemeOther SchemeKind = "other"
)

var knownSchemes = map[string]SchemeKind{
	"git":   SchemeGit,
	"gitsm": SchemeGitSM,
	"http":  SchemeHTTP,
	"https": SchemeHTTPS,
	"ftp":   SchemeFTP,
	"ftps":  SchemeFTPS,
	"file":  SchemeFile,
	"svn":   SchemeSVN,
	"hg":    SchemeHg,
	"bzr":   SchemeBzr,
	"cvs":   SchemeCVS,
	"npm":   SchemeNPM,
	"s3":    SchemeS3,
}

// Scheme is a closed-set scheme with an Other escape hatch: Kind is
// SchemeOther and Raw carries the literal scheme text whenever the input
// uses a scheme this package does not specifically fold parameters for.
type Scheme struct {
	Kind SchemeKind
	Raw  string
}

func (s Scheme) String() string {
	if s.Kind == SchemeOther {
		return s.Raw
	}
	return string(s.Kind)
}

func (s Scheme) isGitFamily() bool {
	return s.Kind == SchemeGit || s.Kind == SchemeGitSM
}

func (s Scheme) isHTTPFamily() bool {
	return s.Kind == SchemeHTTP || s.Kind == SchemeHTTPS || s.Kind == SchemeFTP || s.Kind == SchemeFTPS
}

// GitParams holds git/gitsm-specific folded parameters.
type GitParams struct {
	Protocol   string
	Branch     string
	Tag        string
	Rev        string
	SrcRev     string // SRCREV / SRCREV_<name>, attached by the caller, not parsed here
	NoBranch   bool
	Subpath    string
	DestSuffix string
	Name       string
}

// HTTPParams holds http/https/ftp-specific folded parameters.
type HTTPParams struct {
	DownloadFilename string
}

// FileParams holds file-scheme-specific folded parameters.
type FileParams struct {
	Apply      bool
	StripLevel int
}

// SourceUri is the parsed form of one SRC_URI entry (spec §3).
type SourceUri struct {
	Raw        string
	Scheme     Scheme
	URL        string
	Parameters map[string]string // parameters not folded into a scheme-typed field
	Checksums  map[string]string // md5sum / sha1sum / sha256sum / sha512sum
	Operation  string            // caller-supplied default_operation, carried through unchanged
	Overrides  []string          // active OVERRIDES at the point this entry was selected; set by the caller

	Git  *GitParams
	HTTP *HTTPParams
	File *FileParams
}

// Error is returned when raw cannot be parsed into a SourceUri. The caller
// (Recipe Extractor) does not abort on this: it logs a diagnostic against
// the recipe and keeps raw in the output unparsed (spec §4.C, §7.e).
type Error struct {
	Raw    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid uri %q: %s", e.Raw, e.Reason)
}

// Parse parses raw (already `${...}`-expanded) SRC_URI text into a
// SourceUri. defaultOperation is carried through verbatim into the
// Operation field for the caller's own bookkeeping.
func Parse(raw string, defaultOperation string) (SourceUri, error) {
	u := SourceUri{
		Raw:        raw,
		Operation:  defaultOperation,
		Parameters: map[string]string{},
		Checksums:  map[string]string{},
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return u, &Error{Raw: raw, Reason: "empty uri"}
	}

	parts, err := splitParams(trimmed)
	if err != nil {
		return u, &Error{Raw: raw, Reason: err.Error()}
	}
	if len(parts) == 0 || parts[0] == "" {
		return u, &Error{Raw: raw, Reason: "empty uri"}
	}

	base := parts[0]
	schemeText, ok := splitScheme(base)
	if !ok {
		return u, &Error{Raw: raw, Reason: "no scheme found"}
	}

	u.Scheme = resolveScheme(schemeText)
	u.URL = base

	for _, p := range parts[1:] {
		k, v, ok := splitKV(p)
		if !ok {
			continue
		}
		applyParam(&u, k, v)
	}

	return u, nil
}

// splitParams splits raw on unquoted top-level ';' characters. BitBake
// SRC_URI parameters never themselves contain ';', but the base URL might
// (e.g. inside a quoted fragment), so quote-awareness is kept for safety.
func splitParams(raw string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inQuote != 0:
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
			cur.WriteByte(c)
		case c == ';':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote != 0 {
		return nil, fmt.Errorf("unbalanced quote")
	}
	parts = append(parts, cur.String())
	return parts, nil
}

// splitScheme finds the "scheme://" prefix of base.
func splitScheme(base string) (string, bool) {
	idx := strings.Index(base, "://")
	if idx <= 0 {
		return "", false
	}
	return base[:idx], true
}

func resolveScheme(text string) Scheme {
	lower := strings.ToLower(text)
	if kind, ok := knownSchemes[lower]; ok {
		return Scheme{Kind: kind, Raw: text}
	}
	return Scheme{Kind: SchemeOther, Raw: text}
}

func splitKV(p string) (string, string, bool) {
	idx := strings.IndexByte(p, '=')
	if idx < 0 {
		return "", "", false
	}
	return p[:idx], p[idx+1:], true
}

var checksumKeys = map[string]bool{
	"md5sum": true, "sha1sum": true, "sha256sum": true, "sha512sum": true,
}

func applyParam(u *SourceUri, k, v string) {
	lowerK := strings.ToLower(k)
	if checksumKeys[lowerK] {
		u.Checksums[lowerK] = v
		return
	}

	switch {
	case u.Scheme.isGitFamily():
		if applyGitParam(u, lowerK, v) {
			return
		}
	case u.Scheme.isHTTPFamily():
		if applyHTTPParam(u, lowerK, v) {
			return
		}
	case u.Scheme.Kind == SchemeFile:
		if applyFileParam(u, lowerK, v) {
			return
		}
	}
	u.Parameters[k] = v
}

func applyGitParam(u *SourceUri, k, v string) bool {
	if u.Git == nil {
		u.Git = &GitParams{}
	}
	switch k {
	case "protocol":
		u.Git.Protocol = v
	case "branch":
		u.Git.Branch = v
	case "tag":
		u.Git.Tag = v
	case "rev":
		u.Git.Rev = v
	case "nobranch":
		u.Git.NoBranch = v == "1"
	case "subpath":
		u.Git.Subpath = v
	case "destsuffix":
		u.Git.DestSuffix = v
	case "name":
		u.Git.Name = v
	default:
		return false
	}
	return true
}

func applyHTTPParam(u *SourceUri, k, v string) bool {
	if k != "downloadfilename" {
		return false
	}
	if u.HTTP == nil {
		u.HTTP = &HTTPParams{}
	}
	u.HTTP.DownloadFilename = v
	return true
}

// ParseSemverHint best-effort interprets a recipe's PV as a semantic
// version, for hosts that want to sort or compare recipe versions
// loosely (graph summaries, changelog-style diffing between two
// extraction runs). This is NEVER used for BitBake's own `bb.utils.vercmp`
// semantics — PV routinely carries an epoch prefix (`1:2.3.4`) or a
// trailing VCS suffix (`2.3.4+gitAUTOINC+abcdef12`) that `Masterminds/semver`
// cannot parse, and BitBake's comparison order differs from semver's in
// edge cases (see DESIGN.md) — it exists purely as a convenience hint,
// and callers must treat a false ok as "not comparable", not an error.
func ParseSemverHint(pv string) (*semver.Version, bool) {
	v := pv
	if idx := strings.IndexByte(v, ':'); idx >= 0 {
		if _, err := strconv.Atoi(v[:idx]); err == nil {
			v = v[idx+1:]
		}
	}
	if idx := strings.IndexByte(v, '+'); idx >= 0 {
		v = v[:idx]
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

func applyFileParam(u *SourceUri, k, v string) bool {
	if u.File == nil {
		u.File = &FileParams{}
	}
	switch k {
	case "apply":
		u.File.Apply = v == "1" || v == "yes" || v == "true"
	case "striplevel", "strip":
		n, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		u.File.StripLevel = n
	default:
		return false
	}
	return true
}
