package merger

import (
	"fmt"
	"strings"
)

// CodeType names the language of one compiled output part.
type CodeType string

const (
	HTML      CodeType = "html"
	CSS       CodeType = "css"
	JS        CodeType = "js"
	DSL       CodeType = "dsl"
	DSLScript CodeType = "dsl_script"
)

// CodeTypes lists every code type in default merge order.
func CodeTypes() []CodeType {
	return []CodeType{HTML, CSS, JS, DSL, DSLScript}
}

// ParseCodeType resolves a code type from its name. "javascript" and
// "chtl_js" are accepted as aliases.
func ParseCodeType(name string) (CodeType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "html":
		return HTML, nil
	case "css":
		return CSS, nil
	case "js", "javascript":
		return JS, nil
	case "dsl", "chtl":
		return DSL, nil
	case "dsl_script", "chtl_js", "chtljs":
		return DSLScript, nil
	}
	return "", fmt.Errorf("unknown code type %q", name)
}

// Artifact returns the final artifact a code type is merged into.
func (t CodeType) Artifact() Artifact {
	switch t {
	case CSS:
		return ArtifactCSS
	case JS, DSLScript:
		return ArtifactJS
	default:
		return ArtifactHTML
	}
}

// Artifact is one of the three final outputs.
type Artifact string

const (
	ArtifactHTML Artifact = "html"
	ArtifactCSS  Artifact = "css"
	ArtifactJS   Artifact = "js"
)

// OverrideFunc folds the next part of one code type into the text
// accumulated so far. It replaces the default join for that type.
type OverrideFunc func(acc, next string) string

// Options control merging. Build them once per run and treat them as
// read-only afterwards.
type Options struct {
	Minify             bool
	PreserveSourceMaps bool
	PreserveComments   bool
	// MergeOrder orders the code type buckets inside the CSS and JS
	// artifacts. Types not listed follow in first-seen order.
	MergeOrder []CodeType
	Overrides  map[CodeType]OverrideFunc
}

// DefaultOptions returns options that keep comments, skip minification and
// use the default type order.
func DefaultOptions() Options {
	return Options{
		PreserveComments: true,
		MergeOrder:       CodeTypes(),
	}
}
