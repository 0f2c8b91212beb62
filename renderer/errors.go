package renderer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"render-pipeline/gpu"
)

// ErrContextLost is matched by errors.Is for any ContextLostError.
var ErrContextLost = errors.New("graphics context lost")

// ShaderCompileError reports a failed compile or link. Excerpt holds the
// numbered source lines around Line.
type ShaderCompileError struct {
	Stage   gpu.ShaderStage
	Key     string
	Source  string
	Log     string
	Line    int
	Excerpt string
	// Link is set when compilation succeeded and linking failed.
	Link bool
}

func (e *ShaderCompileError) Error() string {
	if e.Link {
		return fmt.Sprintf("shader link failed: %s", strings.TrimSpace(e.Log))
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s shader compile failed at line %d: %s", e.Stage, e.Line, firstLine(e.Log))
	}
	return fmt.Sprintf("%s shader compile failed: %s", e.Stage, firstLine(e.Log))
}

// ResourceSizeMismatchError reports a malformed render target or buffer.
type ResourceSizeMismatchError struct {
	Resource string
	Reason   string
}

func (e *ResourceSizeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

// ContextLostError aborts a frame whose device context is gone.
type ContextLostError struct {
	Op string
}

func (e *ContextLostError) Error() string { return e.Op + ": " + ErrContextLost.Error() }

func (e *ContextLostError) Is(target error) bool { return target == ErrContextLost }

// UnsupportedFeatureError reports a capability the device lacks.
type UnsupportedFeatureError struct {
	Feature  string
	Fallback string
}

func (e *UnsupportedFeatureError) Error() string {
	if e.Fallback != "" {
		return fmt.Sprintf("unsupported feature %s (using %s)", e.Feature, e.Fallback)
	}
	return "unsupported feature " + e.Feature
}

// Driver logs use several line formats:
//
//	ERROR: 0:12: 'foo' : undeclared identifier
//	0(12) : error C1008: undefined variable "foo"
//	0:12(5): error: `foo' undeclared
var logLine = regexp.MustCompile(`(?:ERROR:\s*\d+:(\d+)|^\s*\d+\((\d+)\)|^\s*\d+:(\d+)\(\d+\))`)

// parseErrorLine returns the first source line number mentioned in an info log.
func parseErrorLine(log string) int {
	for _, l := range strings.Split(log, "\n") {
		m := logLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil {
				return n
			}
		}
	}
	return 0
}

// excerpt returns the numbered lines [line-context, line+context] of src,
// marking line with '>'.
func excerpt(src string, line, context int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(src, "\n")
	from := max(line-context, 1)
	to := min(line+context, len(lines))
	var b strings.Builder
	for i := from; i <= to; i++ {
		mark := ' '
		if i == line {
			mark = '>'
		}
		fmt.Fprintf(&b, "%c%4d: %s\n", mark, i, lines[i-1])
	}
	return b.String()
}

func newCompileError(stage gpu.ShaderStage, key, src, log string) *ShaderCompileError {
	line := parseErrorLine(log)
	return &ShaderCompileError{
		Stage:   stage,
		Key:     key,
		Source:  src,
		Log:     log,
		Line:    line,
		Excerpt: excerpt(src, line, 3),
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
