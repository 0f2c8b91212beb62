package renderer

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"strings"

	"render-pipeline/scene"
)

//go:embed shaders/*.glsl
var shaderFiles embed.FS

// chunks maps a chunk name (file name without extension) to its source.
var chunks = func() map[string]string {
	entries, err := shaderFiles.ReadDir("shaders")
	if err != nil {
		panic(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := shaderFiles.ReadFile(path.Join("shaders", e.Name()))
		if err != nil {
			panic(err)
		}
		out[strings.TrimSuffix(e.Name(), ".glsl")] = string(data)
	}
	return out
}()

var includeDirective = regexp.MustCompile(`(?m)^[ \t]*#include[ \t]+<(\w+)>[ \t]*$`)

// ShaderChunk returns a library chunk by name.
func ShaderChunk(name string) (string, bool) {
	src, ok := chunks[name]
	return src, ok
}

// resolveIncludes expands `#include <chunk>` lines recursively.
func resolveIncludes(src string) (string, error) {
	return expand(src, 0)
}

func expand(src string, depth int) (string, error) {
	if depth > 8 {
		return "", fmt.Errorf("shader include nesting deeper than %d", depth)
	}
	var firstErr error
	out := includeDirective.ReplaceAllStringFunc(src, func(line string) string {
		name := includeDirective.FindStringSubmatch(line)[1]
		chunk, ok := chunks[name]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("unknown shader chunk <%s>", name)
			}
			return line
		}
		expanded, err := expand(chunk, depth+1)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return expanded
	})
	return out, firstErr
}

// programSources assembles the vertex and fragment source for p.
func programSources(p *ProgramParameters, vertexBody, fragmentBody string) (string, string, error) {
	var prefix strings.Builder
	prefix.WriteString("#version 410 core\n")
	fmt.Fprintf(&prefix, "precision %s float;\n", p.Precision)
	for _, d := range p.defines() {
		prefix.WriteString("#define ")
		prefix.WriteString(d)
		prefix.WriteByte('\n')
	}

	vs, err := resolveIncludes(vertexBody)
	if err != nil {
		return "", "", fmt.Errorf("vertex: %w", err)
	}
	fs, err := resolveIncludes(fragmentBody)
	if err != nil {
		return "", "", fmt.Errorf("fragment: %w", err)
	}
	return prefix.String() + vs, prefix.String() + fs, nil
}

// templateFor returns the vertex and fragment template of a program.
// Custom shaders get the built-in attribute and matrix declarations.
func templateFor(custom *scene.ShaderSource) (string, string) {
	if custom != nil {
		return "#include <shader_prefix_vert>\n" + custom.Vertex, "#include <shader_prefix_frag>\n" + custom.Fragment
	}
	return chunks["mesh_vert"], chunks["mesh_frag"]
}
