package opengl

import (
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

// CreateProgram compiles both stages and links them. Status is not read
// here: with parallel compilation the driver keeps working in the
// background until ProgramReady reports true.
func (d *Device) CreateProgram(vertex, fragment string, attribs map[string]uint32) gpu.Program {
	vs := compileShader(vertex, gl.VERTEX_SHADER)
	fs := compileShader(fragment, gl.FRAGMENT_SHADER)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	for name, loc := range attribs {
		gl.BindAttribLocation(prog, loc, gl.Str(name+"\x00"))
	}
	gl.BindFragDataLocation(prog, 0, gl.Str("fragColor\x00"))
	gl.LinkProgram(prog)
	return gpu.Program(prog)
}

func compileShader(src string, stage uint32) uint32 {
	shader := gl.CreateShader(stage)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)
	return shader
}

func (d *Device) ProgramReady(p gpu.Program) bool {
	if !d.caps.ParallelShaderCompile {
		return true
	}
	var done int32
	gl.GetProgramiv(uint32(p), completionStatusKHR, &done)
	return done == gl.TRUE
}

// ProgramStatus reads the compile and link results. The shader objects are
// detached and deleted afterwards; only the program keeps them alive.
func (d *Device) ProgramStatus(p gpu.Program) gpu.ProgramStatus {
	prog := uint32(p)
	var st gpu.ProgramStatus
	shaders := attachedShaders(prog)
	for _, sh := range shaders {
		var kind, ok int32
		gl.GetShaderiv(sh, gl.SHADER_TYPE, &kind)
		gl.GetShaderiv(sh, gl.COMPILE_STATUS, &ok)
		log := shaderLog(sh)
		if uint32(kind) == gl.VERTEX_SHADER {
			st.VertexOK, st.VertexLog = ok == gl.TRUE, log
		} else {
			st.FragmentOK, st.FragmentLog = ok == gl.TRUE, log
		}
	}
	var linked int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &linked)
	st.Linked = linked == gl.TRUE
	st.LinkLog = programLog(prog)

	for _, sh := range shaders {
		gl.DetachShader(prog, sh)
		gl.DeleteShader(sh)
	}
	if !st.OK() {
		d.log.Debug("program failed", "program", prog, "vertex_ok", st.VertexOK, "fragment_ok", st.FragmentOK, "linked", st.Linked)
	}
	return st
}

func attachedShaders(prog uint32) []uint32 {
	var n int32
	gl.GetProgramiv(prog, gl.ATTACHED_SHADERS, &n)
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	gl.GetAttachedShaders(prog, n, &n, &out[0])
	return out[:n]
}

func shaderLog(sh uint32) string {
	var n int32
	gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &n)
	if n <= 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetShaderInfoLog(sh, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func programLog(prog uint32) string {
	var n int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &n)
	if n <= 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetProgramInfoLog(prog, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

// ActiveUniforms lists the default-block uniforms. Arrays are reported once
// under their base name.
func (d *Device) ActiveUniforms(p gpu.Program) []gpu.ActiveUniform {
	prog := uint32(p)
	var count, maxLen int32
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	buf := make([]byte, maxLen+1)

	out := make([]gpu.ActiveUniform, 0, count)
	for i := range uint32(count) {
		var length, size int32
		var typ uint32
		gl.GetActiveUniform(prog, i, int32(len(buf)), &length, &size, &typ, &buf[0])
		name := strings.TrimSuffix(string(buf[:length]), "[0]")
		ut, ok := uniformTypes[typ]
		if !ok {
			continue
		}
		loc := gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
		if loc < 0 {
			continue
		}
		out = append(out, gpu.ActiveUniform{Name: name, Type: ut, Size: int(size), Location: loc})
	}
	return out
}

func (d *Device) ActiveAttribs(p gpu.Program) []gpu.ActiveAttrib {
	prog := uint32(p)
	var count, maxLen int32
	gl.GetProgramiv(prog, gl.ACTIVE_ATTRIBUTES, &count)
	gl.GetProgramiv(prog, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, &maxLen)
	buf := make([]byte, maxLen+1)

	out := make([]gpu.ActiveAttrib, 0, count)
	for i := range uint32(count) {
		var length, size int32
		var typ uint32
		gl.GetActiveAttrib(prog, i, int32(len(buf)), &length, &size, &typ, &buf[0])
		name := string(buf[:length])
		loc := gl.GetAttribLocation(prog, gl.Str(name+"\x00"))
		if loc < 0 {
			continue
		}
		out = append(out, gpu.ActiveAttrib{Name: name, Location: loc})
	}
	return out
}

func (d *Device) DeleteProgram(p gpu.Program) { gl.DeleteProgram(uint32(p)) }
func (d *Device) UseProgram(p gpu.Program)    { gl.UseProgram(uint32(p)) }

func (d *Device) UniformFloats(loc int32, typ gpu.UniformType, v []float32) {
	n := int32(len(v) / typ.Components())
	if n == 0 {
		return
	}
	switch typ {
	case gpu.UniformFloat:
		gl.Uniform1fv(loc, n, &v[0])
	case gpu.UniformVec2:
		gl.Uniform2fv(loc, n, &v[0])
	case gpu.UniformVec3:
		gl.Uniform3fv(loc, n, &v[0])
	case gpu.UniformVec4:
		gl.Uniform4fv(loc, n, &v[0])
	case gpu.UniformMat3:
		gl.UniformMatrix3fv(loc, n, false, &v[0])
	case gpu.UniformMat4:
		gl.UniformMatrix4fv(loc, n, false, &v[0])
	}
}

// UniformInts sets int, bool and sampler uniforms.
func (d *Device) UniformInts(loc int32, typ gpu.UniformType, v []int32) {
	n := int32(len(v) / typ.Components())
	if n == 0 {
		return
	}
	switch typ {
	case gpu.UniformIVec2:
		gl.Uniform2iv(loc, n, &v[0])
	case gpu.UniformIVec3:
		gl.Uniform3iv(loc, n, &v[0])
	case gpu.UniformIVec4:
		gl.Uniform4iv(loc, n, &v[0])
	default:
		gl.Uniform1iv(loc, n, &v[0])
	}
}
