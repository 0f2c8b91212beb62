package opengl

import (
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

func (d *Device) CreateBuffer() gpu.Buffer {
	var b uint32
	gl.GenBuffers(1, &b)
	return gpu.Buffer(b)
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
}

// BufferData and BufferSubData go through the copy-write binding so an
// upload never changes the element buffer of the bound vertex array.
func (d *Device) BufferData(_ gpu.BufferKind, b gpu.Buffer, data []byte, usage gpu.Usage) {
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, uint32(b))
	gl.BufferData(gl.COPY_WRITE_BUFFER, len(data), ptr(data), usages[usage])
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
}

func (d *Device) BufferSubData(_ gpu.BufferKind, b gpu.Buffer, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, uint32(b))
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
}

func (d *Device) CreateVertexArray() gpu.VertexArray {
	var v uint32
	gl.GenVertexArrays(1, &v)
	return gpu.VertexArray(v)
}

func (d *Device) DeleteVertexArray(v gpu.VertexArray) {
	id := uint32(v)
	gl.DeleteVertexArrays(1, &id)
}

func (d *Device) BindVertexArray(v gpu.VertexArray) { gl.BindVertexArray(uint32(v)) }

// VertexAttrib records layout in the bound vertex array.
func (d *Device) VertexAttrib(location uint32, l gpu.AttribLayout) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(l.Buffer))
	gl.EnableVertexAttribArray(location)
	if l.Integer {
		gl.VertexAttribIPointer(location, int32(l.Size), dataTypes[l.Type], int32(l.Stride), gl.PtrOffset(l.Offset))
	} else {
		gl.VertexAttribPointer(location, int32(l.Size), dataTypes[l.Type], l.Normalized, int32(l.Stride), gl.PtrOffset(l.Offset))
	}
	gl.VertexAttribDivisor(location, uint32(l.Divisor))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) DisableVertexAttrib(location uint32) { gl.DisableVertexAttribArray(location) }

// BindIndexBuffer sets the element buffer of the bound vertex array.
func (d *Device) BindIndexBuffer(b gpu.Buffer) { gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(b)) }

func (d *Device) CreateTexture() gpu.Texture {
	var t uint32
	gl.GenTextures(1, &t)
	return gpu.Texture(t)
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

func (d *Device) ActiveTexture(unit int) { gl.ActiveTexture(gl.TEXTURE0 + uint32(unit)) }

func (d *Device) BindTexture(target gpu.TextureTarget, t gpu.Texture) {
	gl.BindTexture(textureTargets[target], uint32(t))
}

// imageTarget returns the GL target of one TexImage call; cube faces have
// their own targets.
func imageTarget(img gpu.Image) uint32 {
	if img.Target == gpu.TextureCube {
		return gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(img.Face)
	}
	return textureTargets[img.Target]
}

func (d *Device) TexImage(img gpu.Image) {
	target := imageTarget(img)
	internal := internalFormats[img.Internal]
	format, typ := formats[img.Format], dataTypes[img.Type]
	switch img.Target {
	case gpu.Texture2DArray, gpu.Texture3D:
		gl.TexImage3D(target, int32(img.Level), internal, int32(img.Width), int32(img.Height), int32(img.Depth), 0, format, typ, ptr(img.Data))
	default:
		gl.TexImage2D(target, int32(img.Level), internal, int32(img.Width), int32(img.Height), 0, format, typ, ptr(img.Data))
	}
}

func (d *Device) TexSubImage(img gpu.Image) {
	if len(img.Data) == 0 {
		return
	}
	target := imageTarget(img)
	format, typ := formats[img.Format], dataTypes[img.Type]
	switch img.Target {
	case gpu.Texture2DArray, gpu.Texture3D:
		gl.TexSubImage3D(target, int32(img.Level), int32(img.X), int32(img.Y), int32(img.Z), int32(img.Width), int32(img.Height), int32(img.Depth), format, typ, gl.Ptr(img.Data))
	default:
		gl.TexSubImage2D(target, int32(img.Level), int32(img.X), int32(img.Y), int32(img.Width), int32(img.Height), format, typ, gl.Ptr(img.Data))
	}
}

func (d *Device) TexParameters(target gpu.TextureTarget, p gpu.SamplerParams) {
	t := textureTargets[target]
	gl.TexParameteri(t, gl.TEXTURE_WRAP_S, wraps[p.WrapS])
	gl.TexParameteri(t, gl.TEXTURE_WRAP_T, wraps[p.WrapT])
	if target == gpu.TextureCube || target == gpu.Texture3D {
		gl.TexParameteri(t, gl.TEXTURE_WRAP_R, wraps[p.WrapR])
	}
	gl.TexParameteri(t, gl.TEXTURE_MIN_FILTER, filters[p.MinFilter])
	gl.TexParameteri(t, gl.TEXTURE_MAG_FILTER, filters[p.MagFilter])
	if d.anisotropy && p.Anisotropy > 1 {
		gl.TexParameterf(t, textureMaxAnisotropyEXT, min(p.Anisotropy, d.caps.MaxAnisotropy))
	}
	if p.Compare {
		gl.TexParameteri(t, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.TexParameteri(t, gl.TEXTURE_COMPARE_FUNC, int32(compareFuncs[p.CompareFunc]))
	} else {
		gl.TexParameteri(t, gl.TEXTURE_COMPARE_MODE, gl.NONE)
	}
}

func (d *Device) GenerateMipmap(target gpu.TextureTarget) { gl.GenerateMipmap(textureTargets[target]) }
