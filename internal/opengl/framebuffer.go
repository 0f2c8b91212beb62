package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

func (d *Device) CreateFramebuffer() gpu.Framebuffer {
	var f uint32
	gl.GenFramebuffers(1, &f)
	return gpu.Framebuffer(f)
}

func (d *Device) DeleteFramebuffer(f gpu.Framebuffer) {
	id := uint32(f)
	gl.DeleteFramebuffers(1, &id)
}

func (d *Device) BindFramebuffer(target gpu.FramebufferTarget, f gpu.Framebuffer) {
	gl.BindFramebuffer(framebufferTargets[target], uint32(f))
}

// FramebufferTexture attaches a texture level to the bound draw framebuffer.
// Cube maps attach one face; array and 3D textures attach one layer.
func (d *Device) FramebufferTexture(att gpu.Attachment, target gpu.TextureTarget, face int, t gpu.Texture, level, layer int) {
	a := attachment(att)
	switch target {
	case gpu.TextureCube:
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, a, gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(face), uint32(t), int32(level))
	case gpu.Texture2DArray, gpu.Texture3D:
		gl.FramebufferTextureLayer(gl.DRAW_FRAMEBUFFER, a, uint32(t), int32(level), int32(layer))
	default:
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, a, gl.TEXTURE_2D, uint32(t), int32(level))
	}
}

func (d *Device) CreateRenderbuffer() gpu.Renderbuffer {
	var r uint32
	gl.GenRenderbuffers(1, &r)
	return gpu.Renderbuffer(r)
}

func (d *Device) DeleteRenderbuffer(r gpu.Renderbuffer) {
	id := uint32(r)
	gl.DeleteRenderbuffers(1, &id)
}

func (d *Device) RenderbufferStorage(r gpu.Renderbuffer, format gpu.InternalFormat, samples, width, height int) {
	gl.BindRenderbuffer(gl.RENDERBUFFER, uint32(r))
	internal := uint32(internalFormats[format])
	if samples > 0 {
		gl.RenderbufferStorageMultisample(gl.RENDERBUFFER, int32(samples), internal, int32(width), int32(height))
	} else {
		gl.RenderbufferStorage(gl.RENDERBUFFER, internal, int32(width), int32(height))
	}
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
}

func (d *Device) FramebufferRenderbuffer(att gpu.Attachment, r gpu.Renderbuffer) {
	gl.FramebufferRenderbuffer(gl.DRAW_FRAMEBUFFER, attachment(att), gl.RENDERBUFFER, uint32(r))
}

// DrawBuffers enables the first n color attachments. Zero disables color
// output, as depth-only shadow targets need.
func (d *Device) DrawBuffers(n int) {
	if n == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
		return
	}
	bufs := make([]uint32, n)
	for i := range bufs {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	gl.DrawBuffers(int32(n), &bufs[0])
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
}

func (d *Device) CheckFramebufferStatus() error {
	status := gl.CheckFramebufferStatus(gl.DRAW_FRAMEBUFFER)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer incomplete: status=0x%X", status)
	}
	return nil
}

// BlitFramebuffer copies the bound read framebuffer into the bound draw
// framebuffer at the same size.
func (d *Device) BlitFramebuffer(width, height int, mask gpu.ClearMask, filter gpu.Filter) {
	f := uint32(gl.NEAREST)
	if filter == gpu.Linear && mask&(gpu.ClearDepthBit|gpu.ClearStencilBit) == 0 {
		f = gl.LINEAR
	}
	w, h := int32(width), int32(height)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, clearBits(mask), f)
}

func (d *Device) ReadPixels(x, y, w, h int, format gpu.Format, typ gpu.DataType, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	gl.ReadPixels(int32(x), int32(y), int32(w), int32(h), formats[format], dataTypes[typ], gl.Ptr(out))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("read pixels: gl error 0x%X", code)
	}
	return nil
}
