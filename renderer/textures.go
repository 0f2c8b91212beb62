package renderer

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"render-pipeline/gpu"
	"render-pipeline/scene"
)

type textureRecord struct {
	tex      gpu.Texture
	target   gpu.TextureTarget
	version  uint64
	width    int
	height   int
	depth    int
	internal gpu.InternalFormat
	// failed textures sample the placeholder until their version changes.
	failed bool
}

// TextureUploader mirrors scene textures into device textures. Uploads are
// driven by Texture.Version like buffers.
type TextureUploader struct {
	dev   gpu.Device
	state *StateTracker
	caps  gpu.Capabilities
	info  *Info

	records      map[*scene.Texture]*textureRecord
	placeholders map[gpu.TextureTarget]gpu.Texture
	warned       map[string]bool
	// listening survives forget so a texture is subscribed once.
	listening    map[*scene.Texture]bool
}

func NewTextureUploader(dev gpu.Device, state *StateTracker, info *Info) *TextureUploader {
	return &TextureUploader{
		dev:          dev,
		state:        state,
		caps:         dev.Capabilities(),
		info:         info,
		records:      make(map[*scene.Texture]*textureRecord),
		placeholders: make(map[gpu.TextureTarget]gpu.Texture),
		warned:       make(map[string]bool),
		listening:    make(map[*scene.Texture]bool),
	}
}

// Bind makes t current on unit, uploading it first if it changed. Missing,
// unloaded or unsupported textures bind the placeholder of their target.
func (u *TextureUploader) Bind(t *scene.Texture, target gpu.TextureTarget, unit int) {
	if t == nil || !t.Ready() {
		u.state.BindTexture(unit, target, u.placeholder(target))
		return
	}
	rec, err := u.Update(t, unit)
	if err != nil || rec.failed {
		u.state.BindTexture(unit, t.Target, u.placeholder(t.Target))
		return
	}
	u.state.BindTexture(unit, rec.target, rec.tex)
}

// Update uploads t if its version changed. The texture is left bound on unit.
func (u *TextureUploader) Update(t *scene.Texture, unit int) (*textureRecord, error) {
	rec := u.records[t]
	if rec != nil && rec.version == t.Version {
		return rec, nil
	}
	if t.IsRenderTarget {
		if rec == nil {
			return nil, fmt.Errorf("texture %q: render target texture used before its target was set up", t.Name)
		}
		return rec, nil
	}

	internal, err := u.internalFormat(t)
	if err != nil {
		if rec == nil {
			rec = u.newRecord(t)
		}
		rec.failed, rec.version = true, t.Version
		u.warnOnce(t, err)
		return rec, err
	}

	if rec == nil {
		rec = u.newRecord(t)
	}
	rec.failed = false
	u.state.BindTexture(unit, t.Target, rec.tex)

	images, width, height, err := u.images(t)
	if err != nil {
		rec.failed, rec.version = true, t.Version
		u.warnOnce(t, err)
		return rec, err
	}

	alloc := rec.width != width || rec.height != height || rec.depth != t.Depth || rec.internal != internal || rec.version == 0
	u.upload(t, rec, images, width, height, internal, alloc)
	rec.width, rec.height, rec.depth, rec.internal = width, height, t.Depth, internal

	u.dev.TexParameters(t.Target, u.sampler(t))
	if t.GenerateMipmaps && t.MinFilter.UsesMipmaps() {
		u.dev.GenerateMipmap(t.Target)
	}
	t.ClearLayerUpdates()
	rec.version = t.Version
	Logger().Debug("texture upload", "texture", t.Name, "target", t.Target, "width", width, "height", height, "alloc", alloc)
	return rec, nil
}

func (u *TextureUploader) newRecord(t *scene.Texture) *textureRecord {
	rec := &textureRecord{tex: u.dev.CreateTexture(), target: t.Target}
	u.records[t] = rec
	u.info.Memory.Textures++
	if !u.listening[t] {
		u.listening[t] = true
		t.OnDispose(func() {
			delete(u.listening, t)
			u.Remove(t)
		})
	}
	return rec
}

// upload sends every face or layer. Array textures with pending layer
// updates send only those layers when the storage is unchanged.
func (u *TextureUploader) upload(t *scene.Texture, rec *textureRecord, images [][]byte, width, height int, internal gpu.InternalFormat, alloc bool) {
	img := gpu.Image{
		Target:   t.Target,
		Internal: internal,
		Width:    width,
		Height:   height,
		Depth:    1,
		Format:   t.Format,
		Type:     t.Type,
	}

	switch t.Target {
	case gpu.TextureCube:
		for face, data := range images {
			img.Face, img.Data = face, data
			u.texImage(img, alloc)
		}

	case gpu.Texture2DArray:
		if !alloc && len(t.LayerUpdates) > 0 {
			for _, layer := range t.LayerUpdates {
				if layer < 0 || layer >= len(images) {
					continue
				}
				img.Z, img.Data = layer, images[layer]
				u.dev.TexSubImage(img)
			}
			return
		}
		img.Depth = len(images)
		img.Data = concat(images)
		u.texImage(img, alloc)

	case gpu.Texture3D:
		img.Depth = t.Depth
		img.Data = images[0]
		u.texImage(img, alloc)

	default:
		img.Data = images[0]
		u.texImage(img, alloc)
	}
}

func (u *TextureUploader) texImage(img gpu.Image, alloc bool) {
	if alloc {
		u.dev.TexImage(img)
	} else {
		u.dev.TexSubImage(img)
	}
}

// images returns the pixel data of every face or layer after resizing,
// flipping and premultiplication.
func (u *TextureUploader) images(t *scene.Texture) ([][]byte, int, int, error) {
	if len(t.Sources) == 0 {
		out := make([][]byte, len(t.Data))
		row := t.Width * t.Format.Channels() * t.Type.Size()
		for i, data := range t.Data {
			if t.Target == gpu.Texture3D {
				if len(data) < row*t.Height*t.Depth {
					return nil, 0, 0, &ResourceSizeMismatchError{Resource: "texture " + t.Name, Reason: "volume data shorter than width*height*depth"}
				}
			} else if len(data) < row*t.Height {
				return nil, 0, 0, &ResourceSizeMismatchError{Resource: "texture " + t.Name, Reason: "pixel data shorter than width*height"}
			}
			if t.FlipY {
				data = flipRows(data, row)
			}
			out[i] = data
		}
		return out, t.Width, t.Height, nil
	}

	limit := u.caps.MaxTextureSize
	if t.Target == gpu.TextureCube {
		limit = u.caps.MaxCubeMapSize
	}
	out := make([][]byte, len(t.Sources))
	width, height := t.Width, t.Height
	for i, src := range t.Sources {
		rgba := scene.ToRGBA(src)
		if limit > 0 && (rgba.Rect.Dx() > limit || rgba.Rect.Dy() > limit) {
			rgba = downscale(rgba, limit)
			u.warnOnce(t, &UnsupportedFeatureError{
				Feature:  fmt.Sprintf("texture larger than %d", limit),
				Fallback: fmt.Sprintf("%dx%d", rgba.Rect.Dx(), rgba.Rect.Dy()),
			})
		}
		width, height = rgba.Rect.Dx(), rgba.Rect.Dy()
		data := rgba.Pix
		if t.FlipY {
			data = flipRows(data, rgba.Stride)
		}
		if t.PremultiplyAlpha {
			data = premultiply(data)
		}
		out[i] = data
	}
	return out, width, height, nil
}

// internalFormat picks the storage format, failing when the device
// cannot store the data type.
func (u *TextureUploader) internalFormat(t *scene.Texture) (gpu.InternalFormat, error) {
	switch t.Type {
	case gpu.Float:
		if !u.caps.FloatTextures {
			return 0, &UnsupportedFeatureError{Feature: "float textures", Fallback: "placeholder"}
		}
	case gpu.HalfFloat:
		if !u.caps.HalfFloatTextures {
			return 0, &UnsupportedFeatureError{Feature: "half float textures", Fallback: "placeholder"}
		}
	}
	return internalFormatFor(t.Format, t.Type, t.ColorSpace == scene.SRGBColorSpace)
}

func internalFormatFor(f gpu.Format, typ gpu.DataType, srgb bool) (gpu.InternalFormat, error) {
	switch f {
	case gpu.DepthComponent:
		if typ == gpu.Float {
			return gpu.Depth32F, nil
		}
		return gpu.Depth24, nil
	case gpu.DepthStencil:
		return gpu.Depth24Stencil8, nil
	}

	switch typ {
	case gpu.UnsignedByte:
		switch f {
		case gpu.RGBA:
			if srgb {
				return gpu.SRGB8Alpha8, nil
			}
			return gpu.RGBA8, nil
		case gpu.RGB:
			return gpu.RGB8, nil
		case gpu.RG:
			return gpu.RG8, nil
		case gpu.Red:
			return gpu.R8, nil
		}
	case gpu.HalfFloat:
		switch f {
		case gpu.RGBA:
			return gpu.RGBA16F, nil
		case gpu.RG:
			return gpu.RG16F, nil
		}
	case gpu.Float:
		switch f {
		case gpu.RGBA:
			return gpu.RGBA32F, nil
		case gpu.RG:
			return gpu.RG32F, nil
		case gpu.Red:
			return gpu.R32F, nil
		}
	}
	return 0, &UnsupportedFeatureError{Feature: fmt.Sprintf("pixel format %d with type %d", f, typ), Fallback: "placeholder"}
}

func (u *TextureUploader) sampler(t *scene.Texture) gpu.SamplerParams {
	p := t.Sampler()
	if u.caps.MaxAnisotropy > 0 {
		p.Anisotropy = min(p.Anisotropy, u.caps.MaxAnisotropy)
	}
	if t.Type.IsFloat() && !u.caps.FloatLinearFiltering {
		p.MinFilter, p.MagFilter = gpu.Nearest, gpu.Nearest
	}
	if !t.GenerateMipmaps && p.MinFilter.UsesMipmaps() {
		p.MinFilter = gpu.Linear
	}
	return p
}

// placeholder returns an empty 1x1 texture of target.
func (u *TextureUploader) placeholder(target gpu.TextureTarget) gpu.Texture {
	if tex, ok := u.placeholders[target]; ok {
		return tex
	}
	tex := u.dev.CreateTexture()
	u.placeholders[target] = tex
	u.state.BindTexture(0, target, tex)

	img := gpu.Image{Target: target, Internal: gpu.RGBA8, Width: 1, Height: 1, Depth: 1, Format: gpu.RGBA, Type: gpu.UnsignedByte, Data: make([]byte, 4)}
	switch target {
	case gpu.TextureCube:
		for face := range 6 {
			img.Face = face
			u.dev.TexImage(img)
		}
	default:
		u.dev.TexImage(img)
	}
	u.dev.TexParameters(target, gpu.SamplerParams{MinFilter: gpu.Nearest, MagFilter: gpu.Nearest, WrapS: gpu.ClampToEdge, WrapT: gpu.ClampToEdge, WrapR: gpu.ClampToEdge})
	return tex
}

// allocate creates or resizes the storage of a render target texture.
func (u *TextureUploader) allocate(t *scene.Texture, width, height, depth int, internal gpu.InternalFormat) *textureRecord {
	rec := u.records[t]
	if rec == nil {
		rec = u.newRecord(t)
	}
	if rec.width == width && rec.height == height && rec.depth == depth && rec.internal == internal && rec.version == t.Version && rec.version != 0 {
		return rec
	}
	u.state.BindTexture(0, t.Target, rec.tex)
	img := gpu.Image{Target: t.Target, Internal: internal, Width: width, Height: height, Depth: depth, Format: t.Format, Type: t.Type}
	if t.Target == gpu.TextureCube {
		for face := range 6 {
			img.Face = face
			u.dev.TexImage(img)
		}
	} else {
		u.dev.TexImage(img)
	}
	u.dev.TexParameters(t.Target, u.sampler(t))
	rec.width, rec.height, rec.depth, rec.internal = width, height, depth, internal
	if t.Version == 0 {
		t.Version = 1
	}
	rec.version = t.Version
	return rec
}

// Handle returns the device texture of t, if any.
func (u *TextureUploader) Handle(t *scene.Texture) (gpu.Texture, bool) {
	rec, ok := u.records[t]
	if !ok {
		return 0, false
	}
	return rec.tex, true
}

// Remove deletes the device texture of t.
func (u *TextureUploader) Remove(t *scene.Texture) {
	rec, ok := u.records[t]
	if !ok {
		return
	}
	u.state.ForgetTexture(rec.tex)
	u.dev.DeleteTexture(rec.tex)
	delete(u.records, t)
	u.info.Memory.Textures--
}

// Dispose deletes every texture including placeholders.
func (u *TextureUploader) Dispose() {
	for t := range u.records {
		u.Remove(t)
	}
	for target, tex := range u.placeholders {
		u.dev.DeleteTexture(tex)
		delete(u.placeholders, target)
	}
}

func (u *TextureUploader) forget() {
	clear(u.records)
	clear(u.placeholders)
	u.info.Memory.Textures = 0
}

func (u *TextureUploader) warnOnce(t *scene.Texture, err error) {
	key := fmt.Sprintf("%d:%s", t.ID, err)
	if u.warned[key] {
		return
	}
	u.warned[key] = true
	Logger().Warn("texture fallback", "texture", t.Name, "err", err)
}

func downscale(src *image.RGBA, limit int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	scale := float64(limit) / float64(max(w, h))
	dw, dh := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Rect, draw.Src, nil)
	return dst
}

// flipRows returns a copy of data with its rows in reverse order.
func flipRows(data []byte, stride int) []byte {
	if stride <= 0 {
		return data
	}
	rows := len(data) / stride
	out := make([]byte, len(data))
	for y := range rows {
		copy(out[(rows-1-y)*stride:(rows-y)*stride], data[y*stride:(y+1)*stride])
	}
	return out
}

func premultiply(data []byte) []byte {
	out := make([]byte, len(data))
	for i := 0; i+3 < len(data); i += 4 {
		a := uint16(data[i+3])
		out[i] = byte(uint16(data[i]) * a / 255)
		out[i+1] = byte(uint16(data[i+1]) * a / 255)
		out[i+2] = byte(uint16(data[i+2]) * a / 255)
		out[i+3] = data[i+3]
	}
	return out
}

func concat(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
