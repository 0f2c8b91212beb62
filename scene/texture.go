package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	"golang.org/x/image/draw"

	"render-pipeline/gpu"
)

type ColorSpace int

const (
	NoColorSpace ColorSpace = iota
	SRGBColorSpace
	LinearSRGBColorSpace
)

var textureIDCounter atomic.Uint32

// Texture holds CPU-side pixel data and sampling parameters.
//
// Pixels come either from Sources (decoded 8-bit images, one per cube face
// or array layer) or from Data (raw pixels laid out as Format/Type, one
// slice per face or layer; 3D textures keep all slices in Data[0]).
// Bump Version with NeedsUpdate after changing pixels or parameters.
type Texture struct {
	ID   uint32
	Name string

	Target gpu.TextureTarget
	Width  int
	Height int
	Depth  int
	Format gpu.Format
	Type   gpu.DataType

	ColorSpace ColorSpace
	Sources    []image.Image
	Data       [][]byte

	WrapS, WrapT, WrapR gpu.Wrap
	MinFilter           gpu.Filter
	MagFilter           gpu.Filter
	Anisotropy          float32

	GenerateMipmaps  bool
	FlipY            bool
	PremultiplyAlpha bool
	// LayerUpdates restricts the next upload of an array texture to these layers.
	LayerUpdates []int
	// IsRenderTarget textures are allocated by render targets, never uploaded.
	IsRenderTarget bool

	Version uint64

	disposer
}

func newTexture(name string, target gpu.TextureTarget) *Texture {
	return &Texture{
		ID:              textureIDCounter.Add(1),
		Name:            name,
		Target:          target,
		Depth:           1,
		Format:          gpu.RGBA,
		Type:            gpu.UnsignedByte,
		WrapS:           gpu.ClampToEdge,
		WrapT:           gpu.ClampToEdge,
		WrapR:           gpu.ClampToEdge,
		MinFilter:       gpu.LinearMipmapLinear,
		MagFilter:       gpu.Linear,
		Anisotropy:      1,
		GenerateMipmaps: true,
		FlipY:           true,
	}
}

// NewTexture wraps a decoded image as a 2D texture.
func NewTexture(name string, img image.Image) *Texture {
	t := newTexture(name, gpu.Texture2D)
	if img != nil {
		t.SetSources(img)
	}
	return t
}

// NewDataTexture wraps raw pixels as a 2D texture. Data textures are not
// flipped and sample without mipmaps.
func NewDataTexture(name string, data []byte, width, height int, format gpu.Format, typ gpu.DataType) *Texture {
	t := newTexture(name, gpu.Texture2D)
	t.Width, t.Height = width, height
	t.Format, t.Type = format, typ
	t.Data = [][]byte{data}
	t.FlipY = false
	t.GenerateMipmaps = false
	t.MinFilter, t.MagFilter = gpu.Nearest, gpu.Nearest
	t.Version = 1
	return t
}

// NewCubeTexture builds a cube map from six faces in +X, -X, +Y, -Y, +Z, -Z order.
func NewCubeTexture(name string, faces [6]image.Image) *Texture {
	t := newTexture(name, gpu.TextureCube)
	t.FlipY = false
	t.SetSources(faces[:]...)
	return t
}

// NewArrayTexture wraps one raw slice per layer as a 2D array texture.
func NewArrayTexture(name string, layers [][]byte, width, height int, format gpu.Format, typ gpu.DataType) *Texture {
	t := NewDataTexture(name, nil, width, height, format, typ)
	t.Target = gpu.Texture2DArray
	t.Depth = len(layers)
	t.Data = layers
	return t
}

// New3DTexture wraps depth slices stored back to back.
func New3DTexture(name string, data []byte, width, height, depth int, format gpu.Format, typ gpu.DataType) *Texture {
	t := NewDataTexture(name, data, width, height, format, typ)
	t.Target = gpu.Texture3D
	t.Depth = depth
	return t
}

// SetSources replaces the images and marks the texture for upload.
func (t *Texture) SetSources(imgs ...image.Image) {
	t.Sources = imgs
	t.Data = nil
	if len(imgs) > 0 && imgs[0] != nil {
		b := imgs[0].Bounds()
		t.Width, t.Height = b.Dx(), b.Dy()
	}
	t.Format, t.Type = gpu.RGBA, gpu.UnsignedByte
	t.Version++
}

// NeedsUpdate marks pixels or parameters as changed.
func (t *Texture) NeedsUpdate() { t.Version++ }

// AddLayerUpdate queues a single array layer for the next upload.
func (t *Texture) AddLayerUpdate(layer int) { t.LayerUpdates = append(t.LayerUpdates, layer) }

func (t *Texture) ClearLayerUpdates() { t.LayerUpdates = t.LayerUpdates[:0] }

// Ready reports whether pixel data is available for upload.
func (t *Texture) Ready() bool {
	if t.IsRenderTarget {
		return true
	}
	if t.Version == 0 || t.Width <= 0 || t.Height <= 0 {
		return false
	}
	if len(t.Data) > 0 {
		return true
	}
	if len(t.Sources) == 0 {
		return false
	}
	for _, img := range t.Sources {
		if img == nil {
			return false
		}
	}
	return true
}

// Sampler returns the sampling parameters.
func (t *Texture) Sampler() gpu.SamplerParams {
	return gpu.SamplerParams{
		WrapS:      t.WrapS,
		WrapT:      t.WrapT,
		WrapR:      t.WrapR,
		MinFilter:  t.MinFilter,
		MagFilter:  t.MagFilter,
		Anisotropy: t.Anisotropy,
	}
}

// Dispose notifies renderers to delete their GPU copy.
func (t *Texture) Dispose() { t.fire() }

// LoadTexture reads a PNG or JPEG file from disk as an sRGB 2D texture.
// The image is converted to RGBA8.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", path, err)
	}

	t := NewTexture(path, ToRGBA(img))
	t.ColorSpace = SRGBColorSpace
	return t, nil
}

// ToRGBA converts img to a tightly packed *image.RGBA at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// NewSolidTexture creates a 1x1 texture with the given RGBA colour.
func NewSolidTexture(name string, r, g, b, a uint8) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{r, g, b, a})
	t := NewTexture(name, img)
	t.GenerateMipmaps = false
	t.MinFilter = gpu.Nearest
	t.MagFilter = gpu.Nearest
	return t
}
