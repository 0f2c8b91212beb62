package scene

// Layers is a 32-bit membership mask. A node is rendered by a camera
// when their masks share at least one bit.
type Layers uint32

// DefaultLayers has only layer 0 enabled.
const DefaultLayers Layers = 1

// Set makes layer the only enabled layer.
func (l *Layers) Set(layer uint) { *l = 1 << (layer & 31) }

func (l *Layers) Enable(layer uint) { *l |= 1 << (layer & 31) }

func (l *Layers) Disable(layer uint) { *l &^= 1 << (layer & 31) }

func (l *Layers) EnableAll() { *l = 0xffffffff }

func (l Layers) Test(other Layers) bool { return l&other != 0 }

func (l Layers) IsEnabled(layer uint) bool { return l&(1<<(layer&31)) != 0 }
