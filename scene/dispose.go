package scene

// disposer fans a Dispose call out to registered listeners. Renderers use
// it to release the GPU resources they created for an object.
type disposer struct {
	listeners []func()
}

// OnDispose registers fn to run once when the owner is disposed.
func (d *disposer) OnDispose(fn func()) {
	d.listeners = append(d.listeners, fn)
}

// Listeners returns how many listeners are waiting for Dispose.
func (d *disposer) Listeners() int { return len(d.listeners) }

func (d *disposer) fire() {
	listeners := d.listeners
	d.listeners = nil
	for _, fn := range listeners {
		fn()
	}
}
