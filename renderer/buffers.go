package renderer

import (
	"render-pipeline/gpu"
	"render-pipeline/scene"
)

type bufferRecord struct {
	buf     gpu.Buffer
	kind    gpu.BufferKind
	version uint64
	size    int
}

// BufferUploader mirrors attributes into device buffers. An attribute is
// re-sent only when its Version differs from the one last uploaded.
type BufferUploader struct {
	dev     gpu.Device
	info    *Info
	records map[*scene.Attribute]*bufferRecord
}

func NewBufferUploader(dev gpu.Device, info *Info) *BufferUploader {
	return &BufferUploader{dev: dev, info: info, records: make(map[*scene.Attribute]*bufferRecord)}
}

func attributeBytes(a *scene.Attribute) []byte {
	if a.Uint != nil {
		return gpu.Uint32Bytes(a.Uint)
	}
	return gpu.Float32Bytes(a.Float)
}

func checkAttribute(a *scene.Attribute) error {
	if a.ItemSize <= 0 {
		return &ResourceSizeMismatchError{Resource: "attribute", Reason: "item size must be positive"}
	}
	if a.Len()%a.ItemSize != 0 {
		return &ResourceSizeMismatchError{Resource: "attribute", Reason: "length is not a multiple of the item size"}
	}
	for _, r := range a.UpdateRanges {
		if r.Start < 0 || r.Count < 0 || r.Start+r.Count > a.Len() {
			return &ResourceSizeMismatchError{Resource: "attribute", Reason: "update range outside the data"}
		}
	}
	return nil
}

// Update uploads a if it changed and returns its buffer. A changed
// attribute of unchanged size sends only its registered update ranges
// (or all of it when none are registered); a resized one is reallocated.
func (u *BufferUploader) Update(a *scene.Attribute, kind gpu.BufferKind) (gpu.Buffer, error) {
	rec := u.records[a]
	if rec != nil && rec.version == a.Version {
		return rec.buf, nil
	}
	if err := checkAttribute(a); err != nil {
		return 0, err
	}

	data := attributeBytes(a)
	fresh := rec == nil
	if fresh {
		rec = &bufferRecord{buf: u.dev.CreateBuffer(), kind: kind}
		u.records[a] = rec
		u.info.Memory.Buffers++
	}

	switch {
	case fresh || rec.size != len(data):
		u.dev.BufferData(kind, rec.buf, data, a.Usage)
		rec.size = len(data)
	case len(a.UpdateRanges) == 0:
		u.dev.BufferSubData(kind, rec.buf, 0, data)
	default:
		for _, r := range a.UpdateRanges {
			if r.Count == 0 {
				continue
			}
			u.dev.BufferSubData(kind, rec.buf, r.Start*4, data[r.Start*4:(r.Start+r.Count)*4])
		}
	}
	a.ClearUpdateRanges()
	rec.version = a.Version
	Logger().Debug("buffer upload", "buffer", rec.buf, "bytes", len(data), "version", a.Version)
	return rec.buf, nil
}

// Buffer returns the device buffer of a, if uploaded.
func (u *BufferUploader) Buffer(a *scene.Attribute) (gpu.Buffer, bool) {
	rec, ok := u.records[a]
	if !ok {
		return 0, false
	}
	return rec.buf, true
}

// Version returns the version last uploaded for a.
func (u *BufferUploader) Version(a *scene.Attribute) (uint64, bool) {
	rec, ok := u.records[a]
	if !ok {
		return 0, false
	}
	return rec.version, true
}

// Remove deletes the buffer of a.
func (u *BufferUploader) Remove(a *scene.Attribute) {
	rec, ok := u.records[a]
	if !ok {
		return
	}
	u.dev.DeleteBuffer(rec.buf)
	delete(u.records, a)
	u.info.Memory.Buffers--
}

// Len returns the number of live buffers.
func (u *BufferUploader) Len() int { return len(u.records) }

// Dispose deletes every buffer.
func (u *BufferUploader) Dispose() {
	for a := range u.records {
		u.Remove(a)
	}
}

// forget drops all records without device calls; the handles died with
// the context.
func (u *BufferUploader) forget() {
	clear(u.records)
	u.info.Memory.Buffers = 0
}
