package gpu

import "sync"

// DeviceType classifies an adapter.
type DeviceType uint8

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegrated
	DeviceTypeDiscrete
	DeviceTypeVirtual
	DeviceTypeCPU
)

// AdapterInfo describes an adapter.
type AdapterInfo struct {
	Name       string
	Backend    Backends
	DeviceType DeviceType
}

// Adapter is a physical or software device.
type Adapter struct {
	instance *Instance
	info     AdapterInfo
}

// Info describes the adapter.
func (a *Adapter) Info() AdapterInfo {
	return a.info
}

const (
	// DefaultMaxBufferSize is the buffer size limit when a descriptor sets none.
	DefaultMaxBufferSize = 256 << 20

	// DefaultMaxTotalBytes bounds the live buffer bytes of a device when a
	// descriptor sets none.
	DefaultMaxTotalBytes = 1 << 30
)

// DeviceDescriptor configures a logical device.
type DeviceDescriptor struct {
	Label         string
	MaxBufferSize uint64
	MaxTotalBytes uint64
}

// RequestDevice opens a logical device on the adapter.
func (a *Adapter) RequestDevice(desc DeviceDescriptor) (*Device, error) {
	if desc.MaxBufferSize == 0 {
		desc.MaxBufferSize = DefaultMaxBufferSize
	}
	if desc.MaxTotalBytes == 0 {
		desc.MaxTotalBytes = DefaultMaxTotalBytes
	}
	d := &Device{
		adapter: a,
		desc:    desc,
		buffers: make(map[*Buffer]struct{}),
	}
	if err := a.instance.track(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Device is a logical device. Buffers are destroyed with it.
type Device struct {
	adapter   *Adapter
	buffers   map[*Buffer]struct{}
	desc      DeviceDescriptor
	allocated uint64
	mu        sync.Mutex
	destroyed bool
}

// Label returns the debug label given at creation.
func (d *Device) Label() string {
	return d.desc.Label
}

// Adapter returns the adapter the device was requested from.
func (d *Device) Adapter() *Adapter {
	return d.adapter
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
}

// Allocated returns the bytes held by the device's live buffers.
func (d *Device) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// CreateBuffer allocates a zeroed buffer. It fails with ErrDeviceMemory when
// the allocation would take the device past MaxTotalBytes.
func (d *Device) CreateBuffer(desc BufferDescriptor) (*Buffer, error) {
	if desc.Size == 0 || desc.Size > d.desc.MaxBufferSize {
		return nil, ErrInvalidSize
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if desc.Size > d.desc.MaxTotalBytes-d.allocated {
		return nil, ErrDeviceMemory
	}
	b := &Buffer{
		device: d,
		label:  desc.Label,
		size:   desc.Size,
		data:   make([]byte, desc.Size),
	}
	d.buffers[b] = struct{}{}
	d.allocated += desc.Size
	return b, nil
}

// Destroy releases the device and all of its buffers. Repeated calls are no-ops.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	buffers := d.buffers
	d.buffers = nil
	d.allocated = 0
	d.mu.Unlock()

	for b := range buffers {
		b.destroy()
	}
	d.adapter.instance.untrack(d)
}

// Drop implements resource.Dropper.
func (d *Device) Drop() {
	d.Destroy()
}

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *Device) forget(b *Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[b]; ok {
		delete(d.buffers, b)
		d.allocated -= b.size
	}
}

// Buffer is device memory.
type Buffer struct {
	device *Device
	label  string
	size   uint64
	data   []byte
	mu     sync.RWMutex
}

// Label returns the debug label given at creation.
func (b *Buffer) Label() string {
	return b.label
}

// Size returns the buffer size in bytes, or 0 once destroyed.
func (b *Buffer) Size() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.data))
}

// Write copies p into the buffer at offset.
func (b *Buffer) Write(offset uint64, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return ErrDestroyed
	}
	if offset > uint64(len(b.data)) || uint64(len(p)) > uint64(len(b.data))-offset {
		return ErrOutOfRange
	}
	copy(b.data[offset:], p)
	return nil
}

// Read fills p from the buffer at offset.
func (b *Buffer) Read(offset uint64, p []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return ErrDestroyed
	}
	if offset > uint64(len(b.data)) || uint64(len(p)) > uint64(len(b.data))-offset {
		return ErrOutOfRange
	}
	copy(p, b.data[offset:])
	return nil
}

// Destroy frees the buffer memory.
func (b *Buffer) Destroy() {
	if b.destroy() {
		b.device.forget(b)
	}
}

// Drop implements resource.Dropper.
func (b *Buffer) Drop() {
	b.Destroy()
}

func (b *Buffer) destroy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return false
	}
	b.data = nil
	return true
}
