package gpu

import (
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNoAdapter is returned when no enabled backend can provide an adapter.
	ErrNoAdapter = errors.New("gpu: no suitable adapter")

	// ErrReleased is returned by an instance whose last reference was released.
	ErrReleased = errors.New("gpu: instance released")

	// ErrDestroyed is returned by a device or buffer after Destroy.
	ErrDestroyed = errors.New("gpu: object destroyed")

	// ErrOutOfRange is returned for buffer accesses past the end of the buffer.
	ErrOutOfRange = errors.New("gpu: access out of range")

	// ErrInvalidSize is returned for zero or oversized allocations.
	ErrInvalidSize = errors.New("gpu: invalid size")

	// ErrDeviceMemory is returned when an allocation would exceed the
	// device's total buffer budget.
	ErrDeviceMemory = errors.New("gpu: device memory limit exceeded")
)

// Backends is a bit set of graphics backends.
type Backends uint32

const (
	BackendVulkan Backends = 1 << iota
	BackendMetal
	BackendDX12
	BackendGL
	BackendBrowserWebGPU
	BackendSoftware

	// BackendsAll enables every backend.
	BackendsAll = BackendVulkan | BackendMetal | BackendDX12 | BackendGL | BackendBrowserWebGPU | BackendSoftware
)

var backendNames = []struct {
	b    Backends
	name string
}{
	{BackendVulkan, "vulkan"},
	{BackendMetal, "metal"},
	{BackendDX12, "dx12"},
	{BackendGL, "gl"},
	{BackendBrowserWebGPU, "browser-webgpu"},
	{BackendSoftware, "software"},
}

func (b Backends) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	for _, n := range backendNames {
		if b&n.b != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseBackends parses a comma or pipe separated backend list. "all" and
// the empty string select BackendsAll.
func ParseBackends(s string) (Backends, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return BackendsAll, nil
	}
	var out Backends
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range backendNames {
			if n.name == part {
				out |= n.b
				found = true
				break
			}
		}
		if !found {
			return 0, errors.New("gpu: unknown backend " + part)
		}
	}
	return out, nil
}

// Flags tune instance behavior.
type Flags uint32

const (
	FlagDebug Flags = 1 << iota
	FlagValidation
)

// FlagsFromBuildConfig enables debug and validation for binaries built with
// optimizations disabled (-gcflags=all=-N -l).
func FlagsFromBuildConfig() Flags {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return 0
	}
	for _, s := range info.Settings {
		if s.Key == "-gcflags" && strings.Contains(s.Value, "-N") {
			return FlagDebug | FlagValidation
		}
	}
	return 0
}

// InstanceDescriptor configures a new Instance.
type InstanceDescriptor struct {
	Backends Backends
	Flags    Flags
}

// Instance is the process-wide graphics instance. It is safe for concurrent
// use and reference counted: every holder calls Release once.
type Instance struct {
	desc    InstanceDescriptor
	devices map[*Device]struct{}
	refs    atomic.Int32
	mu      sync.Mutex
}

// NewInstance creates an instance holding one reference.
func NewInstance(desc InstanceDescriptor) *Instance {
	inst := &Instance{
		desc:    desc,
		devices: make(map[*Device]struct{}),
	}
	inst.refs.Store(1)
	return inst
}

// Retain adds a reference and returns the instance.
func (i *Instance) Retain() *Instance {
	i.refs.Add(1)
	return i
}

// Release drops a reference. The last release destroys every device.
func (i *Instance) Release() {
	if i.refs.Add(-1) != 0 {
		return
	}
	i.mu.Lock()
	devices := i.devices
	i.devices = nil
	i.mu.Unlock()
	for d := range devices {
		d.Destroy()
	}
}

// Refs returns the current reference count.
func (i *Instance) Refs() int {
	return int(i.refs.Load())
}

// Backends returns the enabled backend set.
func (i *Instance) Backends() Backends {
	return i.desc.Backends
}

// Flags returns the instance flags.
func (i *Instance) Flags() Flags {
	return i.desc.Flags
}

// PowerPreference hints which adapter to pick.
type PowerPreference uint8

const (
	PowerDefault PowerPreference = iota
	PowerLow
	PowerHigh
)

// AdapterOptions narrow adapter selection. Zero Backends means any backend
// enabled on the instance.
type AdapterOptions struct {
	Backends        Backends
	PowerPreference PowerPreference
}

// RequestAdapter returns an adapter from one of the enabled backends.
// Only the in-process software rasterizer is available to the host.
func (i *Instance) RequestAdapter(opts AdapterOptions) (*Adapter, error) {
	if i.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	enabled := i.desc.Backends
	if opts.Backends != 0 {
		enabled &= opts.Backends
	}
	if enabled&BackendSoftware == 0 {
		return nil, ErrNoAdapter
	}
	return &Adapter{
		instance: i,
		info: AdapterInfo{
			Name:       "software rasterizer",
			Backend:    BackendSoftware,
			DeviceType: DeviceTypeCPU,
		},
	}, nil
}

func (i *Instance) track(d *Device) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.devices == nil {
		return ErrReleased
	}
	i.devices[d] = struct{}{}
	return nil
}

func (i *Instance) untrack(d *Device) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.devices, d)
}
