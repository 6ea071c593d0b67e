package resource

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind identifies the host resource type a handle refers to.
type Kind uint32

const (
	KindUnknown Kind = iota
	KindAdapter
	KindDevice
	KindBuffer
	KindFrameBuffer
	KindGraphicsContext
	KindSurface
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindAdapter:         "gpu adapter",
	KindDevice:          "gpu device",
	KindBuffer:          "gpu buffer",
	KindFrameBuffer:     "frame buffer",
	KindGraphicsContext: "graphics context",
	KindSurface:         "surface",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Dropper is implemented by resource values that hold host state beyond
// their handle.
type Dropper interface {
	Drop()
}

// EventType tells inserts from drops.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event describes one change to a table.
type Event struct {
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer is called after every insert and drop, outside the table lock.
type Observer func(Event)
