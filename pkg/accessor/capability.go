package accessor

import "sync"

// `Capability` lays out the operations a backend natively supports (or, once
// layered, the operations a caller above the completion layer may rely on).
// Fields not central to dispatch (presign/delete variants, byte-range reads,
// etc.) are still declared so a backend's full feature set round-trips
// through a single descriptor.
type Capability struct {
	Read              bool // Read  "read"                   default:false
	ReadWithRange     bool // Read  "read_with_range"        default:false
	Stat              bool // Stat  "stat"                    default:false
	Write             bool // Write "write"                   default:false
	WriteCanAppend    bool // Write "write_can_append"        default:false
	WriteCanEmpty     bool // Write "write_can_empty"         default:false
	CreateDir         bool // Dir   "create_dir"               default:false
	Delete            bool // Del   "delete"                   default:false
	List              bool // List  "list"                     default:false
	ListWithRecursive bool // List  "list_with_recursive"       default:false
	ListWithLimit     bool // List  "list_with_limit"           default:false
	Presign           bool // Sign  "presign"                   default:false
}

// `AccessorInfo` carries a backend's identity plus two capability views: the
// `native` view (what the backend itself implements, read by this layer when
// choosing a dispatch strategy) and the `full` view (what the layered
// accessor advertises to callers above it, which may promote capabilities
// this layer knows how to simulate). `native` is frozen at construction;
// `full` starts equal to `native` and is mutated exactly once, at layering
// time, by `UpdateFullCapability`.
type AccessorInfo struct {
	mu   sync.RWMutex
	name string

	native Capability
	full   Capability
}

// `NewAccessorInfo` wraps a backend's declared native capability set. Until a
// layer calls UpdateFullCapability, Native() and Full() agree.
func NewAccessorInfo(name string, native Capability) *AccessorInfo {
	return &AccessorInfo{
		name:   name,
		native: native,
		full:   native,
	}
}

// `Name` returns the backend identity this descriptor was constructed with
// (used only for diagnostics; never consulted for dispatch).
func (info *AccessorInfo) Name() string {
	return info.name
}

// `Native` returns the capability set the backend itself implements. Dispatch
// decisions in the completion layer must read this view, never Full().
func (info *AccessorInfo) Native() Capability {
	info.mu.RLock()
	defer info.mu.RUnlock()
	return info.native
}

// `Full` returns the capability set advertised to callers above the
// completion layer, which may include capabilities synthesized by this
// layer (see UpdateFullCapability).
func (info *AccessorInfo) Full() Capability {
	info.mu.RLock()
	defer info.mu.RUnlock()
	return info.full
}

// `UpdateFullCapability` rewrites the full capability view by applying fn to
// the current value. Callers (layers) are expected to call this once, at
// layer-attach time; the native view is never touched here.
func (info *AccessorInfo) UpdateFullCapability(fn func(Capability) Capability) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.full = fn(info.full)
}
