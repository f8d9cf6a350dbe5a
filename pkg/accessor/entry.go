package accessor

import "time"

// `EntryMode` classifies what a path names.
type EntryMode int

const (
	ModeUnknown EntryMode = iota
	ModeFile
	ModeDir
)

func (mode EntryMode) String() string {
	switch mode {
	case ModeFile:
		return "FILE"
	case ModeDir:
		return "DIR"
	default:
		return "UNKNOWN"
	}
}

// `Metadata` describes an object or directory. ContentLength and
// LastModified are optional; their presence is tracked with the has* flags
// rather than sentinel values so a genuinely zero-length or zero-time result
// is not mistaken for "unset".
type Metadata struct {
	Mode             EntryMode
	ContentLength    uint64
	hasContentLength bool
	LastModified     time.Time
	hasLastModified  bool
	ContentHash      string // e.g. an ETag; "" if not supplied by the backend
}

// `NewDirMetadata` returns the synthetic metadata this layer fabricates for
// directories it infers rather than fetches (the root, and directories
// confirmed only by a non-empty listing).
func NewDirMetadata() Metadata {
	return Metadata{Mode: ModeDir}
}

// `NewFileMetadata` builds file metadata carrying a known content length.
func NewFileMetadata(contentLength uint64) Metadata {
	return Metadata{Mode: ModeFile, ContentLength: contentLength, hasContentLength: true}
}

func (m Metadata) IsDir() bool  { return m.Mode == ModeDir }
func (m Metadata) IsFile() bool { return m.Mode == ModeFile }

func (m Metadata) HasContentLength() bool { return m.hasContentLength }

// `WithContentLength` returns a copy of m with ContentLength set and marked
// present; used by the completing writer to substitute its own tally when a
// backend's close() response carries no declared length.
func (m Metadata) WithContentLength(n uint64) Metadata {
	m.ContentLength = n
	m.hasContentLength = true
	return m
}

func (m Metadata) HasLastModified() bool { return m.hasLastModified }

func (m Metadata) WithLastModified(t time.Time) Metadata {
	m.LastModified = t
	m.hasLastModified = true
	return m
}

// `Entry` is a single item produced by a Lister: its full path (trailing "/"
// iff it is itself a directory) and whatever metadata the producing backend
// attached.
type Entry struct {
	Path string
	Meta Metadata
}
