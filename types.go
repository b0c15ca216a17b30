package unifs

import "strings"

// FileMode selects how OpenFile treats an existing or missing file.
type FileMode int

const (
	// ModeCreateNew creates the file and fails if it exists.
	ModeCreateNew FileMode = iota + 1
	// ModeCreate creates the file or truncates an existing one.
	ModeCreate
	// ModeOpen opens an existing file.
	ModeOpen
	// ModeOpenOrCreate opens the file, creating it when missing.
	ModeOpenOrCreate
	// ModeTruncate opens an existing file and truncates it to zero bytes.
	ModeTruncate
	// ModeAppend opens or creates the file and seeks to its end. Write only.
	ModeAppend
)

func (m FileMode) Valid() bool { return m >= ModeCreateNew && m <= ModeAppend }

func (m FileMode) String() string {
	switch m {
	case ModeCreateNew:
		return "CreateNew"
	case ModeCreate:
		return "Create"
	case ModeOpen:
		return "Open"
	case ModeOpenOrCreate:
		return "OpenOrCreate"
	case ModeTruncate:
		return "Truncate"
	case ModeAppend:
		return "Append"
	}
	return "FileMode(?)"
}

// FileAccess is the access requested by a handle.
type FileAccess int

const (
	AccessRead      FileAccess = 1
	AccessWrite     FileAccess = 2
	AccessReadWrite FileAccess = AccessRead | AccessWrite
)

func (a FileAccess) Valid() bool { return a >= AccessRead && a <= AccessReadWrite }

func (a FileAccess) CanRead() bool  { return a&AccessRead != 0 }
func (a FileAccess) CanWrite() bool { return a&AccessWrite != 0 }

func (a FileAccess) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	case AccessReadWrite:
		return "ReadWrite"
	}
	return "FileAccess(?)"
}

// FileShare is the access a handle allows other handles to have at the same time.
type FileShare int

const (
	ShareNone      FileShare = 0
	ShareRead      FileShare = 1
	ShareWrite     FileShare = 2
	ShareReadWrite FileShare = ShareRead | ShareWrite
	ShareDelete    FileShare = 4
)

func (s FileShare) Valid() bool { return s >= 0 && s <= ShareReadWrite|ShareDelete }

// Allows reports whether a handle holding share s tolerates a new handle
// requesting access a.
func (s FileShare) Allows(a FileAccess) bool {
	if a.CanRead() && s&ShareRead == 0 {
		return false
	}
	if a.CanWrite() && s&ShareWrite == 0 {
		return false
	}
	return true
}

// FileAttributes is a bitmask of entry attributes.
type FileAttributes int

const (
	AttrReadOnly  FileAttributes = 0x1
	AttrHidden    FileAttributes = 0x2
	AttrSystem    FileAttributes = 0x4
	AttrDirectory FileAttributes = 0x10
	AttrArchive   FileAttributes = 0x20
	AttrNormal    FileAttributes = 0x80
	AttrTemporary FileAttributes = 0x100
)

func (a FileAttributes) Has(flag FileAttributes) bool { return a&flag == flag }

func (a FileAttributes) String() string {
	if a == 0 {
		return "0"
	}
	names := []struct {
		flag FileAttributes
		name string
	}{
		{AttrReadOnly, "ReadOnly"},
		{AttrHidden, "Hidden"},
		{AttrSystem, "System"},
		{AttrDirectory, "Directory"},
		{AttrArchive, "Archive"},
		{AttrNormal, "Normal"},
		{AttrTemporary, "Temporary"},
	}
	var parts []string
	for _, n := range names {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// SearchOption selects the depth of an enumeration.
type SearchOption int

const (
	TopDirectoryOnly SearchOption = iota
	AllDirectories
)

func (o SearchOption) Valid() bool { return o == TopDirectoryOnly || o == AllDirectories }

// SearchTarget selects which entry kinds an enumeration yields.
type SearchTarget int

const (
	TargetBoth SearchTarget = iota
	TargetFile
	TargetDirectory
)

func (t SearchTarget) Valid() bool { return t >= TargetBoth && t <= TargetDirectory }

// Accepts reports whether an entry of the given kind is included.
func (t SearchTarget) Accepts(isDir bool) bool {
	switch t {
	case TargetFile:
		return !isDir
	case TargetDirectory:
		return isDir
	}
	return true
}

// ChangeKind is the type of a [WatchEvent].
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Deleted
	Changed
	Renamed
	Error
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "Created"
	case Deleted:
		return "Deleted"
	case Changed:
		return "Changed"
	case Renamed:
		return "Renamed"
	case Error:
		return "Error"
	}
	return "ChangeKind(?)"
}

// NotifyFilters selects which changes a watcher reports.
type NotifyFilters int

const (
	NotifyFileName      NotifyFilters = 0x1
	NotifyDirectoryName NotifyFilters = 0x2
	NotifyAttributes    NotifyFilters = 0x4
	NotifySize          NotifyFilters = 0x8
	NotifyLastWrite     NotifyFilters = 0x10
	NotifyLastAccess    NotifyFilters = 0x20
	NotifyCreationTime  NotifyFilters = 0x40
	NotifySecurity      NotifyFilters = 0x100

	NotifyDefault = NotifyFileName | NotifyDirectoryName | NotifyLastWrite
)
