package scan

// Kind classifies the outcome of scanning one directory subtree.
type Kind int

const (
	// KindScanned means size and file count are both valid aggregates.
	KindScanned Kind = iota

	// KindSuppressed means the byte size is valid but the file count is
	// withheld from ancestor totals. Applied to version-control metadata
	// directories (".git") so repository internals don't inflate counts.
	KindSuppressed

	// KindDenied means the directory could not be opened or statted.
	KindDenied

	// KindVanished means the directory disappeared between enumeration
	// and descent.
	KindVanished

	// KindCrossDevice means the directory sits on a different device than
	// the scan root and was not descended into.
	KindCrossDevice

	// KindExcluded means the directory matched an excluded path prefix.
	KindExcluded

	// KindCanceled means the scan was shut down while this subtree was
	// in progress; any partial totals are discarded.
	KindCanceled
)

// String returns the lowercase name of the kind for log output.
func (k Kind) String() string {
	switch k {
	case KindScanned:
		return "scanned"
	case KindSuppressed:
		return "suppressed"
	case KindDenied:
		return "denied"
	case KindVanished:
		return "vanished"
	case KindCrossDevice:
		return "cross-device"
	case KindExcluded:
		return "excluded"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of scanning one directory subtree.
// Size and Files are full recursive aggregates over the subtree; whether
// each is meaningful depends on Kind.
type Result struct {
	Size  int64
	Files int64
	Kind  Kind
}

// Sized reports whether the result carries a usable byte total.
func (r Result) Sized() bool {
	return r.Kind == KindScanned || r.Kind == KindSuppressed
}

// Counted reports whether the result carries a usable file count.
func (r Result) Counted() bool {
	return r.Kind == KindScanned
}

// Failed reports whether the subtree produced no usable data at all.
func (r Result) Failed() bool {
	return r.Kind == KindDenied || r.Kind == KindVanished || r.Kind == KindCanceled
}

// Pair flattens the result into the (size, file_count) convention used at
// package boundaries: -1 marks a failed value, a suppressed count is -1
// with the size intact, and skipped subtrees are (0, 0) so parent totals
// are unaffected.
func (r Result) Pair() (size, files int64) {
	switch r.Kind {
	case KindScanned:
		return r.Size, r.Files
	case KindSuppressed:
		return r.Size, -1
	case KindCrossDevice, KindExcluded:
		return 0, 0
	default:
		return -1, -1
	}
}
