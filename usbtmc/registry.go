package usbtmc

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// registryCapacity is the static capacity of the process-wide session
// table. Minor 0 is reserved for the shared enumeration session, so at
// most registryCapacity-1 instruments can be attached at once.
const registryCapacity = 256

// instrumentRegistry maps minor numbers to attached sessions.  It is
// mutated only at attach and disconnect; readers see a snapshot copy.
type instrumentRegistry struct {
	mu       sync.Mutex
	sessions map[int]*Session
}

var globalRegistry = &instrumentRegistry{sessions: make(map[int]*Session)}

// register finds the lowest free minor number in [1, registryCapacity)
// and assigns it to s. Minor 0 is reserved for enumeration and is never
// handed out here.
func (r *instrumentRegistry) register(s *Session) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for minor := 1; minor < registryCapacity; minor++ {
		if _, taken := r.sessions[minor]; !taken {
			r.sessions[minor] = s
			return minor, nil
		}
	}
	return 0, newErr(Resource, "register", errRegistryFull)
}

func (r *instrumentRegistry) unregister(minor int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, minor)
}

func (r *instrumentRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// lookup returns the session attached at minor, or an InvalidArgument
// error if none is attached there.
func (r *instrumentRegistry) lookup(minor int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[minor]
	if !ok {
		return nil, newErr(InvalidArgument, "lookup", errNoSuchMinor)
	}
	return s, nil
}

// snapshot returns every attached (minor, session) pair sorted by
// minor number, for the enumeration table.
func (r *instrumentRegistry) snapshot() []registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]registryEntry, 0, len(r.sessions))
	for minor, s := range r.sessions {
		entries = append(entries, registryEntry{minor: minor, mfr: s.mfr, prod: s.prod, serial: s.serial})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].minor < entries[j].minor })
	return entries
}

type registryEntry struct {
	minor          int
	mfr, prod, serial string
}

var errRegistryFull = fmt.Errorf("no free minor number (capacity %d)", registryCapacity)
var errNoSuchMinor = fmt.Errorf("no instrument attached at that minor number")

// EnumerationTable renders the shared enumeration surface: a
// tab-separated table with header
// "Minor Number\tManufacturer\tProduct\tSerial Number", one row per
// attached instrument formatted as "%03d\tmfr\tprod\tserial".
func EnumerationTable() string {
	var b strings.Builder
	b.WriteString("Minor Number\tManufacturer\tProduct\tSerial Number\n")
	for _, e := range globalRegistry.snapshot() {
		fmt.Fprintf(&b, "%03d\t%s\t%s\t%s\n", e.minor, e.mfr, e.prod, e.serial)
	}
	return b.String()
}

// instrumentDataMaxLen is the 199-byte-plus-NUL limit InstrumentData
// truncates each field to.
const instrumentDataMaxLen = 199

// InstrumentData returns the manufacturer, product and serial number
// strings for the session attached at minor, each truncated
// independently to its own 199-byte limit. It fails with
// InvalidArgument if no instrument is attached there.
func InstrumentData(minor int) (mfr, prod, serial string, err error) {
	s, err := globalRegistry.lookup(minor)
	if err != nil {
		return "", "", "", err
	}
	return truncateField(s.mfr), truncateField(s.prod), truncateField(s.serial), nil
}

func truncateField(s string) string {
	if len(s) > instrumentDataMaxLen {
		return s[:instrumentDataMaxLen]
	}
	return s
}
