package usbtmc

import (
	"strings"
	"testing"
)

func resetRegistry() {
	globalRegistry.mu.Lock()
	globalRegistry.sessions = make(map[int]*Session)
	globalRegistry.mu.Unlock()
}

func TestRegistryAssignsLowestFreeMinor(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	s1 := &Session{}
	s2 := &Session{}
	m1, err := globalRegistry.register(s1)
	if err != nil {
		t.Fatalf("register s1: %v", err)
	}
	if m1 != 1 {
		t.Fatalf("first minor = %d, want 1 (minor 0 is reserved)", m1)
	}
	m2, err := globalRegistry.register(s2)
	if err != nil {
		t.Fatalf("register s2: %v", err)
	}
	if m2 != 2 {
		t.Fatalf("second minor = %d, want 2", m2)
	}

	globalRegistry.unregister(m1)
	s3 := &Session{}
	m3, err := globalRegistry.register(s3)
	if err != nil {
		t.Fatalf("register s3: %v", err)
	}
	if m3 != 1 {
		t.Fatalf("minor after freeing 1 = %d, want reuse of 1", m3)
	}
}

func TestEnumerationTableFormat(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	s1 := &Session{mfr: "Acme", prod: "Scope1", serial: "SN1"}
	s3 := &Session{mfr: "Acme", prod: "Scope3", serial: "SN3"}
	globalRegistry.sessions[1] = s1
	globalRegistry.sessions[3] = s3

	table := EnumerationTable()
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != "Minor Number\tManufacturer\tProduct\tSerial Number" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "001\tAcme\tScope1\tSN1" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if lines[2] != "003\tAcme\tScope3\tSN3" {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestInstrumentDataUnknownMinor(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	_, _, _, err := InstrumentData(7)
	if err == nil || !IsKind(err, InvalidArgument) {
		t.Fatalf("InstrumentData on an unattached minor: got %v, want InvalidArgument", err)
	}
}

func TestInstrumentDataTruncatesEachFieldIndependently(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	longSerial := strings.Repeat("9", 300)
	shortProduct := "P"
	globalRegistry.sessions[1] = &Session{mfr: "M", prod: shortProduct, serial: longSerial}

	mfr, prod, serial, err := InstrumentData(1)
	if err != nil {
		t.Fatalf("InstrumentData: %v", err)
	}
	if prod != shortProduct {
		t.Fatalf("product = %q, want %q", prod, shortProduct)
	}
	if len(serial) != instrumentDataMaxLen {
		t.Fatalf("serial length = %d, want %d (truncated from its own length, not the product's)", len(serial), instrumentDataMaxLen)
	}
	if mfr != "M" {
		t.Fatalf("manufacturer = %q, want %q", mfr, "M")
	}
}
