//go:build linux

package memio

import (
	"os"
	"testing"
)

func TestParseMapsLine(t *testing.T) {
	cases := []struct {
		line string
		want Region
		ok   bool
	}{
		{
			line: "00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/cat",
			want: Region{Start: 0x00400000, Size: 0x00452000 - 0x00400000, Writable: false, Executable: true, BackingPath: "/usr/bin/cat"},
			ok:   true,
		},
		{
			line: "7f2c3a000000-7f2c3a021000 rw-p 00000000 00:00 0          [heap]",
			want: Region{Start: 0x7f2c3a000000, Size: 0x7f2c3a021000 - 0x7f2c3a000000, Writable: true, Executable: false, BackingPath: "[heap]"},
			ok:   true,
		},
		{
			line: "garbage",
			ok:   false,
		},
	}
	for _, c := range cases {
		got, ok := parseMapsLine(c.line)
		if ok != c.ok {
			t.Fatalf("parseMapsLine(%q) ok = %v, want %v", c.line, ok, c.ok)
		}
		if !ok {
			continue
		}
		if got != c.want {
			t.Errorf("parseMapsLine(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}
}

func TestAttachProcessNotFound(t *testing.T) {
	m := New()
	_, err := m.Attach(1 << 30) // implausible PID
	if err == nil {
		t.Fatal("expected error attaching to nonexistent PID")
	}
	if !isKind(err, KindProcessNotFound) {
		t.Errorf("expected KindProcessNotFound, got %v", err)
	}
}

func isKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func TestAttachSelf(t *testing.T) {
	m := New()
	h, err := m.Attach(os.Getpid())
	if err != nil {
		t.Fatalf("attach self: %v", err)
	}
	if h.PID != os.Getpid() {
		t.Errorf("handle PID = %d, want %d", h.PID, os.Getpid())
	}
}
