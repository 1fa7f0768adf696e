package valuetype

import (
	"math"
	"testing"
)

func TestEncodeFormatRoundTrip(t *testing.T) {
	cases := []struct {
		typ  Type
		text string
	}{
		{Byte, "42"},
		{Short, "-1234"},
		{Int, "-70000"},
		{Int64, "9000000000"},
		{Float, "3.14"},
		{Double, "2.718281828"},
	}
	for _, c := range cases {
		tv, err := Encode(c.typ, c.text)
		if err != nil {
			t.Fatalf("Encode(%s, %q): %v", c.typ, c.text, err)
		}
		formatted, err := Format(c.typ, tv.Bytes)
		if err != nil {
			t.Fatalf("Format(%s, %x): %v", c.typ, tv.Bytes, err)
		}
		tv2, err := Encode(c.typ, formatted)
		if err != nil {
			t.Fatalf("re-Encode(%s, %q): %v", c.typ, formatted, err)
		}
		if string(tv.Bytes) != string(tv2.Bytes) {
			t.Errorf("%s: round trip mismatch: %x != %x", c.typ, tv.Bytes, tv2.Bytes)
		}
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	tv, err := Encode(Short, "0x3412")
	if err == nil {
		t.Fatalf("expected decimal-only parse to reject hex, got %x", tv.Bytes)
	}
	tv, err = Encode(Short, "13330") // 0x3412 == 13330
	if err != nil {
		t.Fatal(err)
	}
	if tv.Bytes[0] != 0x12 || tv.Bytes[1] != 0x34 {
		t.Errorf("expected little-endian [12 34], got %x", tv.Bytes)
	}
}

func TestStringUtf16Encoding(t *testing.T) {
	b := EncodeUTF16LE("AB")
	want := []byte{'A', 0, 'B', 0}
	if string(b) != string(want) {
		t.Errorf("EncodeUTF16LE(\"AB\") = %x, want %x", b, want)
	}
}

func TestEpsilonLaw(t *testing.T) {
	old := 100.0
	eps := Epsilon(Float, old)
	if eps != math.Max(1e-4, 0.001*100.0) {
		t.Errorf("Epsilon(Float, 100) = %v", eps)
	}
	if got := Epsilon(Double, 0); got != 1e-6 {
		t.Errorf("Epsilon(Double, 0) = %v, want 1e-6", got)
	}
}

func TestIsInteger(t *testing.T) {
	for _, typ := range []Type{Byte, Short, Int, Int64} {
		if !IsInteger(typ) {
			t.Errorf("%s should be integer", typ)
		}
	}
	for _, typ := range []Type{Float, Double, String} {
		if IsInteger(typ) {
			t.Errorf("%s should not be integer", typ)
		}
	}
}

func TestParseTypeName(t *testing.T) {
	got, err := ParseTypeName("Int")
	if err != nil || got != Int {
		t.Errorf("ParseTypeName(Int) = %v, %v", got, err)
	}
	if _, err := ParseTypeName("nope"); err == nil {
		t.Error("expected error for unknown type name")
	}
}
