package brokenio_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrew-torda/molcache/brokenio"
)

var tochop = [][]byte{
	[]byte(""),
	[]byte("a"),
	[]byte("abc"),
	[]byte("abcdefghij"),
	[]byte("abcdefghijklmn"),
}

var longstring = "0123456789012345678901234567890123456789"

// lenNonNull returns the length of byte array up to first null
func lenNonNull(a []byte) int {
	for i := 0; i < len(a); i++ {
		if a[i] == 0 {
			return i
		}
	}
	return len(a)
}

// checkNonNull gets two byte slices and sees if they are
// identical within the first characters which are not nulls
func checkNonNull(a, b []byte) bool {
	shorter := lenNonNull(a)
	if x := lenNonNull(b); x < shorter {
		shorter = x
	}
	return bytes.Equal(a[:shorter], b[:shorter])
}

// testFrac - wipe out different fractions of the input buffer.
func testFrac(t *testing.T, inb []byte, frac float32) {
	s := make([]byte, len(inb))
	rdr := brokenio.NewReader(io.NopCloser(bytes.NewReader(inb)))
	rdr.SetProbFail(1)
	rdr.SetFracFail(frac)
	_, err := rdr.Read(s)
	nuls := []byte{0}
	if !checkNonNull(inb, s) {
		t.Error("contents of strings changed with string", string(inb), "frac", frac)
	}
	switch frac {
	case 0.0:
		if n := bytes.Count(s, nuls); n > 0 {
			t.Error("want no null bytes, got", n)
		}
		if err != nil && len(inb) > 0 {
			t.Errorf("error reading from string \"%s\"", inb)
		}
	case 1.0: // This should be a string with all nulls and an error
		if n := bytes.Count(s, nuls); n != len(s) {
			t.Error("want", len(s), "nulls, got", n)
		}
		if len(s) > 0 && err == nil {
			t.Error("did not get error reading from", string(inb))
		}
	}
}

// TestTrashing takes strings and removes parts of them
func TestTrashing(t *testing.T) {
	fracs := [3]float32{0, 0.3, 1}
	for _, frac := range fracs {
		for _, inb := range tochop {
			testFrac(t, inb, frac)
		}
	}
}

func forZeroFile(prob float32) (n int, err error) {
	rdr := brokenio.NewReader(io.NopCloser(strings.NewReader(longstring)))
	rdr.SetProbZeroFile(prob)
	tmp := make([]byte, len(longstring))
	n, err = rdr.Read(tmp)
	rdr.Close()
	return n, err
}

func TestZeroFile(t *testing.T) {
	n, err := forZeroFile(1)
	if n > 0 {
		t.Error("should have received zero bytes")
	}
	if err != io.EOF {
		t.Errorf("Should have recieved EOF")
	}
	n, err = forZeroFile(0)
	if n < len(longstring) {
		t.Error("Wanted", len(longstring), "got", n)
	}
	if err != nil {
		t.Errorf("err reading from string")
	}
}

var failAfterTests = []struct {
	budget int
	want   int
}{
	{0, 0},
	{7, 7},
	{40, 40},
}

func TestFailAfter(t *testing.T) {
	for _, tst := range failAfterTests {
		rdr := brokenio.NewReader(io.NopCloser(strings.NewReader(longstring + longstring)))
		rdr.SetFailAfter(tst.budget)
		got, err := io.ReadAll(rdr)
		if !errors.Is(err, brokenio.ErrInjected) {
			t.Errorf("budget %d: wanted injected error, got %v", tst.budget, err)
		}
		if len(got) != tst.want || rdr.NBytes() != tst.want {
			t.Errorf("budget %d: got %d bytes, counted %d", tst.budget, len(got), rdr.NBytes())
		}
	}
}

// TestClose - check if the reader really is calling the correct close method.
func TestClose(t *testing.T) {
	name := filepath.Join(t.TempDir(), "testclose_test")
	if err := os.WriteFile(name, []byte(longstring), 0o644); err != nil {
		t.Fatal("Writing temp file failed", err)
	}
	fp, err := os.Open(name)
	if err != nil {
		t.Fatal("reading from tempfile, err = ", err)
	}
	rdr := brokenio.NewReader(fp)
	s := make([]byte, len(longstring))
	if n, err := rdr.Read(s); n != len(longstring) || err != nil {
		t.Error("Failed reading from tempfile, n, err = ", n, err)
	}
	if err = rdr.Close(); err != nil {
		t.Error("failed on close of reader")
	}
	if _, err := fp.Read(s); err == nil {
		t.Error("underlying file still open after Close")
	}
}
