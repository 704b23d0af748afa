package typeahead

import (
	"testing"

	"github.com/kylelemons/modaline/keycode"
)

func checkInvariants(t *testing.T, b *Buffer) {
	t.Helper()
	if got := b.buf[b.off+b.len]; got != 0 {
		t.Fatalf("terminator byte = %d, want 0", got)
	}
	if b.maplen < 0 || b.maplen > b.len {
		t.Fatalf("maplen %d out of [0,%d]", b.maplen, b.len)
	}
	if b.silent < 0 || b.silent > b.len {
		t.Fatalf("silent %d out of [0,%d]", b.silent, b.len)
	}
	if b.noAbbr < 0 || b.noAbbr > b.len {
		t.Fatalf("noAbbr %d out of [0,%d]", b.noAbbr, b.len)
	}
}

func TestInsertAppendAndPrepend(t *testing.T) {
	b := New()
	if err := b.Insert([]byte("world"), RemapAll, 0, false, false); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, b)
	if err := b.Insert([]byte("hello "), RemapAll, 0, false, false); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "hello world"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestInsertMiddle(t *testing.T) {
	b := New()
	b.Insert([]byte("helo"), RemapAll, 0, false, false)
	b.Insert([]byte("l"), RemapAll, 3, false, false)
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "hello"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestInsertForcesReallocWhenLarge(t *testing.T) {
	b := New()
	big := make([]byte, 10*Margin)
	for i := range big {
		big[i] = 'x'
	}
	if err := b.Insert(big, RemapAll, 0, false, false); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, b)
	if b.Len() != len(big) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(big))
	}
}

func TestDeleteFrontFastPath(t *testing.T) {
	b := New()
	b.Insert([]byte("abcdef"), RemapAll, 0, false, false)
	b.Delete(2, 0)
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "cdef"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestDeleteMiddle(t *testing.T) {
	b := New()
	b.Insert([]byte("abcdef"), RemapAll, 0, false, false)
	b.Delete(2, 1) // remove "bc"
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "adef"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestMapLenAndSilentCounters(t *testing.T) {
	b := New()
	b.Insert([]byte("xy"), RemapAll, 0, true, true)
	checkInvariants(t, b)
	if b.MapLen() != 2 || b.Silent() != 2 {
		t.Fatalf("MapLen=%d Silent=%d, want 2,2", b.MapLen(), b.Silent())
	}
	b.Insert([]byte("z"), RemapNone, 2, false, false)
	checkInvariants(t, b)
	if b.MapLen() != 2 {
		t.Fatalf("MapLen after unrelated append = %d, want 2", b.MapLen())
	}
	b.Delete(1, 0)
	checkInvariants(t, b)
	if b.MapLen() != 1 || b.Silent() != 1 {
		t.Fatalf("MapLen=%d Silent=%d after delete, want 1,1", b.MapLen(), b.Silent())
	}
}

func TestRemapMaskTracksPolicy(t *testing.T) {
	b := New()
	b.Insert([]byte("ab"), RemapNone, 0, false, false)
	_, mappable := b.ByteAt(0)
	if mappable {
		t.Fatalf("RemapNone byte reported mappable")
	}
	b.Insert([]byte("cd"), RemapScript, 2, false, false)
	scriptOnly, _, _ := b.RemapMaskAt(2)
	if !scriptOnly {
		t.Fatalf("RemapScript byte not classified scriptOnly")
	}
}

func TestChangeCountBumpsOnMutation(t *testing.T) {
	b := New()
	c0 := b.ChangeCount()
	b.Insert([]byte("a"), RemapAll, 0, false, false)
	if b.ChangeCount() == c0 {
		t.Fatalf("ChangeCount did not advance after Insert")
	}
	c1 := b.ChangeCount()
	b.Delete(1, 0)
	if b.ChangeCount() == c1 {
		t.Fatalf("ChangeCount did not advance after Delete")
	}
}

func TestFlushMinimalDropsOnlyMappedPrefix(t *testing.T) {
	b := New()
	b.Insert([]byte("typed"), RemapAll, 0, false, false)
	b.Insert([]byte("map"), RemapAll, 0, true, false)
	checkInvariants(t, b)
	b.Flush(FlushMinimal)
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "typed"; got != want {
		t.Fatalf("after FlushMinimal, Bytes() = %q, want %q", got, want)
	}
}

func TestFlushInputDropsEverything(t *testing.T) {
	b := New()
	b.Insert([]byte("abc"), RemapAll, 0, false, false)
	b.Flush(FlushInput)
	checkInvariants(t, b)
	if !b.Empty() {
		t.Fatalf("expected empty after FlushInput")
	}
}

func TestPutBackChar(t *testing.T) {
	b := New()
	b.Insert([]byte("x"), RemapAll, 0, false, false)
	if err := b.PutBackChar(keycode.Key{Rune: 'a'}); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, b)
	if got, want := string(b.Bytes()), "ax"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestOverflowRejected(t *testing.T) {
	b := New()
	huge := make([]byte, maxSize+1)
	if err := b.Insert(huge, RemapAll, 0, false, false); err != ErrOverflow {
		t.Fatalf("Insert huge = %v, want ErrOverflow", err)
	}
}
