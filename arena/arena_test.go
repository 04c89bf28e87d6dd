package arena

import "testing"

func TestInitShutdown(t *testing.T) {
	a := New()

	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown()

	if err := a.Init(); err != ErrAlreadyInit {
		t.Errorf("second Init: got %v, want ErrAlreadyInit", err)
	}

	if a.ArenaBase() == 0 {
		t.Errorf("ArenaBase returned 0 after Init")
	}
}

func TestCommitZeroFilled(t *testing.T) {
	a := New()
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown()

	r := Region{Start: 0x1000, Size: 0x1000}
	if err := a.Commit(r, ReadWrite); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	b := a.Bytes(0x1000, 16)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zero-filled: %x", i, v)
		}
	}

	b[0] = 0xAB
	if a.Bytes(0x1000, 1)[0] != 0xAB {
		t.Errorf("write did not persist")
	}
}

func TestDecommitClears(t *testing.T) {
	a := New()
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown()

	r := Region{Start: 0x2000, Size: 0x1000}
	if err := a.Commit(r, ReadWrite); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	a.Bytes(0x2000, 4)[0] = 0xFF

	if err := a.Decommit(r); err != nil {
		t.Fatalf("Decommit: %v", err)
	}

	if err := a.Commit(r, ReadWrite); err != nil {
		t.Fatalf("re-Commit: %v", err)
	}
	if a.Bytes(0x2000, 4)[0] != 0 {
		t.Errorf("decommitted page retained stale data")
	}
}

func TestTranslate(t *testing.T) {
	a := New()
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown()

	got := a.Translate(0x1234)
	want := a.ArenaBase() + 0x1234
	if got != want {
		t.Errorf("Translate(0x1234) = %x, want %x", got, want)
	}
}

func TestAllocateExecutableRoundTrip(t *testing.T) {
	region, err := AllocateExecutable(16)
	if err != nil {
		t.Fatalf("AllocateExecutable: %v", err)
	}
	defer FreeExecutable(region)

	// RET for AArch64: 0xD65F03C0 little-endian.
	copy(region.Bytes(), []byte{0xC0, 0x03, 0x5F, 0xD6})

	if err := region.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if region.Addr() == 0 {
		t.Errorf("Addr() == 0 after Finalize")
	}
}
