package linkstate

import "testing"

func TestLinkRunning(t *testing.T) {
	l := Link{Flags: linkFlagRunning | 0x1}
	if !l.Running() {
		t.Fatal("expected Running() true")
	}
	l2 := Link{Flags: 0x1}
	if l2.Running() {
		t.Fatal("expected Running() false")
	}
}

func TestSignificantlyDiffers(t *testing.T) {
	a := Link{Index: 1, Name: "eth0", Kind: KindOther, Flags: linkFlagRunning}
	b := a
	if significantlyDiffers(&a, &b) {
		t.Fatal("identical links must not differ")
	}

	b.Name = "eth1"
	if !significantlyDiffers(&a, &b) {
		t.Fatal("name change must be significant")
	}

	b = a
	b.Flags = 0
	if !significantlyDiffers(&a, &b) {
		t.Fatal("RUNNING flag change must be significant")
	}

	b = a
	b.TSCaps = TimestampingCapsHardwareRx
	if significantlyDiffers(&a, &b) {
		t.Fatal("TSCaps change is not in the spec's significance list")
	}
}

func TestDeriveSlave(t *testing.T) {
	if deriveSlave(&Link{MasterIndex: 0}, false) {
		t.Fatal("expected false with no master and no explicit flag")
	}
	if !deriveSlave(&Link{MasterIndex: 7}, false) {
		t.Fatal("expected true from non-zero master index")
	}
	if !deriveSlave(&Link{MasterIndex: 0}, true) {
		t.Fatal("expected true from explicit flag")
	}
}
