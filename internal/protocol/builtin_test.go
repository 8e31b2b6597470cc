package protocol

import "testing"

func TestBuiltin_TableIsValid(t *testing.T) {
	if err := Validate(Builtin()); err != nil {
		t.Fatalf("Builtin table failed validation: %v", err)
	}
}

func TestBuiltin_Order(t *testing.T) {
	// Table order is the candidate tie-break order and part of the
	// decoder's observable behaviour.
	want := []string{"nexus-th", "ws-201", "wgr-318", "rg-708"}

	protocols := Builtin()
	if len(protocols) != len(want) {
		t.Fatalf("Expected %d builtin protocols, got %d", len(want), len(protocols))
	}
	for i, name := range want {
		if protocols[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, protocols[i].Name)
		}
	}
}

func TestBuiltin_ChecksumRoundTrip(t *testing.T) {
	for _, p := range Builtin() {
		if p.CRC.Algo == AlgoNone || p.CRC.Algo == "" {
			continue
		}

		t.Run(p.Name, func(t *testing.T) {
			bits := make([]byte, p.FrameBits)
			SetBits(bits, 0, 8, 0x5A)
			SetBits(bits, p.CRC.Check.Start, p.CRC.Check.Length, p.CRC.Compute(bits))

			if !p.CRC.Verify(bits) {
				t.Error("Expected computed check value to verify")
			}
		})
	}
}
