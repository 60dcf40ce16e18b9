package identity

import (
	"bytes"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestIPUI_N_Encode(t *testing.T) {
	ipui := IPUI{Type: IPUITypeN, IPEI: IPEI{EMC: 0x08ae, PSN: 0x83d1e}}

	data, bits, err := ipui.Bits()
	if err != nil {
		t.Fatalf("Bits failed: %v", err)
	}
	if bits != 40 {
		t.Errorf("Expected 40 bits, got %d", bits)
	}
	want := []byte{0x00, 0x8a, 0xe8, 0x3d, 0x1e}
	if !bytes.Equal(data, want) {
		t.Errorf("Expected % x, got % x", want, data)
	}

	parsed, err := ParseIPUI(data, bits)
	if err != nil {
		t.Fatalf("ParseIPUI failed: %v", err)
	}
	if parsed != ipui {
		t.Errorf("Round trip mismatch: %+v != %+v", parsed, ipui)
	}
}

func TestIPUI_Unimplemented(t *testing.T) {
	for _, typ := range []IPUIType{IPUITypeP, IPUITypeQ, IPUITypeR, IPUITypeS, IPUITypeU} {
		_, _, err := IPUI{Type: typ}.Bits()
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("type %s: expected ErrNotImplemented, got %v", typ, err)
		}
		data := []byte{byte(typ) << 4, 0, 0, 0, 0}
		if _, err := ParseIPUI(data, 40); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("type %s parse: expected ErrNotImplemented, got %v", typ, err)
		}
	}
}

func TestIPUI_Short(t *testing.T) {
	if _, err := ParseIPUI([]byte{0x00, 0x8a}, 16); !errors.Is(err, ErrShortIdentity) {
		t.Errorf("Expected ErrShortIdentity, got %v", err)
	}
	if _, err := ParseIPUI([]byte{0x00}, 40); !errors.Is(err, ErrShortIdentity) {
		t.Errorf("Expected ErrShortIdentity for length beyond data, got %v", err)
	}
}

func TestIPUI_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ipui IPUI
		switch rapid.IntRange(0, 2).Draw(t, "kind") {
		case 0:
			ipui = IPUI{Type: IPUITypeN, IPEI: IPEI{
				EMC: rapid.Uint16().Draw(t, "emc"),
				PSN: rapid.Uint32Range(0, 0xfffff).Draw(t, "psn"),
			}}
		case 1:
			ipui = IPUI{Type: IPUITypeO, Number: rapid.Uint64Range(0, 1<<60-1).Draw(t, "number")}
		case 2:
			ipui = IPUI{Type: IPUITypeT,
				EMC: rapid.Uint16().Draw(t, "emc"),
				FPN: rapid.Uint32Range(0, 0xfffff).Draw(t, "fpn"),
			}
		}

		data, bits, err := ipui.Bits()
		if err != nil {
			t.Fatalf("Bits: %v", err)
		}
		got, err := ParseIPUI(data, bits)
		if err != nil {
			t.Fatalf("ParseIPUI: %v", err)
		}
		if got != ipui {
			t.Fatalf("mismatch %+v != %+v", got, ipui)
		}
	})
}

func TestIPEI_String(t *testing.T) {
	e := IPEI{EMC: 0x08ae, PSN: 0x83d1e}
	s := e.String()
	if len(s) != 15 || s[:5] != "02222" {
		t.Errorf("Unexpected IPEI string %q", s)
	}
}

func TestDefaultTPUI(t *testing.T) {
	ipui := IPUI{Type: IPUITypeN, IPEI: IPEI{EMC: 0x08ae, PSN: 0x83d1e}}
	tpui := DefaultTPUI(ipui)
	if tpui != 0xe3d1e {
		t.Errorf("Expected 0xe3d1e, got %#x", uint32(tpui))
	}
	if tpui.Type() != TPUIIndividualDefault {
		t.Errorf("Expected individual default type, got %d", tpui.Type())
	}

	data, bits := tpui.Bits()
	parsed, err := ParseTPUI(data, bits)
	if err != nil {
		t.Fatalf("ParseTPUI failed: %v", err)
	}
	if parsed != tpui {
		t.Errorf("Expected %#x, got %#x", uint32(tpui), uint32(parsed))
	}
}

func TestTPUI_Type(t *testing.T) {
	tests := []struct {
		tpui TPUI
		want TPUIType
	}{
		{0x01234, TPUIIndividualAssigned},
		{0xc0001, TPUIConnectionlessGroup},
		{0xe1234, TPUIIndividualDefault},
		{0xf0001, TPUICallGroup},
		{0xf1000, TPUIEmergency},
	}
	for _, tt := range tests {
		if got := tt.tpui.Type(); got != tt.want {
			t.Errorf("TPUI %#x: expected %d, got %d", uint32(tt.tpui), tt.want, got)
		}
	}
}

func TestARI_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ari  ARI
		bits int
	}{
		{"class A", ARI{Class: ARIClassA, EMC: 0x08ae, FPN: 0x1f0ee}, 36},
		{"class B", ARI{Class: ARIClassB, EIC: 0x1234, FPN: 0x56, FPS: 0x7}, 31},
		{"class C", ARI{Class: ARIClassC, POC: 0xbeef, FPN: 0x01, FPS: 0xf}, 31},
		{"class D", ARI{Class: ARIClassD, GOP: 0xabcde, FPN: 0x99}, 31},
		{"class E", ARI{Class: ARIClassE, FIL: 0x4242, FPN: 0x123}, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, bits, err := tt.ari.Bits()
			if err != nil {
				t.Fatalf("Bits failed: %v", err)
			}
			if bits != tt.bits || bits != tt.ari.Len() {
				t.Errorf("Expected %d bits, got %d (Len %d)", tt.bits, bits, tt.ari.Len())
			}
			got, err := ParseARI(data, bits)
			if err != nil {
				t.Fatalf("ParseARI failed: %v", err)
			}
			if got != tt.ari {
				t.Errorf("Round trip mismatch: %+v != %+v", got, tt.ari)
			}

			data, bits, err = tt.ari.BitsWithSuffix(0x5a)
			if err != nil {
				t.Fatalf("BitsWithSuffix failed: %v", err)
			}
			got, rpn, err := ARIWithSuffix(data, bits)
			if err != nil {
				t.Fatalf("ARIWithSuffix failed: %v", err)
			}
			if got != tt.ari || rpn != 0x5a {
				t.Errorf("Suffix round trip mismatch: %+v rpn=%#x", got, rpn)
			}
		})
	}
}

func TestPARK_Matches(t *testing.T) {
	ari := ARI{Class: ARIClassA, EMC: 0x08ae, FPN: 0x1f0ee}
	park := PARK{ARI: ari, PLI: 31}

	if !park.Matches(ari) {
		t.Error("Expected PARK to match its own ARI")
	}

	other := ari
	other.FPN ^= 0x10000 // differs within the first 32 bits
	if park.Matches(other) {
		t.Error("Expected PARK not to match a different FPN")
	}

	lowBit := ari
	lowBit.FPN ^= 0x1 // last bit lies outside PLI+1 bits
	if !park.Matches(lowBit) {
		t.Error("Expected PARK to ignore bits past its length indicator")
	}
}
