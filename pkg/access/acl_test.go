package access

import (
	"testing"

	"github.com/dbehnke/dect-nwk/pkg/identity"
)

func ipei(emc uint16, psn uint32) identity.IPEI {
	return identity.IPEI{EMC: emc, PSN: psn}
}

func TestACL_Parse_Simple(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		wantErr  bool
		action   ACLAction
		numRules int
	}{
		{
			name:     "Permit all",
			rule:     "PERMIT:ALL",
			action:   ACLPermit,
			numRules: 1,
		},
		{
			name:     "Deny all",
			rule:     "deny:all",
			action:   ACLDeny,
			numRules: 1,
		},
		{
			name:     "Permit single IPEI",
			rule:     "PERMIT:08ae83d1e",
			action:   ACLPermit,
			numRules: 1,
		},
		{
			name:     "Permit manufacturer",
			rule:     "PERMIT:08ae*",
			action:   ACLPermit,
			numRules: 1,
		},
		{
			name:     "Deny multiple",
			rule:     "DENY:08ae83d1e, 0123*,00010000a-00010000f",
			action:   ACLDeny,
			numRules: 3,
		},
		{
			name:    "Invalid format no colon",
			rule:    "PERMIT_ALL",
			wantErr: true,
		},
		{
			name:    "Invalid action",
			rule:    "ALLOW:ALL",
			wantErr: true,
		},
		{
			name:    "Empty rule",
			rule:    "",
			wantErr: true,
		},
		{
			name:    "No rules",
			rule:    "PERMIT: ,",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acl, err := ParseACL(tt.rule)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if acl.Action != tt.action {
				t.Errorf("Expected action %v, got %v", tt.action, acl.Action)
			}

			if len(acl.Rules) != tt.numRules {
				t.Errorf("Expected %d rules, got %d", tt.numRules, len(acl.Rules))
			}
		})
	}
}

func TestACL_Check(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		ipei     identity.IPEI
		expected bool
	}{
		{"Permit all", "PERMIT:ALL", ipei(0x08ae, 0x83d1e), true},
		{"Deny all", "DENY:ALL", ipei(0x08ae, 0x83d1e), false},
		{"Permit specific - match", "PERMIT:08ae83d1e", ipei(0x08ae, 0x83d1e), true},
		{"Permit specific - other PSN", "PERMIT:08ae83d1e", ipei(0x08ae, 0x83d1f), false},
		{"Deny specific - match", "DENY:08ae83d1e", ipei(0x08ae, 0x83d1e), false},
		{"Deny specific - other", "DENY:08ae83d1e", ipei(0x0123, 0x00001), true},
		{"Permit manufacturer - match", "PERMIT:08ae*", ipei(0x08ae, 0x00042), true},
		{"Permit manufacturer - other", "PERMIT:08ae*", ipei(0x08af, 0x00042), false},
		{"Permit range - start", "PERMIT:08ae00000-08ae0ffff", ipei(0x08ae, 0x00000), true},
		{"Permit range - end", "PERMIT:08ae00000-08ae0ffff", ipei(0x08ae, 0x0ffff), true},
		{"Permit range - above", "PERMIT:08ae00000-08ae0ffff", ipei(0x08ae, 0x10000), false},
		{"Deny range - inside", "DENY:08ae00000-08ae0ffff", ipei(0x08ae, 0x00100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acl, err := ParseACL(tt.rule)
			if err != nil {
				t.Fatalf("Failed to parse ACL: %v", err)
			}

			result := acl.Check(tt.ipei)
			if result != tt.expected {
				t.Errorf("Check(%s) = %v, expected %v", tt.ipei, result, tt.expected)
			}
		})
	}
}

func TestACL_CheckIPUI(t *testing.T) {
	typeN := identity.IPUI{Type: identity.IPUITypeN, IPEI: ipei(0x08ae, 0x83d1e)}
	typeO := identity.IPUI{Type: identity.IPUITypeO, Number: 42}

	tests := []struct {
		rule     string
		ipui     identity.IPUI
		expected bool
	}{
		{"PERMIT:08ae*", typeN, true},
		{"PERMIT:08ae*", typeO, false},
		{"PERMIT:ALL", typeO, true},
		{"DENY:08ae*", typeO, true},
		{"DENY:ALL", typeO, false},
	}

	for _, tt := range tests {
		acl, err := ParseACL(tt.rule)
		if err != nil {
			t.Fatalf("Failed to parse ACL: %v", err)
		}
		if got := acl.CheckIPUI(tt.ipui); got != tt.expected {
			t.Errorf("%s CheckIPUI(%s) = %v, expected %v", tt.rule, tt.ipui, got, tt.expected)
		}
	}
}

func TestACL_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{"Invalid range format", "PERMIT:1-2-3"},
		{"Non-hex IPEI", "PERMIT:XYZ"},
		{"IPEI too long", "PERMIT:1000000000"},
		{"Non-hex range", "PERMIT:XYZ-123"},
		{"Inverted range", "PERMIT:08ae0ffff-08ae00000"},
		{"Manufacturer too long", "PERMIT:108ae*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseACL(tt.rule); err == nil {
				t.Error("Expected error for invalid ACL, got nil")
			}
		})
	}
}

func TestACL_String(t *testing.T) {
	tests := []struct {
		rule     string
		expected string
	}{
		{"PERMIT:ALL", "PERMIT:ALL"},
		{"DENY:8ae83d1e", "DENY:08ae83d1e"},
		{"PERMIT:8ae*", "PERMIT:08ae*"},
		{"DENY:08ae00000-08ae0ffff,all", "DENY:08ae00000-08ae0ffff,ALL"},
	}

	for _, tt := range tests {
		acl, err := ParseACL(tt.rule)
		if err != nil {
			t.Fatalf("Failed to parse ACL: %v", err)
		}
		if result := acl.String(); result != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, result)
		}
	}
}
