// Package access decides which portables may obtain access rights.
package access

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbehnke/dect-nwk/pkg/identity"
)

// ACLAction defines whether to permit or deny
type ACLAction int

const (
	ACLPermit ACLAction = iota
	ACLDeny
)

// String returns the string representation of the ACL action
func (a ACLAction) String() string {
	switch a {
	case ACLPermit:
		return "PERMIT"
	case ACLDeny:
		return "DENY"
	default:
		return "UNKNOWN"
	}
}

// RuleType defines the type of ACL rule
type RuleType int

const (
	RuleTypeAll RuleType = iota
	RuleTypeSingle
	RuleTypeRange
	RuleTypeManufacturer
)

// ACLRule matches IPEIs by their 36-bit value
type ACLRule struct {
	Type  RuleType
	IPEI  uint64 // For RuleTypeSingle
	Start uint64 // For RuleTypeRange
	End   uint64 // For RuleTypeRange
	EMC   uint16 // For RuleTypeManufacturer
}

// String returns the string representation of the rule
func (r ACLRule) String() string {
	switch r.Type {
	case RuleTypeAll:
		return "ALL"
	case RuleTypeSingle:
		return fmt.Sprintf("%09x", r.IPEI)
	case RuleTypeRange:
		return fmt.Sprintf("%09x-%09x", r.Start, r.End)
	case RuleTypeManufacturer:
		return fmt.Sprintf("%04x*", r.EMC)
	default:
		return "UNKNOWN"
	}
}

// Matches checks if the given IPEI matches this rule
func (r ACLRule) Matches(ipei identity.IPEI) bool {
	v := ipei.Encode()
	switch r.Type {
	case RuleTypeAll:
		return true
	case RuleTypeSingle:
		return r.IPEI == v
	case RuleTypeRange:
		return v >= r.Start && v <= r.End
	case RuleTypeManufacturer:
		return ipei.EMC == r.EMC
	default:
		return false
	}
}

// ACL represents an Access Control List
type ACL struct {
	Action ACLAction
	Rules  []ACLRule
}

// String returns the string representation of the ACL
func (a *ACL) String() string {
	var rules []string
	for _, rule := range a.Rules {
		rules = append(rules, rule.String())
	}
	return fmt.Sprintf("%s:%s", a.Action.String(), strings.Join(rules, ","))
}

// Check checks if the given IPEI is allowed by this ACL
func (a *ACL) Check(ipei identity.IPEI) bool {
	matches := false
	for _, rule := range a.Rules {
		if rule.Matches(ipei) {
			matches = true
			break
		}
	}

	if a.Action == ACLPermit {
		return matches
	}
	return !matches
}

// CheckIPUI applies the ACL to the IPEI of a type N identity. Other
// identity types carry no IPEI and pass only a PERMIT:ALL or DENY list.
func (a *ACL) CheckIPUI(ipui identity.IPUI) bool {
	if ipui.Type == identity.IPUITypeN {
		return a.Check(ipui.IPEI)
	}
	for _, rule := range a.Rules {
		if rule.Type == RuleTypeAll {
			return a.Action == ACLPermit
		}
	}
	return a.Action == ACLDeny
}

func parseIPEI(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	if err != nil || v >= 1<<identity.IPEIBits {
		return 0, fmt.Errorf("invalid IPEI: %s", s)
	}
	return v, nil
}

// ParseACL parses an ACL string in the format "ACTION:RULE[,RULE]...".
// IPEIs are nine hex digits, EMC followed by PSN.
// Examples: "PERMIT:ALL", "DENY:08ae83d1e", "PERMIT:08ae*",
// "DENY:08ae00000-08ae0ffff,0123*"
func ParseACL(rule string) (*ACL, error) {
	if rule == "" {
		return nil, fmt.Errorf("empty ACL rule")
	}

	parts := strings.SplitN(rule, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid ACL format: missing colon")
	}

	var action ACLAction
	switch strings.ToUpper(parts[0]) {
	case "PERMIT":
		action = ACLPermit
	case "DENY":
		action = ACLDeny
	default:
		return nil, fmt.Errorf("invalid ACL action: %s", parts[0])
	}

	acl := &ACL{
		Action: action,
		Rules:  make([]ACLRule, 0),
	}

	for _, ruleStr := range strings.Split(parts[1], ",") {
		ruleStr = strings.TrimSpace(ruleStr)
		if ruleStr == "" {
			continue
		}

		if strings.ToUpper(ruleStr) == "ALL" {
			acl.Rules = append(acl.Rules, ACLRule{Type: RuleTypeAll})
			continue
		}

		if emc, ok := strings.CutSuffix(ruleStr, "*"); ok {
			v, err := strconv.ParseUint(emc, 16, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid manufacturer code: %s", emc)
			}
			acl.Rules = append(acl.Rules, ACLRule{Type: RuleTypeManufacturer, EMC: uint16(v)})
			continue
		}

		if strings.Contains(ruleStr, "-") {
			rangeParts := strings.Split(ruleStr, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", ruleStr)
			}
			start, err := parseIPEI(rangeParts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range start: %w", err)
			}
			end, err := parseIPEI(rangeParts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range end: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("invalid range: start (%09x) > end (%09x)", start, end)
			}
			acl.Rules = append(acl.Rules, ACLRule{Type: RuleTypeRange, Start: start, End: end})
			continue
		}

		v, err := parseIPEI(ruleStr)
		if err != nil {
			return nil, err
		}
		acl.Rules = append(acl.Rules, ACLRule{Type: RuleTypeSingle, IPEI: v})
	}

	if len(acl.Rules) == 0 {
		return nil, fmt.Errorf("no rules specified")
	}

	return acl, nil
}
