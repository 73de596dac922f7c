package model

import (
	"fmt"
)

// CertificateType distinguishes the three certificate paths.
type CertificateType int

const (
	FastCertificate CertificateType = iota + 1
	SlowCertificate
	SkipCertificate
)

func (t CertificateType) String() string {
	switch t {
	case FastCertificate:
		return "fast"
	case SlowCertificate:
		return "slow"
	case SkipCertificate:
		return "skip"
	default:
		return fmt.Sprintf("unknown_certificate_type_%d", int(t))
	}
}

// Valid returns true if t is one of the known certificate types.
func (t CertificateType) Valid() bool {
	return t >= FastCertificate && t <= SkipCertificate
}

// ParseCertificateType is the inverse of CertificateType.String.
func ParseCertificateType(s string) (CertificateType, error) {
	for _, t := range []CertificateType{FastCertificate, SlowCertificate, SkipCertificate} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown certificate type %q", s)
}

func (t CertificateType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *CertificateType) UnmarshalText(text []byte) error {
	parsed, err := ParseCertificateType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Certificate is proof that a stake-weighted quorum voted for a block (or a
// skip) in a view.
type Certificate struct {
	Slot      uint64          `json:"slot"`
	View      uint64          `json:"view"`
	BlockHash Identifier      `json:"blockHash"`
	Type      CertificateType `json:"type"`
	Stake     uint64          `json:"stake"`
	Voters    []ValidatorID   `json:"voters"`
}
