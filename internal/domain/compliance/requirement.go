package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Framework identifies a regulatory framework tracked by the platform.
type Framework string

const (
	FrameworkHIPAA      Framework = "HIPAA"
	FrameworkGDPR       Framework = "GDPR"
	FrameworkLGPD       Framework = "LGPD"
	FrameworkPSD2       Framework = "PSD2"
	FrameworkEIDAS      Framework = "EIDAS"
	FrameworkSolvencyII Framework = "SOLVENCY_II"
	FrameworkSUSEP      Framework = "SUSEP"

	// FrameworkOverall is the synthetic rollup across all frameworks in
	// scope. It never appears on a Requirement.
	FrameworkOverall Framework = "OVERALL"
)

// Domain groups frameworks into a regulatory domain. Several frameworks
// may roll up into one domain (e.g. Open Insurance = Solvency II + SUSEP).
type Domain string

const (
	DomainHealthcare      Domain = "HEALTHCARE"
	DomainDataPrivacy     Domain = "DATA_PRIVACY"
	DomainOpenBanking     Domain = "OPEN_BANKING"
	DomainDigitalIdentity Domain = "DIGITAL_IDENTITY"
	DomainOpenInsurance   Domain = "OPEN_INSURANCE"
	DomainGeneral         Domain = "GENERAL"
)

// Domain returns the regulatory domain a framework rolls up into.
func (f Framework) Domain() Domain {
	switch f {
	case FrameworkHIPAA:
		return DomainHealthcare
	case FrameworkGDPR, FrameworkLGPD:
		return DomainDataPrivacy
	case FrameworkPSD2:
		return DomainOpenBanking
	case FrameworkEIDAS:
		return DomainDigitalIdentity
	case FrameworkSolvencyII, FrameworkSUSEP:
		return DomainOpenInsurance
	default:
		return DomainGeneral
	}
}

func (f Framework) IsValid() bool {
	switch f {
	case FrameworkHIPAA, FrameworkGDPR, FrameworkLGPD, FrameworkPSD2,
		FrameworkEIDAS, FrameworkSolvencyII, FrameworkSUSEP:
		return true
	default:
		return false
	}
}

// AuthLevel is the authentication assurance level an IAM configuration
// provides, ordered from weakest to strongest.
type AuthLevel string

const (
	AuthLevelBasic        AuthLevel = "BASIC"
	AuthLevelIntermediate AuthLevel = "INTERMEDIATE"
	AuthLevelAdvanced     AuthLevel = "ADVANCED"
	AuthLevelVeryAdvanced AuthLevel = "VERY_ADVANCED"
)

// Rank returns the ordinal strength of the level; unknown levels rank 0.
func (l AuthLevel) Rank() int {
	switch l {
	case AuthLevelBasic:
		return 1
	case AuthLevelIntermediate:
		return 2
	case AuthLevelAdvanced:
		return 3
	case AuthLevelVeryAdvanced:
		return 4
	default:
		return 0
	}
}

// Satisfies reports whether this level meets or exceeds the required one.
func (l AuthLevel) Satisfies(required AuthLevel) bool {
	return l.Rank() >= required.Rank()
}

// Requirement is one named clause of an external regulation a tenant's
// authentication configuration must satisfy. Requirements are immutable
// reference data seeded at deployment and never mutated by runtime flows.
type Requirement struct {
	ID                  uuid.UUID `json:"id"`
	FrameworkID         Framework `json:"framework_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	PredicateRef        string    `json:"predicate_ref"`
	RequiredAuthLevel   AuthLevel `json:"required_auth_level"`
	RequiredAuthMethods []string  `json:"required_auth_methods"`
	IRRThreshold        IRRLevel  `json:"irr_threshold"`
	IsMandatory         bool      `json:"is_mandatory"`
	AppliesTo           []string  `json:"applies_to"`
	CreatedAt           time.Time `json:"created_at"`
}

// Validate checks the requirement definition itself.
func (r *Requirement) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("requirement name cannot be empty")
	}
	if !r.FrameworkID.IsValid() {
		return fmt.Errorf("unknown framework: %s", r.FrameworkID)
	}
	if r.PredicateRef == "" {
		return fmt.Errorf("requirement %s has no predicate reference", r.Name)
	}
	if !r.IRRThreshold.IsValid() {
		return fmt.Errorf("invalid IRR threshold: %s", r.IRRThreshold)
	}
	return nil
}

// AppliesToSector reports whether the requirement applies to the given
// sector. An empty AppliesTo list means the requirement applies everywhere.
func (r *Requirement) AppliesToSector(sector string) bool {
	if len(r.AppliesTo) == 0 {
		return true
	}
	for _, s := range r.AppliesTo {
		if s == sector {
			return true
		}
	}
	return false
}
