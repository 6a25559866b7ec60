package protocol

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
)

// Mode selects the matching pipeline. Both pipelines share the boundary
// protocol; their query records and dictionary chunks differ in shape.
type Mode string

const (
	// ModeExact matches opaque tokens by set membership only.
	ModeExact Mode = "exact"
	// ModeGeotemporal matches tokens whose timestamps fall within the contact window.
	ModeGeotemporal Mode = "geotemporal"
)

// Valid returns true if the mode is recognized.
func (m Mode) Valid() bool {
	switch m {
	case ModeExact, ModeGeotemporal:
		return true
	}
	return false
}

// QueryRecordSize is the width of one uploaded query record in this mode.
func (m Mode) QueryRecordSize() int {
	if m == ModeExact {
		return ExactRecordSize
	}
	return GeotemporalRecordSize
}

// CounterBlock is the initial counter block for response encryption.
// It marshals as hex text.
type CounterBlock [16]byte

func (c CounterBlock) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(c[:])), nil
}

func (c *CounterBlock) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, "counter block")
	}
	if len(raw) != len(c) {
		return errors.Newf("counter block must be %d bytes, got %d", len(c), len(raw))
	}
	copy(c[:], raw)
	return nil
}

// MatchConfig carries every tunable of the matching engine. It is passed
// by value to the boundary and the host so both sides agree on it.
type MatchConfig struct {
	// Mode selects exact-membership or windowed geotemporal matching.
	Mode Mode `yaml:"mode" json:"mode"`

	// ContactWindow is the width in seconds within which two timestamps
	// count as a contact (strictly less than).
	ContactWindow Timestamp `yaml:"contact_window" json:"contact_window"`

	// PeriodGap is the largest gap in seconds between consecutive
	// timestamps that still extends a period.
	PeriodGap Timestamp `yaml:"period_gap" json:"period_gap"`

	// RiskThresholds are the exclusive lower bounds for risk levels 1, 2 and 3.
	RiskThresholds []int `yaml:"risk_thresholds" json:"risk_thresholds"`

	// EncryptResponses enables counter-mode encryption of the risk byte.
	EncryptResponses bool `yaml:"encrypt_responses" json:"encrypt_responses"`

	CounterBlock   CounterBlock `yaml:"counter_block" json:"counter_block"`
	CounterIncBits uint         `yaml:"counter_inc_bits" json:"counter_inc_bits"`
}

// DefaultMatchConfig returns the parameters the job runs with unless
// configured otherwise.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Mode:             ModeGeotemporal,
		ContactWindow:    600,
		PeriodGap:        600,
		RiskThresholds:   []int{0, 5, 20},
		EncryptResponses: true,
		CounterIncBits:   128,
	}
}

// Validate checks the configuration for internal consistency.
func (c *MatchConfig) Validate() error {
	if !c.Mode.Valid() {
		return errors.Newf("unknown mode %q", c.Mode)
	}
	if c.ContactWindow == 0 {
		return errors.New("contact window must be positive")
	}
	if len(c.RiskThresholds) != 3 {
		return errors.Newf("expected 3 risk thresholds, got %d", len(c.RiskThresholds))
	}
	for i := 1; i < len(c.RiskThresholds); i++ {
		if c.RiskThresholds[i] <= c.RiskThresholds[i-1] {
			return errors.New("risk thresholds must be strictly ascending")
		}
	}
	if c.RiskThresholds[0] < 0 {
		return errors.New("risk thresholds must not be negative")
	}
	if c.EncryptResponses && (c.CounterIncBits == 0 || c.CounterIncBits > 128) {
		return errors.Newf("counter increment width must be in [1, 128], got %d", c.CounterIncBits)
	}
	return nil
}

// RiskLevel classifies a match count. With the default thresholds:
// 0 -> 0, 1..5 -> 1, 6..20 -> 2, 21+ -> 3.
func (c *MatchConfig) RiskLevel(matches int) uint8 {
	for level := len(c.RiskThresholds); level > 0; level-- {
		if matches > c.RiskThresholds[level-1] {
			return uint8(level)
		}
	}
	return 0
}
