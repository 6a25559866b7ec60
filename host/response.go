package host

import (
	"github.com/cockroachdb/errors"

	"github.com/flashbots/pctmatch/crypto"
	"github.com/flashbots/pctmatch/protocol"
)

// maxRiskLevel is the highest level a response may carry.
const maxRiskLevel = 3

// Verdict is the decrypted outcome for one client.
type Verdict struct {
	QueryID   protocol.QueryID
	RiskLevel uint8
}

// Positive reports whether the client had at least one contact.
func (v Verdict) Positive() bool {
	return v.RiskLevel > 0
}

// DecodeResponse splits the fetched response into per-client verdicts,
// decrypting each risk byte when cfg.EncryptResponses is set. Records
// must appear in the order of ids.
func DecodeResponse(cfg *protocol.MatchConfig, response []byte, ids []protocol.QueryID) ([]Verdict, error) {
	if len(response) != len(ids)*protocol.ResponseRecordSize {
		return nil, errors.Mark(errors.Newf("response is %d bytes, want %d", len(response), len(ids)*protocol.ResponseRecordSize), protocol.ErrDecoding)
	}

	verdicts := make([]Verdict, 0, len(ids))
	for i, id := range ids {
		record := response[i*protocol.ResponseRecordSize : (i+1)*protocol.ResponseRecordSize]
		result, err := protocol.ParseQueryResult(record)
		if err != nil {
			return nil, err
		}
		if result.QueryID != id {
			return nil, errors.Mark(errors.Newf("record %d carries query %d, want %d", i, result.QueryID, id), protocol.ErrDecoding)
		}

		risk := result.RiskLevel
		if cfg.EncryptResponses {
			risk, err = crypto.OpenRisk(uint64(id), cfg.CounterBlock, cfg.CounterIncBits, risk)
			if err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "decrypting response for query %d", id), protocol.ErrDecryption)
			}
		}
		if risk > maxRiskLevel {
			return nil, errors.Mark(errors.Newf("query %d: risk level %d out of range", id, risk), protocol.ErrDecryption)
		}
		verdicts = append(verdicts, Verdict{QueryID: id, RiskLevel: risk})
	}
	return verdicts, nil
}

// PositiveIDs returns the ids of positive verdicts, in order.
func PositiveIDs(verdicts []Verdict) []protocol.QueryID {
	var ids []protocol.QueryID
	for _, v := range verdicts {
		if v.Positive() {
			ids = append(ids, v.QueryID)
		}
	}
	return ids
}
