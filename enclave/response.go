package enclave

import (
	"github.com/cockroachdb/errors"

	"github.com/flashbots/pctmatch/crypto"
	"github.com/flashbots/pctmatch/protocol"
)

// CountMatches returns how many accumulated matches belong to q.
func CountMatches(mode protocol.Mode, q *QueryRep, rb *ResultBuffer) int {
	count := 0
	for _, m := range rb.Matches {
		if q.Has(mode, m.Token, m.Timestamp) {
			count++
		}
	}
	return count
}

// BuildResponse attributes the accumulated matches to each client, in
// submission order, and serializes one record per client. The risk byte is
// encrypted when cfg.EncryptResponses is set.
func BuildResponse(cfg *protocol.MatchConfig, qb *QueryBuffer, rb *ResultBuffer) ([]byte, error) {
	response := make([]byte, 0, len(qb.Queries)*protocol.ResponseRecordSize)
	for i := range qb.Queries {
		q := &qb.Queries[i]
		result := protocol.QueryResult{
			QueryID:   q.ID,
			RiskLevel: cfg.RiskLevel(CountMatches(qb.Mode, q, rb)),
		}
		if cfg.EncryptResponses {
			sealed, err := crypto.SealRisk(uint64(q.ID), cfg.CounterBlock, cfg.CounterIncBits, result.RiskLevel)
			if err != nil {
				return nil, errors.Wrapf(err, "sealing response for query %d", q.ID)
			}
			result.RiskLevel = sealed
		}
		record := result.Bytes()
		response = append(response, record[:]...)
	}
	return response, nil
}
