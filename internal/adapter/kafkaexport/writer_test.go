package kafkaexport

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statatlas/statatlas/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	tract := domain.NewTract("06001400100")
	tract.CountyName = "Alameda"
	tract.ClusterID = 3
	tract.ClusterLabel = "Critical Hotspots"
	tract.QualityOfLifeScore = 0.41
	tract.PollutionScore = 8.2

	msg, err := serializeToMessage(tract)
	require.NoError(t, err)

	assert.Equal(t, []byte("06001400100"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "county", msg.Headers[0].Key)
	assert.Equal(t, []byte("Alameda"), msg.Headers[0].Value)
	assert.Equal(t, "cluster_label", msg.Headers[1].Key)
	assert.Equal(t, []byte("Critical Hotspots"), msg.Headers[1].Value)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, "06001400100", rec["geoid"])
	assert.InDelta(t, 0.41, rec["quality_of_life_score"].(float64), 1e-12)
	assert.InDelta(t, 8.2, rec["pollution_score"].(float64), 1e-12)
	// Walkability was never derived, so it serializes as null.
	assert.Nil(t, rec["walkability_index"])
	assert.Nil(t, rec["hazard_risk_score"])
}
