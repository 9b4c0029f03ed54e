package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const metadataPayload = `[{
	"id": "wikipedia_2013-08-01T00:00:00.000Z_2013-08-08T00:00:00.000Z_2013-08-08T21:22:48.989Z",
	"intervals": ["2013-08-01T00:00:00.000Z/2013-08-08T00:00:00.000Z"],
	"columns": {
		"__time": {"type": "LONG", "hasMultipleValues": false, "size": 407240380, "cardinality": null, "errorMessage": null},
		"page": {"type": "STRING", "size": 100, "cardinality": 1504, "minValue": "a", "maxValue": "z"},
		"unique_users": {"type": "hyperUnique", "size": 0, "cardinality": null},
		"unknownField": {"type": "STRING", "size": 1, "somethingNew": true}
	},
	"size": 300000,
	"numRows": 5000000,
	"aggregators": {"unique_users": {"type": "hyperUnique", "name": "unique_users", "fieldName": "user"}},
	"timestampSpec": {"column": "timestamp", "format": "auto", "missingValue": null},
	"queryGranularity": {"type": "none"},
	"rollup": true
}]`

func TestMetadataResponseDecode(t *testing.T) {
	var ret []MetadataResponse
	require.NoError(t, json.Unmarshal([]byte(metadataPayload), &ret))
	require.Len(t, ret, 1)

	mr := ret[0]
	require.Equal(t, []string{"2013-08-01T00:00:00.000Z/2013-08-08T00:00:00.000Z"}, mr.Intervals)
	require.Len(t, mr.Columns, 4)
	require.Nil(t, mr.Columns[TimeColumnName].Cardinality)
	require.Equal(t, int64(1504), *mr.Columns["page"].Cardinality)
	require.Equal(t, TypeHyperUnique, mr.Aggregators["unique_users"].Type)
	require.Equal(t, int64(5000000), *mr.NumRows)
	require.Equal(t, "none", mr.QueryGranularity.Type)
	require.Equal(t, "timestamp", mr.TimestampSpec.Column)
}

func TestGranularityStringForm(t *testing.T) {
	var mr MetadataResponse
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","queryGranularity":"HOUR"}`), &mr))
	require.Equal(t, "HOUR", mr.QueryGranularity.Type)
}

func TestServerStatusDecode(t *testing.T) {
	payload := `{"version":"0.22.1","modules":[{"name":"org.apache.druid.query.aggregation.datasketches.theta.SketchModule","artifact":"druid-datasketches","version":"0.22.1"}],
		"memory":{"maxMemory":1,"totalMemory":2,"freeMemory":3,"usedMemory":4,"directMemory":5}}`
	var st ServerStatus
	require.NoError(t, json.Unmarshal([]byte(payload), &st))
	require.Equal(t, "0.22.1", st.Version)
	require.Equal(t, "druid-datasketches", st.Modules[0].Artifact)
	require.Equal(t, int64(4), st.Memory.UsedMemory)
}

func TestNotificationDecode(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"action":"LOAD","dataSource":"wiki","interval":"2020-01-01/2020-01-02","extra":1}`), &n))
	require.Equal(t, ActionLoad, ParseAction(string(n.Action)))
	require.Equal(t, "wiki", n.DataSource)
}

func TestSegmentMetadataQuery(t *testing.T) {
	q := NewSegmentMetadataQuery("wiki", true)
	require.Equal(t, []string{AllTime}, q.Intervals)
	data, err := json.Marshal(NewSegmentMetadataQuery("wiki", false))
	require.NoError(t, err)
	require.NotContains(t, string(data), "intervals")
}
