package proto

const (
	QueryTypeSegmentMetadata = "segmentMetadata"
	QueryTypeTimeBoundary    = "timeBoundary"

	// AllTime covers every segment a datasource may hold.
	AllTime = "1000-01-01T00:00:00.000Z/3000-01-01T00:00:00.000Z"
)

var DefaultAnalysisTypes = []string{
	"cardinality", "interval", "aggregators", "size", "timestampSpec", "queryGranularity",
}

type SegmentMetadataQuery struct {
	QueryType              string   `json:"queryType"`
	DataSource             string   `json:"dataSource"`
	Intervals              []string `json:"intervals,omitempty"`
	Merge                  bool     `json:"merge"`
	AnalysisTypes          []string `json:"analysisTypes"`
	LenientAggregatorMerge bool     `json:"lenientAggregatorMerge"`
}

// NewSegmentMetadataQuery scans every segment when fullIndex is set,
// otherwise the broker samples its default history.
func NewSegmentMetadataQuery(dataSource string, fullIndex bool) *SegmentMetadataQuery {
	q := &SegmentMetadataQuery{
		QueryType:              QueryTypeSegmentMetadata,
		DataSource:             dataSource,
		Merge:                  true,
		AnalysisTypes:          DefaultAnalysisTypes,
		LenientAggregatorMerge: true,
	}
	if fullIndex {
		q.Intervals = []string{AllTime}
	}
	return q
}

type TimeBoundaryQuery struct {
	QueryType  string `json:"queryType"`
	DataSource string `json:"dataSource"`
}

func NewTimeBoundaryQuery(dataSource string) *TimeBoundaryQuery {
	return &TimeBoundaryQuery{QueryType: QueryTypeTimeBoundary, DataSource: dataSource}
}
