package graph

import "fmt"

// DataSource names the upstream service that asserted a proof. It may differ
// from either endpoint's Platform: a Keybase-sourced proof can link a Keybase
// identity to a Twitter identity.
type DataSource string

const (
	DataSourceKeybase   DataSource = "keybase"
	DataSourceNextID    DataSource = "nextid"
	DataSourceSybilList DataSource = "sybil_list"
)

var knownDataSources = map[DataSource]struct{}{
	DataSourceKeybase:   {},
	DataSourceNextID:    {},
	DataSourceSybilList: {},
}

// ParseDataSource validates and returns a DataSource.
func ParseDataSource(s string) (DataSource, error) {
	ds := DataSource(s)
	if _, ok := knownDataSources[ds]; !ok {
		return "", fmt.Errorf("unknown data source: %q", s)
	}
	return ds, nil
}

func (ds DataSource) String() string {
	return string(ds)
}
