package observer

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/testutil"
)

func TestAttachAdminRoutesReportsRegionCounters(t *testing.T) {
	region := NewRegion("gate", RegionRect, 0, 0, 2, 2, false, false)
	region.Counters.Enter = 3
	region.Counters.Gate = 1

	sink := NewCallbackSink(func(string, []byte) {})
	o := NewSchemeObserver("obs", sink, &Scheme{lines: map[string][]Line{}}, nil, region)

	mux := http.NewServeMux()
	o.AttachAdminRoutes(mux)

	req := testutil.NewTestRequest(http.MethodGet, "/debug/regions/obs")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var out map[string]RegionCounters
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 3, out["gate"].Enter)
	require.Equal(t, 1, out["gate"].Gate)
}
