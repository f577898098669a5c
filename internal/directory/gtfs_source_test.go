package directory

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBundle(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"SBST,SBS Transit,https://www.sbstransit.com.sg,Asia/Singapore\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"15,SBST,15,Pasir Ris Int - Marine Parade,3\n",
		"stops.txt": "stop_id,stop_code,stop_name,stop_desc,stop_lat,stop_lon,location_type,parent_station\n" +
			"STN1,,Bedok Interchange,,1.3240,103.9300,1,\n" +
			"83139,83139,Opp Blk 59,Sims Ave,1.31694,103.90438,0,\n" +
			"P77009,77009,Pasir Ris Int,Pasir Ris Dr 3,1.37304,103.94915,0,\n" +
			"X1,,Unnamed Halt,Changi Rd,1.3190,103.9080,0,\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"WD,1,1,1,1,1,0,0,20240101,20241231\n",
		"trips.txt": "route_id,service_id,trip_id\n" +
			"15,WD,T1\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"T1,08:00:00,08:00:00,P77009,1\n" +
			"T1,08:10:00,08:10:00,83139,2\n" +
			"T1,08:15:00,08:15:00,X1,3\n",
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewGTFSSource(t *testing.T) {
	src, err := NewGTFSSource(buildBundle(t))
	require.NoError(t, err)
	require.Equal(t, 3, src.Len(), "the station row is not a boarding stop")

	byCode := map[string]string{}
	page, err := src.FetchStopsPage(context.Background(), 0)
	require.NoError(t, err)
	for _, s := range page {
		byCode[s.BusStopCode] = s.Description + " / " + s.RoadName
	}

	assert.Equal(t, "Opp Blk 59 / Sims Ave", byCode["83139"])
	assert.Equal(t, "Pasir Ris Int / Pasir Ris Dr 3", byCode["77009"])
	assert.Equal(t, "Unnamed Halt / Changi Rd", byCode["X1"], "blank stop_code falls back to stop_id")

	empty, err := src.FetchStopsPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGTFSSourcePaging(t *testing.T) {
	src, err := NewGTFSSource(buildBundle(t))
	require.NoError(t, err)
	src.pageSize = 2

	first, err := src.FetchStopsPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := src.FetchStopsPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	_, err = src.FetchStopsPage(context.Background(), -1)
	assert.Error(t, err)
}

func TestLoadGTFSSource(t *testing.T) {
	bundle := buildBundle(t)

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gtfs.zip")
		require.NoError(t, os.WriteFile(path, bundle, 0o644))

		src, err := LoadGTFSSource(context.Background(), path, http.DefaultClient, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, src.Len())
	})

	t.Run("from url", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/zip")
			w.Write(bundle)
		}))
		defer ts.Close()

		src, err := LoadGTFSSource(context.Background(), ts.URL+"/gtfs.zip", ts.Client(), 1)
		require.NoError(t, err)
		assert.Equal(t, 3, src.Len())
	})

	t.Run("not found", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		defer ts.Close()

		_, err := LoadGTFSSource(context.Background(), ts.URL+"/gtfs.zip", ts.Client(), 1)
		assert.ErrorContains(t, err, "unexpected response status 404")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGTFSSource(context.Background(), filepath.Join(t.TempDir(), "none.zip"), http.DefaultClient, 1)
		assert.Error(t, err)
	})

	t.Run("directory backed by bundle", func(t *testing.T) {
		src, err := NewGTFSSource(bundle)
		require.NoError(t, err)
		d := New(src, &memoryStore{}, testLogger())

		got, err := d.Search(context.Background(), "sims")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "83139", got[0].BusStopCode)
	})
}
