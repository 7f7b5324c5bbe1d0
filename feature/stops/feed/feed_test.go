package feed

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stop-importer/core/storage/mocks"
	"stop-importer/feature/stops/model"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `Landkreis,Gemeinde,Ortsteil,Haltestelle,Haltestelle_lang,GlobaleId,zhv_lat,zhv_lon,osm_id,match_state,linien,mode
Main-Kinzig,Hanau,,Freiheitsplatz,Hanau Freiheitsplatz,de:06435:4299:0:1,50.1338,8.9214,n1591983159,MATCHED,"1,2,5",bus
,Hanau,Steinheim,Alte Brücke,Alte Brücke,de:06435:4305,50.1211,8.9102,,,,
`

func writeFeed(t *testing.T, name, content string, compress bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if compress {
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
	} else {
		_, err = f.WriteString(content)
		require.NoError(t, err)
	}
	return path
}

func TestStream_Next(t *testing.T) {
	path := writeFeed(t, "stops.csv", sampleFeed, false)

	s, err := Open(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "de:06435:4299:0:1", rec.GlobalID)
	assert.Equal(t, "Freiheitsplatz", rec.Name)
	assert.Equal(t, "Hanau Freiheitsplatz", rec.AltName)
	assert.Equal(t, "Main-Kinzig", rec.County)
	assert.Equal(t, "n1591983159", rec.OSMID)
	assert.Equal(t, "MATCHED", rec.MatchState)
	assert.Equal(t, []string{"1", "2", "5"}, rec.Lines)
	assert.Equal(t, "bus", rec.Mode)
	assert.InDelta(t, 50.1338, rec.Location.Lat(), 1e-9)
	assert.InDelta(t, 8.9214, rec.Location.Lon(), 1e-9)

	rec, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "de:06435:4305", rec.GlobalID)
	assert.Empty(t, rec.OSMID)
	assert.Nil(t, rec.Lines, "blank line list parses to nil")

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestStream_Gzip(t *testing.T) {
	path := writeFeed(t, "stops.csv.gz", sampleFeed, true)

	s, err := Open(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "de:06435:4299:0:1", rec.GlobalID)
}

func TestStream_MalformedCoordinate(t *testing.T) {
	bad := strings.Replace(sampleFeed, "50.1338", "not-a-number", 1)
	path := writeFeed(t, "stops.csv", bad, false)

	s, err := Open(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
}

func TestStream_MissingRequiredColumn(t *testing.T) {
	path := writeFeed(t, "stops.csv", "Haltestelle,zhv_lat,zhv_lon\nA,50,8\n", false)

	_, err := Open(context.Background(), FileSource{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GlobaleId")
}

func TestObjectSource(t *testing.T) {
	t.Run("reads feed from bucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "feeds", "stops.csv", minio.GetObjectOptions{}).
			Return(io.NopCloser(strings.NewReader(sampleFeed)), nil)

		src := ObjectSource{Client: client, Bucket: "feeds", Object: "stops.csv"}

		s, err := Open(context.Background(), src)
		require.NoError(t, err)
		defer s.Close()

		rec, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, "de:06435:4299:0:1", rec.GlobalID)
		assert.Equal(t, "Freiheitsplatz", rec.Name)

		client.AssertExpectations(t)
	})

	t.Run("fetch error propagates", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "feeds", "missing.csv", minio.GetObjectOptions{}).
			Return(nil, assert.AnError)

		src := ObjectSource{Client: client, Bucket: "feeds", Object: "missing.csv"}

		_, err := Open(context.Background(), src)
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestStream_Restartable(t *testing.T) {
	path := writeFeed(t, "stops.csv", sampleFeed, false)
	src := FileSource{Path: path}

	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), src)
		require.NoError(t, err)

		count := 0
		for {
			_, err := s.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 2, count)
		require.NoError(t, s.Close())
	}
}
