package sd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tvheim/epgdb/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &domain.Config{
		Username:     "user",
		PasswordHash: "deadbeef",
		Languages:    []string{"en", "de"},
		UserAgent:    "epgdb-test",
	}
	c := NewClient(zerolog.Nop(), cfg)
	c.baseURL = srv.URL + "/20141201"
	return c
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"code":0,"token":"tok123"}`)
	})
	mux.HandleFunc("/20141201/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok123", r.Header.Get("token"))
		fmt.Fprint(w, `{"code":0,"account":{"expires":"2099-01-01T00:00:00Z"},
			"systemStatus":[{"status":"Online"}]}`)
	})

	c := newTestClient(t, mux)
	require.NoError(t, c.Authenticate(context.Background()))
}

func TestAuthenticateRejectedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":4003,"message":"invalid credentials"}`)
	})

	c := newTestClient(t, mux)
	err := c.Authenticate(context.Background())

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "invalid credentials")
}

func TestAuthenticateExpiredAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"token":"tok123"}`)
	})
	mux.HandleFunc("/20141201/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"account":{"expires":"2001-01-01T00:00:00Z"},
			"systemStatus":[{"status":"Online"}]}`)
	})

	c := newTestClient(t, mux)
	err := c.Authenticate(context.Background())

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized is an auth error",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *domain.AuthError
				assert.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "forbidden is an auth error",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *domain.AuthError
				assert.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "server error is a transport error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var transportErr *domain.TransportError
				assert.ErrorAs(t, err, &transportErr)
			},
		},
		{
			name:   "client error is untyped",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var authErr *domain.AuthError
				var transportErr *domain.TransportError
				assert.False(t, errors.As(err, &authErr))
				assert.False(t, errors.As(err, &transportErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := c.FetchLineups(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFetchScheduleDigestSentinel(t *testing.T) {
	today := domain.Today()

	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/schedules/md5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"S1":{"%s":{"code":0,"md5":"CAFEDEADBEEFCAFEDEADBE",
			"lastModified":"2024-01-01T00:00:00Z"}}}`, today)
	})

	c := newTestClient(t, mux)
	_, err := c.FetchScheduleDigest(context.Background(), "S1", today)
	assert.ErrorIs(t, err, domain.ErrNoSchedule)
}

func TestFetchScheduleDigest(t *testing.T) {
	today := domain.Today()

	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/schedules/md5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"S1":{"%s":{"code":0,"md5":"abc123",
			"lastModified":"2024-01-01T00:00:00Z"}}}`, today)
	})

	c := newTestClient(t, mux)
	digest, err := c.FetchScheduleDigest(context.Background(), "S1", today)
	require.NoError(t, err)
	assert.Equal(t, "abc123", digest.MD5)
	assert.NotZero(t, digest.LastModified)
}

func TestFetchScheduleCachesProgramDigests(t *testing.T) {
	today := domain.Today()
	programCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/schedules", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"stationID":"S1","programs":[
			{"programID":"EP000000010001","md5":"p1md5",
			 "airDateTime":"2024-01-01T20:00:00Z","duration":3600,
			 "audioProperties":["stereo"],"videoProperties":["HDTV"]}]}]`)
	})
	mux.HandleFunc("/20141201/programs", func(w http.ResponseWriter, r *http.Request) {
		programCalls++
		fmt.Fprint(w, `[]`)
	})

	c := newTestClient(t, mux)
	airings, err := c.FetchSchedule(context.Background(), "S1", today)
	require.NoError(t, err)
	require.Len(t, airings, 1)
	assert.Equal(t, "stereo", airings[0].AudioProperties)
	assert.Equal(t, "HDTV", airings[0].VideoProperties)

	// The digest came with the schedule payload; no detail fetch needed.
	digest, err := c.FetchProgramDigest(context.Background(), "EP000000010001")
	require.NoError(t, err)
	assert.Equal(t, "p1md5", digest)
	assert.Zero(t, programCalls)
}

func TestFetchStationsSkipsMalformedEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/20141201/lineups/TEST", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stations":[
			{"stationID":"S1","name":"One TV","broadcastLanguage":["en"],
			 "logo":{"URL":"https://img/one.png","width":"360","height":270,"md5":"aa"}},
			"not an object",
			{"name":"missing id"},
			{"stationID":"S2","name":"Two TV","broadcastLanguage":["en","de"]}]}`)
	})

	c := newTestClient(t, mux)
	stations, err := c.FetchStations(context.Background(), "/20141201/lineups/TEST")
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "S1", stations[0].StationID)
	require.NotNil(t, stations[0].Logo)
	assert.Equal(t, 360, stations[0].Logo.Width)
	assert.Equal(t, "en\tde", stations[1].BroadcastLanguage)
	assert.Nil(t, stations[1].Logo)
}
