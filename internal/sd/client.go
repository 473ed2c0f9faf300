package sd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/domain"
)

// DefaultBaseURL is the production endpoint of the Schedules Direct
// JSON service, including the API date.
const DefaultBaseURL = "https://json.schedulesdirect.org/20141201"

// noScheduleDigest is the sentinel the provider returns for a
// station/day that has no schedule at all.
const noScheduleDigest = "CAFEDEADBEEFCAFEDEADBE"

// Client talks to the Schedules Direct JSON API and implements
// domain.ProviderClient. Program digests are remembered from schedule
// payloads, since the provider embeds them there rather than offering
// a separate digest endpoint.
type Client struct {
	log        zerolog.Logger
	config     *domain.Config
	httpClient *http.Client
	baseURL    string

	token string

	mu             sync.Mutex
	programDigests map[string]string
	programDetails map[string]domain.ProgramDetail
}

func NewClient(log zerolog.Logger, config *domain.Config) *Client {
	return &Client{
		log:    log.With().Str("module", "sd").Logger(),
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:        DefaultBaseURL,
		programDigests: make(map[string]string),
		programDetails: make(map[string]domain.ProgramDetail),
	}
}

type tokenResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type statusResponse struct {
	Code    int `json:"code"`
	Account struct {
		Expires string `json:"expires"`
	} `json:"account"`
	Lineups []struct {
		Lineup   string `json:"lineup"`
		Name     string `json:"name"`
		URI      string `json:"uri"`
		Modified string `json:"modified"`
	} `json:"lineups"`
	SystemStatus []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"systemStatus"`
}

// Authenticate obtains a session token and verifies the account has
// not expired and the service reports itself online.
func (c *Client) Authenticate(ctx context.Context) error {
	var tok tokenResponse
	err := c.call(ctx, http.MethodPost, "/token",
		map[string]string{"username": c.config.Username, "password": c.config.PasswordHash},
		false, &tok)
	if err != nil {
		return err
	}

	if tok.Code != 0 {
		return &domain.AuthError{Reason: fmt.Sprintf("token request rejected: %s (code %d)", tok.Message, tok.Code)}
	}
	c.token = tok.Token

	var status statusResponse
	if err := c.call(ctx, http.MethodGet, "/status", nil, true, &status); err != nil {
		return err
	}

	if status.Account.Expires != "" {
		expires, err := parseProviderTime(status.Account.Expires)
		if err != nil {
			return &domain.DataIntegrityError{Unit: "status", Detail: err.Error()}
		}
		if expires < time.Now().Unix() {
			return &domain.AuthError{Reason: "account has expired"}
		}
	}

	for _, s := range status.SystemStatus {
		if s.Status != "Online" {
			return &domain.TransportError{
				Op:  "status",
				Err: errors.Errorf("provider reports %s: %s", s.Status, s.Message),
			}
		}
	}

	c.log.Debug().Int("lineups", len(status.Lineups)).Msg("authenticated")
	return nil
}

// FetchLineups returns the lineups currently subscribed on the
// account.
func (c *Client) FetchLineups(ctx context.Context) ([]domain.Lineup, error) {
	var status statusResponse
	if err := c.call(ctx, http.MethodGet, "/status", nil, true, &status); err != nil {
		return nil, err
	}

	lineups := make([]domain.Lineup, 0, len(status.Lineups))
	for _, l := range status.Lineups {
		modified, err := parseProviderTime(l.Modified)
		if err != nil {
			return nil, &domain.DataIntegrityError{Unit: "lineup " + l.Lineup, Detail: err.Error()}
		}
		lineups = append(lineups, domain.Lineup{
			LineupID: l.Lineup,
			Name:     l.Name,
			URI:      l.URI,
			Modified: modified,
		})
	}

	return lineups, nil
}

type lineupStationsResponse struct {
	Stations []json.RawMessage `json:"stations"`
}

type stationPayload struct {
	StationID         string   `json:"stationID"`
	Name              string   `json:"name"`
	BroadcastLanguage []string `json:"broadcastLanguage"`
	Logo              *struct {
		URL    string  `json:"URL"`
		Width  flexInt `json:"width"`
		Height flexInt `json:"height"`
		MD5    string  `json:"md5"`
	} `json:"logo"`
}

// FetchStations returns the member stations of one lineup. The lineup
// URI comes from the lineup listing and is relative to the API root.
func (c *Client) FetchStations(ctx context.Context, lineupURI string) ([]domain.Station, error) {
	var resp lineupStationsResponse
	if err := c.callAbsolutePath(ctx, http.MethodGet, lineupURI, nil, true, &resp); err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(resp.Stations))
	for _, raw := range resp.Stations {
		// The provider occasionally emits non-object entries in the
		// station list; skip them.
		var s stationPayload
		if err := json.Unmarshal(raw, &s); err != nil || s.StationID == "" {
			continue
		}

		station := domain.Station{
			StationID:         s.StationID,
			Name:              s.Name,
			BroadcastLanguage: joinList(s.BroadcastLanguage),
		}
		if s.Logo != nil {
			station.Logo = &domain.StationLogo{
				URI:    s.Logo.URL,
				Width:  int(s.Logo.Width),
				Height: int(s.Logo.Height),
				MD5:    s.Logo.MD5,
			}
		}
		stations = append(stations, station)
	}

	return stations, nil
}

type scheduleRequest struct {
	StationID string   `json:"stationID"`
	Date      []string `json:"date,omitempty"`
}

type scheduleDigestDay struct {
	Code         int    `json:"code"`
	LastModified string `json:"lastModified"`
	MD5          string `json:"md5"`
}

// FetchScheduleDigest returns the digest for one station/day.
func (c *Client) FetchScheduleDigest(ctx context.Context, stationID string, day domain.Date) (domain.ScheduleDigest, error) {
	req := []scheduleRequest{{StationID: stationID, Date: []string{day.String()}}}

	var resp map[string]map[string]scheduleDigestDay
	if err := c.call(ctx, http.MethodPost, "/schedules/md5", req, true, &resp); err != nil {
		return domain.ScheduleDigest{}, err
	}

	dayResp, ok := resp[stationID][day.String()]
	if !ok {
		return domain.ScheduleDigest{}, &domain.DataIntegrityError{
			Unit:   fmt.Sprintf("schedule digest %s/%s", stationID, day),
			Detail: "station/day missing from digest response",
		}
	}

	if dayResp.MD5 == noScheduleDigest {
		return domain.ScheduleDigest{}, domain.ErrNoSchedule
	}

	modified, err := parseProviderTime(dayResp.LastModified)
	if err != nil {
		return domain.ScheduleDigest{}, &domain.DataIntegrityError{
			Unit:   fmt.Sprintf("schedule digest %s/%s", stationID, day),
			Detail: err.Error(),
		}
	}

	return domain.ScheduleDigest{MD5: dayResp.MD5, LastModified: modified}, nil
}

type schedulePayload struct {
	StationID string `json:"stationID"`
	Metadata  struct {
		StartDate string `json:"startDate"`
	} `json:"metadata"`
	Programs []struct {
		ProgramID       string   `json:"programID"`
		MD5             string   `json:"md5"`
		AirDateTime     string   `json:"airDateTime"`
		Duration        int      `json:"duration"`
		AudioProperties []string `json:"audioProperties"`
		VideoProperties []string `json:"videoProperties"`
	} `json:"programs"`
}

// FetchSchedule returns the full airing list for one station/day and
// remembers the program digests embedded in the payload.
func (c *Client) FetchSchedule(ctx context.Context, stationID string, day domain.Date) ([]domain.ScheduleAiring, error) {
	req := []scheduleRequest{{StationID: stationID, Date: []string{day.String()}}}

	var resp []schedulePayload
	if err := c.call(ctx, http.MethodPost, "/schedules", req, true, &resp); err != nil {
		return nil, err
	}

	var airings []domain.ScheduleAiring
	for _, sched := range resp {
		if sched.StationID != stationID {
			continue
		}
		for _, p := range sched.Programs {
			airtime, err := parseProviderTime(p.AirDateTime)
			if err != nil {
				return nil, &domain.DataIntegrityError{
					Unit:   fmt.Sprintf("schedule %s/%s", stationID, day),
					Detail: err.Error(),
				}
			}
			airings = append(airings, domain.ScheduleAiring{
				ProgramID:       p.ProgramID,
				MD5:             p.MD5,
				Airtime:         airtime,
				Duration:        p.Duration,
				AudioProperties: joinList(p.AudioProperties),
				VideoProperties: joinList(p.VideoProperties),
			})

			c.mu.Lock()
			c.programDigests[p.ProgramID] = p.MD5
			c.mu.Unlock()
		}
	}

	return airings, nil
}

// FetchProgramDigest returns the current digest for a program. The
// digest is usually known from a schedule payload of the same run;
// otherwise the full detail is fetched once and kept for the
// FetchProgramDetail call that follows.
func (c *Client) FetchProgramDigest(ctx context.Context, programID string) (string, error) {
	c.mu.Lock()
	digest, ok := c.programDigests[programID]
	c.mu.Unlock()
	if ok {
		return digest, nil
	}

	detail, err := c.fetchProgramDetails(ctx, programID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.programDigests[programID] = detail.MD5
	c.programDetails[programID] = detail
	c.mu.Unlock()

	return detail.MD5, nil
}

// FetchProgramDetail returns the flattened detail for one program.
func (c *Client) FetchProgramDetail(ctx context.Context, programID string) (domain.ProgramDetail, error) {
	c.mu.Lock()
	detail, ok := c.programDetails[programID]
	if ok {
		delete(c.programDetails, programID)
	}
	c.mu.Unlock()
	if ok {
		return detail, nil
	}

	return c.fetchProgramDetails(ctx, programID)
}

func (c *Client) fetchProgramDetails(ctx context.Context, programID string) (domain.ProgramDetail, error) {
	var resp []programPayload
	if err := c.call(ctx, http.MethodPost, "/programs", []string{programID}, true, &resp); err != nil {
		return domain.ProgramDetail{}, err
	}

	for _, p := range resp {
		if p.ProgramID == programID {
			return flattenProgram(p, c.config.Languages), nil
		}
	}

	return domain.ProgramDetail{}, &domain.DataIntegrityError{
		Unit:   "program " + programID,
		Detail: "program missing from detail response",
	}
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}, useToken bool, out interface{}) error {
	return c.doRequest(ctx, method, c.baseURL+path, body, useToken, out)
}

// callAbsolutePath is for provider-supplied URIs like lineup URIs,
// which already include the API date prefix.
func (c *Client) callAbsolutePath(ctx context.Context, method, uri string, body interface{}, useToken bool, out interface{}) error {
	base := c.baseURL
	if i := len(base) - len("/20141201"); i > 0 && base[i:] == "/20141201" {
		base = base[:i]
	}
	return c.doRequest(ctx, method, base+uri, body, useToken, out)
}

func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}, useToken bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	if useToken && c.token != "" {
		req.Header.Set("token", c.token)
	}

	c.log.Trace().Str("method", method).Str("url", url).Msg("api call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.AuthError{Reason: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &domain.TransportError{Op: method + " " + url, Err: errors.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusMultipleChoices:
		return errors.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: method + " " + url, Err: err}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", url)
	}

	return nil
}

// parseProviderTime converts the provider's RFC-3339 UTC form
// (2019-01-02T12:56:43Z) to a unix timestamp.
func parseProviderTime(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return t.Unix(), nil
}

// joinList encodes a provider string list in the cache's
// tab-separated form.
func joinList(items []string) string {
	return strings.Join(items, "\t")
}

// flexInt tolerates numeric fields the provider sometimes serializes
// as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
