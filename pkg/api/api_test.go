package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/btkeg/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAPI(t *testing.T) (*API, *mock.Mock) {
	m, err := mock.New(mock.WithClock(func() time.Time {
		return time.Date(2024, 5, 17, 18, 30, 0, 0, time.UTC)
	}))
	require.Nil(t, err)

	for port, beerName := range []string{"Kolsch", "IPA"} {
		m.AddKeg("F1EDC6", keg.Reading{
			KegSizeML:     keg.KegSizeSixthBarrel,
			VolumeStartML: keg.KegSizeSixthBarrel,
			PortCount:     2,
			PortIndex:     uint8(port),
			PortState:     keg.PortStateEnabled,
			BeerName:      beerName,
		})
	}
	m.Broadcast()

	api := New(m)
	m.SetEventHandler(api.ObserveEvent)

	return api, m
}

func request(t *testing.T, api *API, target string) (int, []byte) {
	resp, err := api.router.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.Nil(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.Nil(t, err)

	return resp.StatusCode, body
}

func TestDevices(t *testing.T) {
	api, _ := testAPI(t)

	code, body := request(t, api, "/devices")
	require.Equal(t, http.StatusOK, code)

	var devices []map[string]any
	require.Nil(t, json.Unmarshal(body, &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "Kolsch", devices[0]["beer_name"])
	assert.Equal(t, "IPA", devices[1]["beer_name"])

	code, body = request(t, api, "/devices/f1edc6")
	require.Equal(t, http.StatusOK, code)
	require.Nil(t, json.Unmarshal(body, &devices))
	assert.Len(t, devices, 2)

	code, _ = request(t, api, "/devices/ABC123")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStats(t *testing.T) {
	api, m := testAPI(t)

	require.Nil(t, m.Pour("F1EDC6/0", 5000))
	m.Broadcast()

	code, body := request(t, api, "/devices/F1EDC6/0/stats?unit=oz")
	require.Equal(t, http.StatusOK, code, string(body))

	var resp struct {
		Device struct {
			ID string `json:"device_id"`
		} `json:"device"`
		Summary              keg.Summary `json:"summary"`
		VolumeRemaining      string      `json:"volume_remaining"`
		Pours                int         `json:"pours"`
		SinceLastPourSeconds *float64    `json:"since_last_pour_seconds"`
	}
	require.Nil(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "F1EDC6", resp.Device.ID)
	assert.Equal(t, 14550, resp.Summary.VolumeRemainingML)
	assert.Equal(t, 41, resp.Summary.DrinksRemaining)
	assert.Equal(t, "492.0 oz", resp.VolumeRemaining)
	assert.Equal(t, 1, resp.Pours)
	assert.NotNil(t, resp.SinceLastPourSeconds)

	code, body = request(t, api, "/devices/F1EDC6/1/stats?unit=L&precision=2&drink_size_ml=473.176")
	require.Equal(t, http.StatusOK, code, string(body))
	require.Nil(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "19.55 L", resp.VolumeRemaining)
	assert.Equal(t, 41, resp.Summary.DrinksRemaining)
	assert.Zero(t, resp.Pours)
}

func TestStatsErrors(t *testing.T) {
	api, _ := testAPI(t)

	for target, expected := range map[string]int{
		"/devices/F1EDC6/2/stats":                    http.StatusNotFound,
		"/devices/ABC123/0/stats":                    http.StatusNotFound,
		"/devices/F1EDC6/x/stats":                    http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?unit=cup":           http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?precision=-1":       http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?precision=one":      http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?drink_size_ml=0":    http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?drink_size_ml=pint": http.StatusBadRequest,
		"/devices/F1EDC6/0/stats?flow_rate=-1":       http.StatusBadRequest,
	} {
		code, body := request(t, api, target)
		assert.Equal(t, expected, code, "%s: %s", target, body)
	}
}

func TestMetrics(t *testing.T) {
	api, m := testAPI(t)

	require.Nil(t, m.Pour("F1EDC6/0", 5000))
	require.Nil(t, m.Pour("F1EDC6/1", 19000))
	m.Broadcast()
	require.Nil(t, m.Tap("F1EDC6/1", keg.KegSizeCornelius, "Stout"))
	m.Broadcast()

	code, body := request(t, api, "/metrics")
	require.Equal(t, http.StatusOK, code)

	metrics := string(body)
	assert.Contains(t, metrics, `btkeg_keg_volume_remaining_ml{beer="Kolsch",device="F1EDC6",port="0"} 14550`)
	assert.Contains(t, metrics, `btkeg_keg_volume_dispensed_ml{beer="Kolsch",device="F1EDC6",port="0"} 5000`)
	assert.Contains(t, metrics, `btkeg_keg_size_ml{beer="Stout",device="F1EDC6",port="1"} 19550`)
	assert.Contains(t, metrics, `btkeg_events_pours_total{device="F1EDC6",port="0"} 1`)
	assert.Contains(t, metrics, `btkeg_events_poured_ml_total{device="F1EDC6",port="0"} 5000`)
	assert.Contains(t, metrics, `btkeg_events_new_kegs_total{device="F1EDC6",port="1"} 1`)
	assert.Contains(t, metrics, `btkeg_device_last_seen_timestamp_seconds{beer="Kolsch"`)
	assert.NotContains(t, metrics, `beer="IPA"`)
	assert.Contains(t, metrics, "go_goroutines")
}
