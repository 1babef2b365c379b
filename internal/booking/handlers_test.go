package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler().RegisterRoutes(r.Group("/v1"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/quote", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Quote(t *testing.T) {
	w := post(setupRouter(), `{
		"passengers": 5,
		"bookedAt": "2024-10-01T12:00:00Z",
		"departureAt": "2024-10-02T12:00:00Z",
		"availableSeats": 5,
		"currentPrice": 200,
		"previousSales": 50
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Confirmed)
	assert.Equal(t, "380", res.TotalPrice.String())
}

func TestHandler_Quote_ValidationFailed(t *testing.T) {
	w := post(setupRouter(), `{
		"passengers": 0,
		"bookedAt": "2024-10-01T12:00:00Z",
		"departureAt": "2024-10-02T12:00:00Z",
		"availableSeats": 5,
		"currentPrice": 200,
		"previousSales": 50
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"passengers"`)
}

func TestHandler_Quote_Malformed(t *testing.T) {
	w := post(setupRouter(), `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}
