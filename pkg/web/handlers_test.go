package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmflow/dmflow/pkg/events"
	"github.com/dmflow/dmflow/pkg/mocks"
	"github.com/dmflow/dmflow/pkg/persistence/file"
	"github.com/dmflow/dmflow/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockEventBus) {
	t.Helper()

	bus := new(mocks.MockEventBus)
	p := file.NewPersistence(t.TempDir())
	v := validator.New(validator.WithRequiredStructEnabled())

	app := fiber.New()
	web.Register(app, web.NewAPIHandlers(bus, p, v))

	return app, bus
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v))
}

func TestIngestEvent_PublishesToBus(t *testing.T) {
	t.Parallel()

	app, bus := setupTestApp(t)

	var published *events.PlatformEvent

	bus.On("Publish", mock.Anything, "acc-1", mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(*events.PlatformEvent)
		}).
		Return(nil)

	resp := postJSON(t, app, "/events", web.IngestEventRequest{
		AccountID:      "acc-1",
		TriggerType:    "comment",
		SenderID:       "sender-1",
		SenderUsername: "alice",
		CommentText:    "count me in",
		PostID:         "post-7",
	})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack web.IngestEventResponse
	decodeBody(t, resp, &ack)
	assert.Equal(t, "accepted", ack.Status)
	assert.NotEmpty(t, ack.EventID)

	require.NotNil(t, published)
	assert.Equal(t, "acc-1", published.AccountID)
	assert.Equal(t, "post-7", published.PostID)
	assert.Equal(t, events.PlatformEventReceived, published.GetType())
}

func TestIngestEvent_RejectsMissingFields(t *testing.T) {
	t.Parallel()

	app, bus := setupTestApp(t)

	resp := postJSON(t, app, "/events", web.IngestEventRequest{
		TriggerType: "dm",
		SenderID:    "sender-1",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestEvent_RejectsUnknownTriggerType(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/events", web.IngestEventRequest{
		AccountID:   "acc-1",
		TriggerType: "carrier_pigeon",
		SenderID:    "sender-1",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateFlow_ValidDocument(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/flows/validate", map[string]any{
		"account_id": "acc-1",
		"name":       "Giveaway funnel",
		"nodes": []map[string]any{
			{"id": "t1", "type": "trigger", "data": map[string]any{"trigger_type": "dm"}},
			{"id": "m1", "type": "message", "data": map[string]any{"text": "hi"}},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "t1", "target": "m1"},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateFlowResponse
	decodeBody(t, resp, &result)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateFlow_AccumulatesSemanticErrors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	// No trigger node and no message/action node: both problems reported.
	resp := postJSON(t, app, "/flows/validate", map[string]any{
		"account_id": "acc-1",
		"name":       "Broken",
		"nodes": []map[string]any{
			{"id": "d1", "type": "delay", "data": map[string]any{"delay_value": 5, "delay_unit": "minutes"}},
		},
		"edges": []map[string]any{},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateFlowResponse
	decodeBody(t, resp, &result)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidateFlow_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/flows/validate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
