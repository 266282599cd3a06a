package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/notify/card"
	"onboard/internal/platform/upstream"
	"onboard/pkg/platform/sentinel"
)

const base = "https://chat.vendor.test"

var chats = map[string]string{DefaultChat: "oc_default", "Berlin": "oc_berlin"}

func newClient(t *testing.T) (*Client, *httpmock.MockTransport, *[]sendRequest) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	api := upstream.New("messenger", base,
		upstream.WithHTTPClient(&http.Client{Transport: mt}),
		upstream.WithRetry(0, time.Millisecond),
	)
	c, err := New(api, chats)
	require.NoError(t, err)

	var got []sendRequest
	mt.RegisterResponder(http.MethodPost, base+messagesPath, func(r *http.Request) (*http.Response, error) {
		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		return httpmock.NewStringResponse(200, `{"code":0,"data":{"message_id":"om_`+body.ReceiveID+`"}}`), nil
	})
	return c, mt, &got
}

func sample() card.Card {
	c := card.Card{Header: card.Header{Title: "Onboarding · Berlin", Color: card.ColorRed}}
	c.Add(card.Markdown("**2** hires pending"))
	c.Add(card.Divider())
	c.Add(card.TableOf(card.Table{Title: "Succeeded", Columns: []string{"Name", "Email"}, Rows: [][]string{{"Xia", "xia@example.com"}}}))
	c.Add(card.Actions(card.Button{
		Text:    "Create all emails (1)",
		Style:   "primary",
		Value:   json.RawMessage(`{"kind":"batch-email"}`),
		Confirm: &card.Confirm{Title: "Create", Text: "Sure?"},
	}))
	return c
}

func TestSend_RoutesByGroup(t *testing.T) {
	c, _, got := newClient(t)
	ctx := context.Background()

	id, err := c.Send(ctx, "Berlin", sample())
	require.NoError(t, err)
	assert.Equal(t, "om_oc_berlin", id)

	id, err = c.Send(ctx, "Munich", sample())
	require.NoError(t, err)
	assert.Equal(t, "om_oc_default", id, "unmapped group falls back to the default chat")

	id, err = c.Send(ctx, "", sample())
	require.NoError(t, err)
	assert.Equal(t, "om_oc_default", id)

	require.NoError(t, c.SendFollowup(ctx, sample()))
	require.Len(t, *got, 4)
	assert.Equal(t, "oc_default", (*got)[3].ReceiveID)
	assert.Equal(t, "interactive", (*got)[0].MsgType)
}

func TestSend_EncodesInteractiveCard(t *testing.T) {
	c, _, got := newClient(t)
	_, err := c.Send(context.Background(), "Berlin", sample())
	require.NoError(t, err)

	var content map[string]any
	require.NoError(t, json.Unmarshal([]byte((*got)[0].Content), &content))

	header := content["header"].(map[string]any)
	assert.Equal(t, "red", header["template"])
	assert.Equal(t, "Onboarding · Berlin", header["title"].(map[string]any)["content"])

	elements := content["elements"].([]any)
	var tags []string
	for _, e := range elements {
		tags = append(tags, e.(map[string]any)["tag"].(string))
	}
	assert.Equal(t, []string{"markdown", "hr", "markdown", "table", "action"}, tags)

	tbl := elements[3].(map[string]any)
	rows := tbl["rows"].([]any)
	assert.Equal(t, "xia@example.com", rows[0].(map[string]any)["c1"])

	btn := elements[4].(map[string]any)["actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "primary", btn["type"])
	assert.Equal(t, map[string]any{"kind": "batch-email"}, btn["value"])
	assert.NotNil(t, btn["confirm"])
}

func TestSend_TranslatesVendorCode(t *testing.T) {
	mt := httpmock.NewMockTransport()
	api := upstream.New("messenger", base,
		upstream.WithHTTPClient(&http.Client{Transport: mt}),
		upstream.WithRetry(0, time.Millisecond),
	)
	c, err := New(api, chats)
	require.NoError(t, err)
	mt.RegisterResponder(http.MethodPost, base+messagesPath,
		httpmock.NewStringResponder(400, `{"code":230002,"msg":"chat not found"}`))

	_, err = c.Send(context.Background(), "Berlin", sample())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Contains(t, err.Error(), "oc_berlin")
}

func TestNew_RequiresDefaultChat(t *testing.T) {
	api := upstream.New("messenger", base)
	_, err := New(api, map[string]string{"Berlin": "oc_berlin"})
	require.Error(t, err)
}
