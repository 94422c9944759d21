package agent

import (
	"encoding/json"
	"testing"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyWithComment(t *testing.T) {
	turn, err := ParseReply([]byte(`{"output":{"comment":"ok","shouldRun":true,"url":"/api/v1/applications/guestbook/sync","method":"POST"}}`))
	require.NoError(t, err)

	assert.Equal(t, "ok", turn.Text())

	action, err := turn.SuggestedAction()
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, "POST", action.Method)
	assert.Equal(t, "/api/v1/applications/guestbook/sync", action.URL)
	assert.False(t, action.HasBody())
}

func TestParseReplyWithoutCommentRendersOutput(t *testing.T) {
	turn, err := ParseReply([]byte(`{"output": {"shouldRun": false, "url": "/x"}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"shouldRun":false,"url":"/x"}`, turn.Text())
}

func TestParseReplyMissingOutput(t *testing.T) {
	for _, body := range []string{`{}`, `{"output":null}`} {
		turn, err := ParseReply([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, "{}", turn.Text())

		action, err := turn.SuggestedAction()
		require.NoError(t, err)
		assert.Nil(t, action)
	}
}

func TestParseReplyMalformed(t *testing.T) {
	for _, body := range []string{``, `<html>`, `{"output":"nope"}`, `{"output":{"comment":42}}`} {
		_, err := ParseReply([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedReply, body)
	}
}

func TestSuggestedActionRequiresShouldRunURLAndMethod(t *testing.T) {
	cases := []string{
		`{"output":{"shouldRun":false,"url":"/x","method":"GET"}}`,
		`{"output":{"url":"/x","method":"GET"}}`,
		`{"output":{"shouldRun":true,"method":"GET"}}`,
		`{"output":{"shouldRun":true,"url":"/x"}}`,
		`{"output":{"shouldRun":0,"url":"/x","method":"GET"}}`,
		`{"output":{"shouldRun":"","url":"/x","method":"GET"}}`,
	}
	for _, body := range cases {
		turn, err := ParseReply([]byte(body))
		require.NoError(t, err, body)
		action, err := turn.SuggestedAction()
		require.NoError(t, err, body)
		assert.Nil(t, action, body)
	}
}

func TestSuggestedActionLooseTruthiness(t *testing.T) {
	for _, flag := range []string{`true`, `1`, `"yes"`, `{}`} {
		turn, err := ParseReply([]byte(`{"output":{"shouldRun":` + flag + `,"url":"/x","method":"get","body":{"prune":true}}}`))
		require.NoError(t, err, flag)
		action, err := turn.SuggestedAction()
		require.NoError(t, err, flag)
		require.NotNil(t, action, flag)
		assert.Equal(t, "GET", action.Method)
		assert.JSONEq(t, `{"prune":true}`, string(action.Body))
	}
}

func TestSuggestedActionRejectsUnknownVerb(t *testing.T) {
	turn, err := ParseReply([]byte(`{"output":{"shouldRun":true,"url":"/x","method":"EXPLODE"}}`))
	require.NoError(t, err)
	action, err := turn.SuggestedAction()
	require.Error(t, err)
	assert.Nil(t, action)
}

func TestTurnRequestWireShape(t *testing.T) {
	req := TurnRequest{
		Message:     "hi",
		SessionID:   "alice_1700000000",
		Application: "guestbook",
		AppData: SnapshotData(&domain.ApplicationSnapshot{
			Status: json.RawMessage(`{"health":"Healthy"}`),
			Spec:   json.RawMessage(`{"project":"default"}`),
		}),
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi","sessionId":"alice_1700000000","application":"guestbook","appData":{"status":{"health":"Healthy"},"spec":{"project":"default"}}}`, string(data))

	req.AppData = ResultData("❌ Failed to send request.")
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi","sessionId":"alice_1700000000","application":"guestbook","appData":{"apiResult":"❌ Failed to send request."}}`, string(data))

	req.AppData = SnapshotData(nil)
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi","sessionId":"alice_1700000000","application":"guestbook","appData":{}}`, string(data))
}
