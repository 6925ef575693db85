package signal

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/core/domain"
)

func TestDecodePayload(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		raw     string
		dst     func() interface{}
		wantErr string
	}{
		{"missing payload", ``, func() interface{} { return &joinPayload{} }, "payload is required"},
		{"not an object", `[1,2]`, func() interface{} { return &joinPayload{} }, "malformed payload"},
		{"missing group", `{"userId":"u1"}`, func() interface{} { return &joinPayload{} }, "groupId is required"},
		{"bad group id", `{"groupId":"g 1"}`, func() interface{} { return &joinPayload{} }, "groupId is invalid"},
		{"bad user id", `{"groupId":"g1","userId":"u 1"}`, func() interface{} { return &joinPayload{} }, "userId is invalid"},
		{"valid join", `{"groupId":"g1","userId":"u1","userName":"Ann"}`, func() interface{} { return &joinPayload{} }, ""},
		{"offer without sdp", `{"groupId":"g1","receiverId":"b"}`, func() interface{} { return &offerPayload{} }, "offer is required"},
		{"offer null sdp", `{"groupId":"g1","receiverId":"b","offer":null}`, func() interface{} { return &offerPayload{} }, "offer is required"},
		{"offer without receiver", `{"groupId":"g1","offer":{}}`, func() interface{} { return &offerPayload{} }, "receiverId is required"},
		{"valid candidate", `{"groupId":"g1","receiverId":"b","candidate":{"candidate":"x"}}`, func() interface{} { return &icePayload{} }, ""},
		{"missing session", `{}`, func() interface{} { return &sessionPayload{} }, "sessionId is required"},
		{"bare chat group", `"g1"`, func() interface{} { return &chatGroupPayload{} }, ""},
		{"object chat group", `{"groupId":"g1"}`, func() interface{} { return &chatGroupPayload{} }, ""},
		{"bare chat group invalid", `"g/1"`, func() interface{} { return &chatGroupPayload{} }, "groupId is invalid"},
		{"blank user name", `{"groupId":"g1","userName":"   "}`, func() interface{} { return &joinPayload{} }, "userName is invalid"},
		{"long sender name", `{"groupId":"g1","receiverId":"b","offer":{},"senderName":"` + strings.Repeat("n", 101) + `"}`, func() interface{} { return &offerPayload{} }, "senderName is invalid"},
		{"valid message", `{"groupId":"g1","content":"hello","userName":"Ann"}`, func() interface{} { return &messagePayload{} }, ""},
		{"message without content", `{"groupId":"g1"}`, func() interface{} { return &messagePayload{} }, "content is required"},
		{"blank message", `{"groupId":"g1","content":"  \n "}`, func() interface{} { return &messagePayload{} }, "content is invalid"},
		{"oversized message", `{"groupId":"g1","content":"` + strings.Repeat("x", 4001) + `"}`, func() interface{} { return &messagePayload{} }, "content is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodePayload(v, json.RawMessage(tt.raw), tt.dst())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestDecodePayload_KeepsSignalPayloadOpaque(t *testing.T) {
	raw := `{"groupId":"g1","receiverId":"b","offer":{"type":"offer","sdp":"v=0\r\n","extra":[1,2]}}`

	var p offerPayload
	require.NoError(t, decodePayload(newValidator(), json.RawMessage(raw), &p))

	req := p.request(p.Offer)
	assert.Equal(t, domain.RoomID("g1"), req.Room)
	assert.Equal(t, domain.ConnectionID("b"), req.ReceiverID)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0\r\n","extra":[1,2]}`, string(req.Payload))
}
