package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/history"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{"join", `{"type":"join","username":"alice","room":"general"}`, JoinFrame{Username: "alice", Room: "general"}},
		{"join without username", `{"type":"join","room":"tech"}`, JoinFrame{Room: "tech"}},
		{"join with empty username", `{"type":"join","username":"","room":"tech"}`, JoinFrame{Room: "tech"}},
		{"join without room", `{"type":"join","username":"bob"}`, JoinFrame{Username: "bob"}},
		{"join with numeric room", `{"type":"join","username":"bob","room":7}`, JoinFrame{Username: "bob", Room: "7"}},
		{"message", `{"type":"message","text":"hi"}`, ChatFrame{Text: "hi"}},
		{"message with empty text", `{"type":"message","text":""}`, ChatFrame{Text: ""}},
		{"message keeps whitespace", `{"type":"message","text":"  spaced  "}`, ChatFrame{Text: "  spaced  "}},
		{"message with number", `{"type":"message","text":42}`, ChatFrame{Text: "42"}},
		{"message with bool", `{"type":"message","text":true}`, ChatFrame{Text: "true"}},
		{"switch", `{"type":"switch","room":"random"}`, SwitchFrame{Room: "random"}},
		{"switch to unknown room", `{"type":"switch","room":"nowhere"}`, SwitchFrame{Room: "nowhere"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInbound([]byte(tt.raw)))
		})
	}
}

func TestParseInboundIgnored(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":          `hello`,
		"truncated":         `{"type":"message","text":"hi"`,
		"array":             `[1,2,3]`,
		"json null":         `null`,
		"bare string":       `"join"`,
		"missing type":      `{"text":"hi"}`,
		"unknown type":      `{"type":"dance"}`,
		"numeric type":      `{"type":1}`,
		"message sans text": `{"type":"message"}`,
		"message null text": `{"type":"message","text":null}`,
		"switch sans room":  `{"type":"switch"}`,
	} {
		t.Run(name, func(t *testing.T) {
			frame := ParseInbound([]byte(raw))
			require.IsType(t, IgnoredFrame{}, frame)
			assert.NotEmpty(t, frame.(IgnoredFrame).Reason)
		})
	}
}

func TestOutboundEncoding(t *testing.T) {
	data, err := json.Marshal(newInitEvent([]string{"general", "random"}, "general", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"init","rooms":["general","random"],"room":"general","history":[]}`, string(data))

	msg := history.Message{ID: "id-1", Username: "alice", Text: "hi", TS: 1700000000000}
	data, err = json.Marshal(newMessageEvent(msg))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","message":{"id":"id-1","username":"alice","text":"hi","ts":1700000000000}}`, string(data))

	data, err = json.Marshal(newRoomEvent(TypeSwitched, "tech", []history.Message{msg}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"switched","room":"tech","history":[{"id":"id-1","username":"alice","text":"hi","ts":1700000000000}]}`, string(data))

	data, err = json.Marshal(newNoticeEvent("alice joined general", 5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"notice","text":"alice joined general","ts":5}`, string(data))
}
