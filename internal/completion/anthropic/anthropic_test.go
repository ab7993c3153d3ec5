package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func TestMessages_Alternate(t *testing.T) {
	msgs := Messages(domain.Prompt{
		History: []domain.Exchange{{User: "u1", Agent: "a1"}, {User: "u2", Agent: "a2"}},
		User:    "u3",
	})
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		want := anthropic.MessageParamRoleUser
		if i%2 == 1 {
			want = anthropic.MessageParamRoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}

func TestSystemAndTemplate(t *testing.T) {
	p := domain.Prompt{
		System:        "sys",
		AIMessage:     "Hi, I remember things.",
		HumanTemplate: "Q: {human_input}",
		User:          "u1",
	}
	blocks := System(p)
	require.Len(t, blocks, 2)
	assert.Equal(t, "sys", blocks[0].Text)
	assert.Contains(t, blocks[1].Text, "Hi, I remember things.")
	assert.Len(t, System(domain.Prompt{System: "sys"}), 1)

	msgs := Messages(p)
	require.Len(t, msgs, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	require.NotNil(t, msgs[0].Content[0].OfText)
	assert.Equal(t, "Q: u1", msgs[0].Content[0].OfText.Text)
}

func TestNew_RequiresKey(t *testing.T) {
	t.Setenv("MEMCHAT_EMPTY_KEY", "")
	_, err := New(Config{APIKeyEnv: "MEMCHAT_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "hello "},
				{"type": "text", "text": "back"},
			},
			"usage": map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	}))
	defer srv.Close()

	t.Setenv("MEMCHAT_TEST_KEY", "sk-ant-test")
	c, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "MEMCHAT_TEST_KEY", Model: "claude-test"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), domain.Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
}
