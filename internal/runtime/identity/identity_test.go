package identity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	id, err := ParseAccountID("conference.netology-group.services")
	require.NoError(t, err)
	assert.Equal(t, "conference", id.Label)
	assert.Equal(t, "netology-group.services", id.Audience)
	assert.Equal(t, "conference.netology-group.services", id.String())

	for _, bad := range []string{"", "nodot", ".audience", "label."} {
		_, err := ParseAccountID(bad)
		assert.True(t, errors.Is(err, ErrInvalidID), "expected %q to be rejected", bad)
	}
}

func TestParseAgentID(t *testing.T) {
	id, err := ParseAgentID("web.12345.netology.ru")
	require.NoError(t, err)
	assert.Equal(t, "web", id.Label)
	assert.Equal(t, AccountID{Label: "12345", Audience: "netology.ru"}, id.AccountID())
	assert.Equal(t, "web.12345.netology.ru", id.String())

	for _, bad := range []string{"", "web", "web.12345", ".12345.netology.ru"} {
		_, err := ParseAgentID(bad)
		assert.True(t, errors.Is(err, ErrInvalidID), "expected %q to be rejected", bad)
	}
}

func TestJSONTextRoundTrip(t *testing.T) {
	type body struct {
		Me          AgentID   `json:"me"`
		Destination AccountID `json:"destination"`
	}

	var in body
	require.NoError(t, json.Unmarshal([]byte(`{"me":"web.12345.netology.ru","destination":"conference.netology-group.services"}`), &in))
	assert.Equal(t, "web", in.Me.Label)
	assert.Equal(t, "conference", in.Destination.Label)

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"me":"web.12345.netology.ru","destination":"conference.netology-group.services"}`, string(out))

	err = json.Unmarshal([]byte(`{"me":"broken","destination":"conference.netology-group.services"}`), &in)
	assert.Error(t, err)
}

func TestZeroValuesDoNotMarshal(t *testing.T) {
	_, err := AccountID{}.MarshalText()
	assert.Error(t, err)
	_, err = AgentID{}.MarshalText()
	assert.Error(t, err)
	assert.True(t, AgentID{}.IsZero())
}
