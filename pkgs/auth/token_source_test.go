package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewPageTokenSource(t *testing.T) {
	ts, err := NewPageTokenSource("page-token")
	require.NoError(t, err)

	token, err := AccessToken(ts)
	require.NoError(t, err)
	assert.Equal(t, "page-token", token)
}

func TestNewPageTokenSource_Empty(t *testing.T) {
	_, err := NewPageTokenSource("")
	assert.Error(t, err)
}

func TestAccessToken_Expired(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Hour),
	})
	_, err := AccessToken(ts)
	assert.Error(t, err)
}
