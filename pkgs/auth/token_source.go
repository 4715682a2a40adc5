package auth

import (
	"github.com/juju/errors"
	"golang.org/x/oauth2"
)

// NewPageTokenSource exposes a page access token as an oauth2.TokenSource.
// Page tokens issued by the developer console never expire, so the token is
// static and carries no expiry.
func NewPageTokenSource(accessToken string) (oauth2.TokenSource, error) {
	if accessToken == "" {
		return nil, errors.New("page access token is empty")
	}
	return oauth2.ReuseTokenSource(nil, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})), nil
}

// AccessToken resolves the current token value from ts.
func AccessToken(ts oauth2.TokenSource) (string, error) {
	token, err := ts.Token()
	if err != nil {
		return "", errors.Annotate(err, "failed to get access token")
	}
	if !token.Valid() {
		return "", errors.New("access token is invalid or expired")
	}
	return token.AccessToken, nil
}
