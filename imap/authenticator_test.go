/*
 * MailSync - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package imap

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/emersion/go-sasl"
	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/imap/mock_imap"
	"golang.org/x/oauth2"
)

func buildTestServer(t *testing.T) (*server.Server, string) {
	be := memory.New()

	s := server.New(be)
	t.Cleanup(func() { _ = s.Close() })

	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	go func() { _ = s.Serve(l) }()

	return s, l.Addr().String()
}

func TestNormal(t *testing.T) {
	_, address := buildTestServer(t)

	c, err := client.Dial(address)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	t.Cleanup(func() { _ = c.Logout() })

	a := NewNormalAuthenticator("username", "password")

	err = a.Authenticate(c)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
}

func TestNormalBadPassword(t *testing.T) {
	_, address := buildTestServer(t)

	c, err := client.Dial(address)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	t.Cleanup(func() { _ = c.Logout() })

	err = NewNormalAuthenticator("username", "wrong").Authenticate(c)
	assert.Error(t, err)
}

func TestNormalUsesLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mock_imap.NewMockAuthenticatable(ctrl)
	m.EXPECT().Login("user", "pass").Return(nil).Times(1)

	assert.NoError(t, NewNormalAuthenticator("user", "pass").Authenticate(m))
}

func TestSASLUsesAuthenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sc := sasl.NewPlainClient("", "user", "pass")

	m := mock_imap.NewMockAuthenticatable(ctrl)
	m.EXPECT().Authenticate(sc).Return(errors.New("nope")).Times(1)

	a := NewSASLAuthenticator(sc)
	assert.Error(t, a.Authenticate(m))

	src, ok := a.(SASLSource)
	if !assert.True(t, ok) {
		t.FailNow()
	}

	got, err := src.SASLClient()
	assert.NoError(t, err)
	assert.Equal(t, sc, got)
}

func TestNormalSASLClientIsPlain(t *testing.T) {
	src, ok := NewNormalAuthenticator("user", "pass").(SASLSource)
	if !assert.True(t, ok) {
		t.FailNow()
	}

	sc, err := src.SASLClient()
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	mech, ir, err := sc.Start()
	assert.NoError(t, err)
	assert.Equal(t, sasl.Plain, mech)
	assert.Equal(t, []byte("\x00user\x00pass"), ir)
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token refresh failed")
}

func TestOAuthBearerTokenFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mock_imap.NewMockAuthenticatable(ctrl)

	a := NewOAuthBearerAuthenticator("username", failingTokenSource{})
	assert.Error(t, a.Authenticate(m))
}

func TestOAuthBearer(t *testing.T) {
	srv, address := buildTestServer(t)

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	now := time.Now()
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = time.Now })

	tok := jwt.New(jwt.SigningMethodES256)
	tok.Header["kid"] = "mailsync"
	tok.Claims = jwt.RegisteredClaims{
		Issuer:    "mailsync test",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Hour)),
		NotBefore: jwt.NewNumericDate(now),
		Subject:   "username",
	}

	signedTok, err := tok.SignedString(privKey)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	srv.EnableAuth(sasl.OAuthBearer, func(conn server.Conn) sasl.Server {
		return sasl.NewOAuthBearerServer(func(opts sasl.OAuthBearerOptions) *sasl.OAuthBearerError {
			clientTok, err := jwt.Parse(opts.Token, func(token *jwt.Token) (interface{}, error) {
				if token.Header["kid"] != tok.Header["kid"] {
					return nil, errors.New("invalid kid")
				}

				return &privKey.PublicKey, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Name}))

			if err != nil {
				t.Error(err)
				return &sasl.OAuthBearerError{Status: "invalid_request", Schemes: "bearer"}
			}

			if !clientTok.Valid {
				return &sasl.OAuthBearerError{Status: "forbidden", Schemes: "bearer"}
			}

			if clientTok.Claims.(jwt.MapClaims)["sub"] != "username" {
				return &sasl.OAuthBearerError{Status: "forbidden", Schemes: "bearer"}
			}

			if opts.Username != "username" {
				return &sasl.OAuthBearerError{Status: "forbidden", Schemes: "bearer"}
			}

			return nil
		})
	})

	c, err := client.Dial(address)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	t.Cleanup(func() { _ = c.Logout() })

	a := NewOAuthBearerAuthenticator("username", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: signedTok}))

	err = a.Authenticate(c)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
}
