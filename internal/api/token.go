// File: internal/api/token.go
package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var tokenParser = jwt.NewParser()

// adoptToken switches the client to bearer authentication when a JSON response
// hands out a JWT in its "token" field, as login endpoints do. The signature is not checked.
func (c *Client) adoptToken(resp *Response) {
	obj, ok := resp.Object()
	if !ok {
		return
	}
	raw, ok := obj["token"].(string)
	if !ok || raw == "" {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := tokenParser.ParseUnverified(raw, claims); err != nil {
		c.logger.Debug("Response token is not a JWT, ignoring.", zap.Error(err))
		return
	}

	fields := []zap.Field{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		fields = append(fields, zap.Time("expires_at", exp.Time), zap.Duration("expires_in", time.Until(exp.Time)))
	}
	c.SetBearerToken(raw)
	c.logger.Info("Adopted bearer token from response.", fields...)
}
