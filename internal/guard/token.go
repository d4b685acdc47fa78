package guard

import (
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/me/tutordesk/pkg/model"
)

// DecodeClaims reads the payload of a bearer token. The signature is not
// checked: the server is the only party that can, and it does so on every
// protected call. A token that does not parse yields a DECODE error
// wrapping model.ErrMalformedToken.
func DecodeClaims(raw string) (model.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Claims{}, malformed(fmt.Errorf("empty token"))
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return model.Claims{}, malformed(err)
	}

	var claims model.Claims
	claims.Role, _ = mc["role"].(string)
	claims.Fullname, _ = mc["fullname"].(string)
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return model.Claims{}, malformed(err)
	}
	if exp != nil {
		claims.Expiry = exp.Time
	}
	return claims, nil
}

func malformed(err error) error {
	return &model.APIError{
		Kind:    model.KindDecode,
		Message: "decode token",
		Err:     fmt.Errorf("%w: %w", model.ErrMalformedToken, err),
	}
}

// ResolveRole picks the session's role. An explicit role from the login
// response wins; otherwise the token's role claim is used; anything
// unrecognized lands on student, never admin.
func ResolveRole(explicit string, claims model.Claims) model.Role {
	if role, ok := model.ParseRole(explicit); ok {
		return role
	}
	if role, ok := model.ParseRole(claims.Role); ok {
		return role
	}
	return model.RoleStudent
}
