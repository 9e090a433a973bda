package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"kingchat-backend/internal/dispatch"
	internaljwt "kingchat-backend/internal/jwt"
)

func ExtractTokenFromHeaders(r *http.Request) string {
	tokenString := r.Header.Get("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		return tokenString[len("Bearer "):]
	}
	return r.URL.Query().Get("token")
}

// OperatorFromRequest recovers the operator identity from the already
// validated access token. Auth middleware runs before this, so a parse
// failure here means a missing token, not an attack worth detailing.
func OperatorFromRequest(r *http.Request) (dispatch.Identity, error) {
	tokenString := ExtractTokenFromHeaders(r)
	if tokenString == "" {
		return dispatch.Identity{}, fmt.Errorf("missing access token")
	}

	var claims map[string]interface{}
	var err error
	for _, role := range []internaljwt.Role{internaljwt.RoleOperator, internaljwt.RoleAdmin} {
		claims, err = internaljwt.ParseToken(tokenString, role)
		if err == nil {
			break
		}
	}
	if err != nil {
		return dispatch.Identity{}, fmt.Errorf("parse access token: %w", err)
	}

	identity := dispatch.Identity{}
	if id, ok := claims["id"].(string); ok {
		identity.OperatorID = id
	}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if identity.OperatorID == "" {
		return dispatch.Identity{}, fmt.Errorf("access token has no operator id")
	}
	return identity, nil
}
