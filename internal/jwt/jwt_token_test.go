package jwt

import (
	"testing"
	"time"
)

func setupSecret(t *testing.T) {
	t.Helper()
	SetSecret("test-secret")
	t.Cleanup(func() { SetSecret("") })
}

func TestCreateAndParseToken(t *testing.T) {
	setupSecret(t)

	operator := Operator{Id: "op-1", Email: "amy@example.com", Name: "Amy"}
	for _, role := range []Role{RoleOperator, RoleAdmin} {
		token, err := CreateToken(operator, role, 0)
		if err != nil {
			t.Fatalf("create token for role %d: %v", role, err)
		}

		claims, err := ParseToken(token, role)
		if err != nil {
			t.Fatalf("parse token for role %d: %v", role, err)
		}
		if claims["id"] != "op-1" || claims["email"] != "amy@example.com" || claims["name"] != "Amy" {
			t.Fatalf("unexpected claims: %v", claims)
		}

		exp, ok := claims["exp"].(float64)
		if !ok {
			t.Fatalf("expected numeric exp claim, got %T", claims["exp"])
		}
		if int64(exp) <= time.Now().Unix() {
			t.Fatalf("expected exp in the future, got %v", exp)
		}
	}
}

func TestParseTokenRejectsWrongRole(t *testing.T) {
	setupSecret(t)

	token, err := CreateToken(Operator{Id: "op-1"}, RoleOperator, 0)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := ParseToken(token, RoleAdmin); err == nil {
		t.Fatalf("expected operator token to fail admin parse")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	setupSecret(t)

	token, err := CreateToken(Operator{Id: "op-1"}, RoleOperator, 0)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	tampered := "x" + token[1:]
	if _, err := ParseToken(tampered, RoleOperator); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
	if _, err := ParseToken("", RoleOperator); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	setupSecret(t)

	expired := time.Now().Add(-time.Hour).Unix()
	token, err := CreateToken(Operator{Id: "op-1"}, RoleOperator, expired)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := ParseToken(token, RoleOperator); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestCreateTokenWithoutSecret(t *testing.T) {
	SetSecret("")
	if _, err := CreateToken(Operator{Id: "op-1"}, RoleOperator, 0); err == nil {
		t.Fatalf("expected an error without a signing secret")
	}
}
