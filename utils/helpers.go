package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	playvalidator "github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	publicIDAlphabet = "0123456789abcdef"
	teamCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Validate checks request bodies tagged with `validate:"..."`.
var Validate = playvalidator.New(playvalidator.WithRequiredStructEnabled())

// GetSubject returns the subject of the validated token on r.
func GetSubject(r *http.Request) (string, bool) {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok {
		return "", false
	}
	return claims.RegisteredClaims.Subject, true
}

// GetUserID returns the numeric user id carried in the token subject.
func GetUserID(r *http.Request) (uint, bool) {
	sub, ok := GetSubject(r)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// NewPublicID returns a 32 character hex share id.
func NewPublicID() (string, error) {
	return gonanoid.Generate(publicIDAlphabet, 32)
}

// NewTeamCode returns an 8 character invite code of uppercase letters and digits.
func NewTeamCode() (string, error) {
	return gonanoid.Generate(teamCodeAlphabet, 8)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes the {"message": ...} body every API error uses.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}
