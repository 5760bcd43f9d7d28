package auth

// TokenValidator turns a raw access token into claims. The Auther keeps
// its own HS256 TokenService as the default; swapping in a different
// validator (an external IdP, a test double) is a wiring concern, not a
// signing one.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc lets a bare function act as a TokenValidator. A nil
// function rejects every token instead of panicking, so optional wiring
// can pass it through unguarded.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}
