package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
)

var (
	NowFunc = time.Now // mockable

	jwtContextKey = "clientToken"
	authScheme    = "Bearer"
)

// Claims identify a client context. The session itself lives server-side, in the context's slots.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64 `json:"oriat,omitempty"`
}

// ContextID is the client context the token was issued to.
func (c Claims) ContextID() string { return c.Subject }

type jwtConfig struct {
	appName                string
	signingKey             []byte
	expirationDelta        time.Duration
	refreshExpirationDelta time.Duration
}

func newJWTConfig(conf *core.Config) jwtConfig {
	return jwtConfig{
		appName:                conf.AppName,
		signingKey:             []byte(conf.SecretKey),
		expirationDelta:        conf.Server.JWTExpirationDelta,
		refreshExpirationDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

// middlewareConfig is the JWT auth middleware config.
func (jc jwtConfig) middlewareConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    jc.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of contextID. An empty contextID starts a new client context.
func (jc jwtConfig) NewClaims(contextID string, origIat ...int64) *Claims {
	if contextID == "" {
		contextID = uuid.New().String()
	}

	now := NowFunc()
	nownix := now.Unix()
	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    jc.appName,
			Subject:   contextID,
			ExpiresAt: now.Add(jc.expirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (jc jwtConfig) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(jc.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a raw token string.
func (jc jwtConfig) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return jc.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// requestClaims reads the claims of an optional bearer token on public endpoints.
// A missing or invalid token yields nil.
func (jc jwtConfig) requestClaims(ctx echo.Context) *Claims {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, authScheme+" ") {
		return nil
	}
	claims, err := jc.parseToken(auth[len(authScheme)+1:])
	if err != nil {
		return nil
	}
	return claims
}

// refresh extends the token of an authed request, unless its refresh window has expired.
func (jc jwtConfig) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jc.refreshExpirationDelta)
	if NowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := jc.GenerateToken(jc.NewClaims(claims.ContextID(), claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
