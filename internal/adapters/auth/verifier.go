package auth

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// ErrUnauthenticated はトークンが無い・不正な場合に返却されます。
var ErrUnauthenticated = errors.New("auth: unauthenticated")

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier は HS256 で署名された Bearer トークンを検証します。
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier は Verifier を生成します。issuer が空の場合は iss を検証しません。
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, now: time.Now}
}

// Verify はトークンを検証し呼び出し元を返します。
func (v *Verifier) Verify(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, errors.Wrap(ErrUnauthenticated, "empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, errors.Mark(errors.Wrap(err, "parse token"), ErrUnauthenticated)
	}
	if !parsed.Valid {
		return Identity{}, errors.Wrap(ErrUnauthenticated, "invalid token")
	}

	if strings.TrimSpace(c.Subject) == "" {
		return Identity{}, errors.Wrap(ErrUnauthenticated, "missing sub")
	}

	id := Identity{UserID: c.Subject}
	switch job.Role(c.Role) {
	case job.RoleEmployer, job.RoleEmployee:
		id.Role = job.Role(c.Role)
	case "":
	default:
		return Identity{}, errors.Wrapf(ErrUnauthenticated, "unknown role %q", c.Role)
	}
	return id, nil
}

// Sign は id を表す HS256 トークンを発行します。開発用クライアントとテストで使います。
func Sign(secret []byte, issuer string, id Identity, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// BearerToken は Authorization ヘッダーからトークンを取り出します。
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.Wrap(ErrUnauthenticated, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.Wrap(ErrUnauthenticated, "invalid authorization header")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.Wrap(ErrUnauthenticated, "empty token")
	}
	return token, nil
}
