package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/db"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
)

const accessTokenTTL = time.Hour

const Schema = `
	CREATE TABLE IF NOT EXISTS application_keys (
		id               TEXT PRIMARY KEY,
		secret_hash      TEXT NOT NULL,
		regions          TEXT[] NOT NULL DEFAULT '{}',
		allow_motorcycle BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS deprovisioned_drivers (
		key_id           TEXT NOT NULL REFERENCES application_keys(id),
		driver_id        TEXT NOT NULL,
		PRIMARY KEY (key_id, driver_id)
	);
`

var (
	hashKeyFn    = bcrypt.GenerateFromPassword
	compareKeyFn = bcrypt.CompareHashAndPassword
	signTokenFn  = (*Service).signToken

	parseWithClaimsFn = jwt.ParseWithClaims
)

// Service validates application keys against Postgres and issues bridge
// tokens bound to a driver id.
type Service struct {
	secret []byte
	db     db.Querier
}

func NewService(secret string, q db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
	}
}

func (s *Service) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// CreateKey provisions a new application key. The returned Key is the only
// time the secret part is visible; only its hash is stored.
func (s *Service) CreateKey(ctx context.Context, req CreateKeyRequest) (ApplicationKey, error) {
	for _, r := range req.Regions {
		if r != "us" && r != "eu" {
			return ApplicationKey{}, sdkerr.New(sdkerr.InvalidRegion)
		}
	}
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := hashKeyFn([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return ApplicationKey{}, err
	}

	key := ApplicationKey{
		ID:              strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Regions:         append([]string{}, req.Regions...),
		AllowMotorcycle: req.AllowMotorcycle,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO application_keys (id, secret_hash, regions, allow_motorcycle)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, key.ID, string(hash), key.Regions, key.AllowMotorcycle)
	if err := row.Scan(&key.CreatedAt); err != nil {
		return ApplicationKey{}, err
	}
	key.Key = key.ID + "." + secret
	return key, nil
}

// Validate checks an application key of the form "<id>.<secret>" and returns
// what it grants to driverID. Database failures surface as NetworkUnreachable.
func (s *Service) Validate(ctx context.Context, key, driverID string) (Grant, error) {
	id, secret, ok := strings.Cut(key, ".")
	if !ok || id == "" || secret == "" {
		return Grant{}, sdkerr.New(sdkerr.InvalidSDKKey)
	}
	if s.db == nil {
		return Grant{}, sdkerr.Newf(sdkerr.NetworkUnreachable, "no key store configured")
	}

	var hash string
	var revoked bool
	var grant Grant
	row := s.db.QueryRow(ctx, `
		SELECT secret_hash, regions, allow_motorcycle, revoked_at IS NOT NULL
		FROM application_keys WHERE id = $1
	`, id)
	if err := row.Scan(&hash, &grant.Regions, &grant.Motorcycle, &revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, sdkerr.New(sdkerr.InvalidSDKKey)
		}
		return Grant{}, sdkerr.Newf(sdkerr.NetworkUnreachable, "key lookup: %v", err)
	}
	if revoked {
		return Grant{}, sdkerr.Newf(sdkerr.InvalidSDKKey, "application key revoked")
	}
	if err := compareKeyFn([]byte(hash), []byte(secret)); err != nil {
		return Grant{}, sdkerr.New(sdkerr.InvalidSDKKey)
	}

	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM deprovisioned_drivers WHERE key_id = $1 AND driver_id = $2)
	`, id, driverID).Scan(&grant.Deprovisioned); err != nil {
		return Grant{}, sdkerr.Newf(sdkerr.NetworkUnreachable, "driver lookup: %v", err)
	}
	return grant, nil
}

// IssueToken validates the key and signs a bridge token for the driver.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if !ident.ValidID(req.DriverID, true) {
		return TokenResponse{}, sdkerr.Newf(sdkerr.InvalidParams, "driver id must be 1-64 valid characters")
	}
	grant, err := s.Validate(ctx, req.ApplicationKey, req.DriverID)
	if err != nil {
		return TokenResponse{}, err
	}
	if grant.Deprovisioned {
		return TokenResponse{}, sdkerr.New(sdkerr.UserDeprovisioned)
	}

	access, err := signTokenFn(s, req.DriverID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.DriverID, nil
}

func (s *Service) signToken(driverID string, ttl time.Duration) (string, error) {
	claims := Claims{
		DriverID: driverID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
