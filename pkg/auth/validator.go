package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"

	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
	"github.com/fieldz/scheduler-engine/pkg/logging"
	"github.com/fieldz/scheduler-engine/pkg/pool"
)

// jwksCacheKey is the single entry held in the key cache; the issuer's
// whole key set is refreshed as one unit so a rotation never leaves the
// cache holding a mix of old and new keys.
const jwksCacheKey = "jwks"

// MaxKeyCacheTTL is the upper bound on how long a fetched key set may be
// trusted before a refresh is forced, per spec section 4.6.
const MaxKeyCacheTTL = 1 * time.Hour

// Claims are the fields the streaming service requires of a bearer token.
type Claims struct {
	Issuer   string
	Audience string
	Subject  string
	Expiry   time.Time
}

// KeyFetcher fetches an issuer's JSON Web Key Set. Split out from
// Validator so tests can supply a fake without a network round trip.
type KeyFetcher interface {
	FetchKeySet(ctx context.Context, issuerURL string) (*jwkSet, error)
}

// Validator validates bearer tokens against a configured issuer, caching
// the issuer's public keys with a TTL capped at MaxKeyCacheTTL and
// replacing the whole set atomically on refresh (spec section 5: "the
// issuer public-key cache is shared across all streams, guarded by a
// read-mostly lock with atomic replacement on refresh" — go-cache's
// internal locking gives us exactly that without hand-rolling one).
type Validator struct {
	issuerURL string
	audience  string
	fetcher   KeyFetcher
	cache     *gocache.Cache
	logger    logging.Logger
}

// NewValidator creates a Validator for the given issuer/audience pair.
func NewValidator(issuerURL, audience string, fetcher KeyFetcher, logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if fetcher == nil {
		fetcher = &httpKeyFetcher{pool: pool.NewHTTPClientPool(pool.DefaultPoolConfig(), logger)}
	}
	return &Validator{
		issuerURL: issuerURL,
		audience:  audience,
		fetcher:   fetcher,
		cache:     gocache.New(MaxKeyCacheTTL, 10*time.Minute),
		logger:    logger,
	}
}

// Validate checks the token's signature and iss/aud/exp claims, returning
// the resulting Claims on success or an Unauthenticated SchedulerError on
// any failure. Validation failures are never retried by the caller (spec
// section 4.6).
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Claims, error) {
	keySet, err := v.keySet(ctx)
	if err != nil {
		return nil, schederrors.Unauthenticated("issuer key set unavailable: " + err.Error())
	}

	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keySet.key(kid)
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, schederrors.ClassifyAuthFailure(err.Error())
	}
	if !token.Valid {
		return nil, schederrors.Unauthenticated("token failed validation")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, schederrors.Unauthenticated("unexpected claims type")
	}

	iss, _ := claims.GetIssuer()
	if iss != v.issuerURL {
		return nil, schederrors.Unauthenticated("unexpected issuer")
	}

	aud, _ := claims.GetAudience()
	if !containsAudience(aud, v.audience) {
		return nil, schederrors.Unauthenticated("unexpected audience")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, schederrors.Unauthenticated("missing exp claim")
	}
	if time.Now().After(exp.Time) {
		return nil, schederrors.Unauthenticated("token expired")
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, schederrors.Unauthenticated("missing sub claim")
	}

	return &Claims{Issuer: iss, Audience: v.audience, Subject: sub, Expiry: exp.Time}, nil
}

func containsAudience(aud []string, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// HasCachedKeys reports whether the issuer's key set has been fetched at
// least once; the health probe wires this to HealthUnknown ("issuer key
// cache has never successfully refreshed") per spec section 4.6/12.
func (v *Validator) HasCachedKeys() bool {
	_, ok := v.cache.Get(jwksCacheKey)
	return ok
}

// keySet returns the cached key set, refreshing it on a cache miss.
func (v *Validator) keySet(ctx context.Context) (*jwkSet, error) {
	if cached, ok := v.cache.Get(jwksCacheKey); ok {
		return cached.(*jwkSet), nil
	}

	fresh, err := v.fetcher.FetchKeySet(ctx, v.issuerURL)
	if err != nil {
		return nil, err
	}

	v.cache.Set(jwksCacheKey, fresh, gocache.DefaultExpiration)
	v.logger.Info("refreshed issuer key set", "issuer", v.issuerURL, "keys", len(fresh.keys))
	return fresh, nil
}

// jwkSet holds an issuer's RSA public keys indexed by key id.
type jwkSet struct {
	keys map[string]*rsa.PublicKey
}

func (s *jwkSet) key(kid string) (*rsa.PublicKey, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

// StaticKeyFetcher returns a fixed key set regardless of issuer, useful
// for tests and single-key development setups that skip JWKS entirely.
type StaticKeyFetcher struct {
	set *jwkSet
}

// NewStaticKeyFetcher builds a StaticKeyFetcher serving a single RSA key
// under the given key id.
func NewStaticKeyFetcher(kid string, pub *rsa.PublicKey) *StaticKeyFetcher {
	return &StaticKeyFetcher{set: &jwkSet{keys: map[string]*rsa.PublicKey{kid: pub}}}
}

func (f *StaticKeyFetcher) FetchKeySet(ctx context.Context, issuerURL string) (*jwkSet, error) {
	return f.set, nil
}

// rawJWKS mirrors the JSON shape of a standard JWKS document.
type rawJWKS struct {
	Keys []rawJWK `json:"keys"`
}

type rawJWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// httpKeyFetcher fetches and parses a JWKS document over HTTPS, reusing a
// pooled client per issuer host rather than dialing fresh each refresh.
type httpKeyFetcher struct {
	pool *pool.HTTPClientPool
}

func (f *httpKeyFetcher) FetchKeySet(ctx context.Context, issuerURL string) (*jwkSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL+"/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.pool.GetClient(issuerURL).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks fetch: unexpected status %d", resp.StatusCode)
	}

	var doc rawJWKS
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	set := &jwkSet{keys: make(map[string]*rsa.PublicKey, len(doc.Keys))}
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := decodeRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		set.keys[k.Kid] = pub
	}
	return set, nil
}

func decodeRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
