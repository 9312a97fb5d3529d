package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

// WindowCounter is satisfied by the Redis client.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one surface by client IP and, optionally, by
// an email read from the JSON body. A zero limit disables that dimension.
type RateLimitPolicy struct {
	Name       string
	Window     time.Duration
	PerIP      int
	PerEmail   int
	EmailField string
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

type limitCheck struct {
	dimension string
	value     string
	limit     int
}

// RateLimit rejects requests over the policy with 429. Counter failures
// surface as 503 rather than letting traffic through unmetered.
func RateLimit(policy RateLimitPolicy, counter WindowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	if policy.EmailField == "" {
		policy.EmailField = "email"
	}
	return func(next http.Handler) http.Handler {
		if counter == nil || !policy.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks := make([]limitCheck, 0, 2)
			if policy.PerIP > 0 {
				checks = append(checks, limitCheck{dimension: "ip", value: clientIP(r), limit: policy.PerIP})
			}
			if policy.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitedBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidPayload, err, "corpo da requisição inválido"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailFromBody(body, policy.EmailField); email != "" {
					checks = append(checks, limitCheck{dimension: "email", value: hashEmail(email), limit: policy.PerEmail})
				}
			}

			for _, check := range checks {
				if check.value == "" {
					continue
				}
				scope := policy.Name + ":" + check.dimension + ":" + check.value
				allowed, count, err := counter.FixedWindowAllow(ctx, scope, int64(check.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":    policy.Name,
							"dimension": check.dimension,
							"attempts":  count,
							"limit":     check.limit,
						}), "rate limit exceeded")
					}
					w.Header().Set("Retry-After", retryAfter(policy.Window))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "muitas tentativas, aguarde e tente novamente"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

const maxRateLimitedBody = 1 << 20

func emailFromBody(body []byte, field string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	var email string
	if err := json.Unmarshal(fields[field], &email); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email))
}

// hashEmail keeps raw addresses out of Redis keys and logs.
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}

func retryAfter(window time.Duration) string {
	seconds := int(window.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
