package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/gamestore-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	checkoutReplayTTL = 7 * 24 * time.Hour
	defaultReplayTTL  = 24 * time.Hour
)

// replayRule selects the POST endpoints whose responses are cached per Idempotency-Key.
type replayRule struct {
	path   string
	prefix bool
	ttl    time.Duration
}

// Matched against the request path: middleware mounted with Use on a sub-router runs
// before chi has resolved the final route pattern.
var replayRules = []replayRule{
	{path: "/api/v1/orders", ttl: checkoutReplayTTL},
	{path: "/api/v1/payments/intents", ttl: defaultReplayTTL},
	{path: "/api/admin/v1/", prefix: true, ttl: defaultReplayTTL},
}

func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	path = strings.TrimSuffix(path, "/")
	for _, rule := range replayRules {
		if rule.prefix && strings.HasPrefix(path, rule.path) {
			return rule.ttl, true
		}
		if !rule.prefix && path == rule.path {
			return rule.ttl, true
		}
	}
	return 0, false
}

type replayRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// Idempotency replays the first response for a repeated Idempotency-Key. The header
// is optional; requests without it run normally. Reusing a key with another body
// is a conflict, and 5xx answers are never stored so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			ttl, cached := replayTTL(r.Method, r.URL.Path)
			if store == nil || clientKey == "" || !cached {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := digest(body)
			actor, _ := ActorFromContext(ctx)
			key := store.IdempotencyKey(actor.Subject()+"|"+r.Method+"|"+r.URL.Path, clientKey)

			raw, err := store.Get(ctx, key)
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key"))
				return
			case raw != "":
				var stored replayRecord
				if err := json.Unmarshal([]byte(raw), &stored); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if stored.BodyHash != bodyHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with a different request body"))
					return
				}
				replay(w, stored)
				return
			}

			capture := &bodyRecorder{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			record, err := json.Marshal(replayRecord{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.buf.Bytes()),
				BodyHash:    bodyHash,
			})
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "encode idempotency record", err)
				}
				return
			}
			if _, err := store.SetNX(ctx, key, string(record), ttl); err != nil && logg != nil {
				logg.Error(ctx, "store idempotency record", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, rec replayRecord) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	if body, err := base64.StdEncoding.DecodeString(rec.Body); err == nil {
		_, _ = w.Write(body)
	}
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// bodyRecorder tees the response so it can be stored after the handler returns.
type bodyRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (b *bodyRecorder) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
	b.ResponseWriter.WriteHeader(code)
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.buf.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bodyRecorder) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
