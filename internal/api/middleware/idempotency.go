// idempotency.go — повтор успешных ответов по заголовку Idempotency-Key.
//
// Для POST-запросов с Idempotency-Key успешный (2xx) ответ сохраняется
// в LRU-кэше с TTL. Повторный запрос того же актора на тот же путь с тем же
// ключом получает сохранённый ответ без повторного выполнения операции.
// Ответы с ошибкой не сохраняются: клиент может повторить запрос.
package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/collectible-registry/internal/api/errors"
)

// Заголовки идемпотентности.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// maxIdempotencyKeyLen — ограничение длины ключа.
const maxIdempotencyKeyLen = 255

var idempotencyReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cr_idempotency_replays_total",
	Help: "Количество ответов, повторённых по Idempotency-Key",
})

// cachedResponse — сохранённый успешный ответ.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// Idempotency — кэш ответов по Idempotency-Key.
type Idempotency struct {
	cache *expirable.LRU[string, *cachedResponse]

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewIdempotency создаёт кэш на size ответов с временем жизни ttl.
func NewIdempotency(size int, ttl time.Duration) *Idempotency {
	return &Idempotency{
		cache:    expirable.NewLRU[string, *cachedResponse](size, nil, ttl),
		inFlight: make(map[string]struct{}),
	}
}

// Middleware возвращает HTTP middleware. Должен стоять после JWTAuth.Middleware():
// ключ кэша включает актора.
func (i *Idempotency) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				apierrors.ValidationError(w, "Idempotency-Key длиннее 255 символов")
				return
			}

			cacheKey := ActorFromContext(r.Context()) + "\x00" + r.Method + "\x00" + r.URL.Path + "\x00" + key

			cached, acquired := i.claim(cacheKey)
			if cached != nil {
				idempotencyReplaysTotal.Inc()
				if cached.contentType != "" {
					w.Header().Set("Content-Type", cached.contentType)
				}
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(cached.status)
				_, _ = w.Write(cached.body)
				return
			}
			if !acquired {
				apierrors.Conflict(w, "Запрос с этим Idempotency-Key ещё выполняется")
				return
			}
			defer i.release(cacheKey)

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				i.cache.Add(cacheKey, &cachedResponse{
					status:      rec.status,
					contentType: w.Header().Get("Content-Type"),
					body:        rec.body.Bytes(),
				})
			}
		})
	}
}

// claim под одним мьютексом ищет сохранённый ответ и занимает ключ.
// Ответ попадает в кэш до освобождения ключа, поэтому запрос, занявший
// ключ, не может разминуться с уже сохранённым ответом.
func (i *Idempotency) claim(key string) (*cachedResponse, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cached, ok := i.cache.Get(key); ok {
		return cached, false
	}
	if _, busy := i.inFlight[key]; busy {
		return nil, false
	}
	i.inFlight[key] = struct{}{}
	return nil, true
}

func (i *Idempotency) release(key string) {
	i.mu.Lock()
	delete(i.inFlight, key)
	i.mu.Unlock()
}

// recordingWriter пишет ответ клиенту и копирует тело для кэша.
type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *recordingWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
