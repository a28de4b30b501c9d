package middleware

import (
	"net/http"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// APIKeyHeader - заголовок с ключом доступа к API
const APIKeyHeader = "X-API-Key"

// APIKeyAuth - middleware проверки ключа доступа
//
// Назначение:
// Защищает управляющие endpoints (/api/v1) от неавторизованного доступа.
// Ключ передаётся в заголовке X-API-Key и сверяется с bcrypt хешем из конфигурации.
//
// Конфигурация:
// - API_KEY_HASH: bcrypt хеш ключа (генерируется командой `server hashkey`)
// - Пустой хеш отключает проверку (локальное развертывание)
//
// Безопасность:
// - bcrypt сравнение выполняется за постоянное время
// - В ответе не раскрывается, был ли ключ передан или неверен
//
// Использование:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(middleware.APIKeyAuth(cfg.Security.APIKeyHash, log))
func APIKeyAuth(hash string, log *utils.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	log = log.WithComponent("auth")

	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Preflight CORS запросы не несут ключ
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if err := crypto.VerifyAPIKey(key, hash); err != nil {
				log.Warn("unauthorized request",
					utils.String("path", r.URL.Path),
					utils.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","code":"UNAUTHORIZED"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
