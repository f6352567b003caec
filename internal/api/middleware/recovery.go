package middleware

import (
	"net/http"
	"runtime/debug"

	"mt5bridge/pkg/utils"
)

// Recovery перехватывает panic в handlers, логирует stack trace
// и возвращает клиенту 500 вместо падения всего сервера
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.L().Error("Паника в HTTP handler",
					utils.Any("panic", err),
					utils.String("path", r.URL.Path),
					utils.String("stack", string(debug.Stack())),
				)

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
