package testtool

import (
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"direct_message_service/pkg/config"
	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof serve /debug/pprof on addr outside production
//
//	go tool pprof http://localhost:6060/debug/pprof/goroutine
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Errorf("pprof server failed:", err)
		}
	}()
}
