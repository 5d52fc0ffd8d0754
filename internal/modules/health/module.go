package health

import (
	"net/http"
	"signal_bot/internal/modules/health/service"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"go.uber.org/fx"
)

// Routes вешает пробы на общий роутер.
func Routes(r *mux.Router, state *service.State) {
	r.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: монитор запущен
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"ready":        state.Ready(),
			"wsConnected":  state.WSConnected(),
			"uptimeSec":    int64(state.Uptime().Seconds()),
			"ticks":        state.Ticks(),
			"lastTickUnix": lastTickUnix(state),
		}
		b, _ := sonic.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}).Methods(http.MethodGet)
}

func lastTickUnix(state *service.State) int64 {
	t := state.LastTick()
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(service.NewState),
	)
}
