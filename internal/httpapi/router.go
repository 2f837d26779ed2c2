package httpapi

import "net/http"

// NewMux wires every API route. main attaches /shutdown itself since it owns
// the token and the stop func.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{
		Emails:         d.Emails,
		Hub:            d.Hub,
		Processed:      d.Processed,
		Bridge:         d.Bridge,
		InboxName:      d.InboxName,
		ClassifierName: d.ClassifierName,
	}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	eh := EmailsHandler{Emails: d.Emails, Hub: d.Hub}
	mux.HandleFunc("GET /emails", eh.List)
	mux.HandleFunc("DELETE /emails", eh.Clear)
	mux.HandleFunc("GET /emails/export", eh.Export)
	mux.HandleFunc("GET /emails/{id}", eh.Get)
	mux.HandleFunc("POST /emails/{id}/read", eh.MarkRead)
	mux.HandleFunc("DELETE /emails/{id}", eh.Delete)

	sch := ScanHandler{Scanner: d.Scanner, Hub: d.Hub, Ctx: d.ScanCtx, WG: d.ScanWG}
	mux.HandleFunc("/scan", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	}))
	mux.HandleFunc("/scan/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))

	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// reads the live config so a saved username applies immediately
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/imap", localOnly(methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    sh.IMAPStatus,
		http.MethodPost:   sh.SetIMAPPassword,
		http.MethodDelete: sh.DeleteIMAPPassword,
	})))

	evh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: evh.ServeSSE,
	}))

	dh := DBHandler{DB: d.DB}
	mux.HandleFunc("/db/checkpoint", localOnly(methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Checkpoint,
	})))

	return mux
}
