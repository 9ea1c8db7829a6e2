// server.go — интерфейс обработчиков API и их регистрация в chi.
// Параметры пути и query разбираются через oapi-codegen runtime
// по стилям, описанным в openapi.yaml.
package openapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface — обработчики всех операций API.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/openapi.json)
	GetOpenAPIDocument(w http.ResponseWriter, r *http.Request)

	// (GET /api/v1/records)
	ListRecords(w http.ResponseWriter, r *http.Request, params ListRecordsParams)
	// (POST /api/v1/records)
	RegisterRecord(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/records/{id})
	GetRecord(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/v1/records/{id})
	UpdateRecord(w http.ResponseWriter, r *http.Request, id int64)
	// (DELETE /api/v1/records/{id})
	UnregisterRecord(w http.ResponseWriter, r *http.Request, id int64)
	// (POST /api/v1/records/{id}/owner)
	TransferOwnership(w http.ResponseWriter, r *http.Request, id int64)

	// (GET /api/v1/records/{id}/access)
	CheckAccess(w http.ResponseWriter, r *http.Request, id int64, params CheckAccessParams)
	// (GET /api/v1/records/{id}/permissions)
	ListPermissions(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/v1/records/{id}/permissions/{participant})
	SetPermission(w http.ResponseWriter, r *http.Request, id int64, participant string)
	// (GET /api/v1/records/{id}/viewers)
	ListViewers(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/v1/records/{id}/viewers/{observer})
	GrantViewer(w http.ResponseWriter, r *http.Request, id int64, observer string)
	// (DELETE /api/v1/records/{id}/viewers/{observer})
	RevokeViewer(w http.ResponseWriter, r *http.Request, id int64, observer string)

	// (GET /api/v1/records/{id}/attestation)
	GetAttestation(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/v1/records/{id}/attestation)
	Attest(w http.ResponseWriter, r *http.Request, id int64)
	// (POST /api/v1/records/{id}/attestation/verify)
	VerifyAttestation(w http.ResponseWriter, r *http.Request, id int64)

	// (GET /api/v1/records/{id}/transfers)
	ListTransfers(w http.ResponseWriter, r *http.Request, id int64)
	// (POST /api/v1/records/{id}/transfers)
	ScheduleTransfer(w http.ResponseWriter, r *http.Request, id int64)
	// (GET /api/v1/records/{id}/transfers/{seq})
	GetTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64)
	// (POST /api/v1/records/{id}/transfers/{seq}/execute)
	ExecuteTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64)
	// (POST /api/v1/records/{id}/transfers/{seq}/cancel)
	CancelTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64)

	// (GET /api/v1/protocol)
	GetProtocolState(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/protocol/pause)
	PauseProtocol(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/protocol/resume)
	ResumeProtocol(w http.ResponseWriter, r *http.Request)
	// (PUT /api/v1/protocol/rate-limit)
	SetRateLimit(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/rate-limit/me)
	GetMyRateLimit(w http.ResponseWriter, r *http.Request)
}

// ParamError — ошибка разбора параметра запроса.
type ParamError struct {
	Name string
	Err  error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("некорректный параметр %q: %v", e.Name, e.Err)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper разбирает параметры и вызывает ServerInterface.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	var v int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &ParamError{Name: name, Err: err})
		return 0, false
	}
	return v, true
}

func (siw *ServerInterfaceWrapper) pathString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &ParamError{Name: name, Err: err})
		return "", false
	}
	return v, true
}

func (siw *ServerInterfaceWrapper) query(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &ParamError{Name: name, Err: err})
		return false
	}
	return true
}

// ListRecords разбирает фильтры и пагинацию.
func (siw *ServerInterfaceWrapper) ListRecords(w http.ResponseWriter, r *http.Request) {
	var params ListRecordsParams
	if !siw.query(w, r, "creator", false, &params.Creator) ||
		!siw.query(w, r, "category", false, &params.Category) ||
		!siw.query(w, r, "limit", false, &params.Limit) ||
		!siw.query(w, r, "offset", false, &params.Offset) {
		return
	}
	siw.Handler.ListRecords(w, r, params)
}

func (siw *ServerInterfaceWrapper) withID(fn func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.pathInt64(w, r, "id")
		if !ok {
			return
		}
		fn(w, r, id)
	}
}

func (siw *ServerInterfaceWrapper) withIDSeq(fn func(http.ResponseWriter, *http.Request, int64, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.pathInt64(w, r, "id")
		if !ok {
			return
		}
		seq, ok := siw.pathInt64(w, r, "seq")
		if !ok {
			return
		}
		fn(w, r, id, seq)
	}
}

func (siw *ServerInterfaceWrapper) withIDName(name string, fn func(http.ResponseWriter, *http.Request, int64, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.pathInt64(w, r, "id")
		if !ok {
			return
		}
		v, ok := siw.pathString(w, r, name)
		if !ok {
			return
		}
		fn(w, r, id, v)
	}
}

// CheckAccess разбирает уровень и проверяемого участника.
func (siw *ServerInterfaceWrapper) CheckAccess(w http.ResponseWriter, r *http.Request, id int64) {
	var params CheckAccessParams
	if !siw.query(w, r, "level", true, &params.Level) ||
		!siw.query(w, r, "participant", false, &params.Participant) {
		return
	}
	siw.Handler.CheckAccess(w, r, id, params)
}

// ChiServerOptions — параметры регистрации маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux регистрирует маршруты si в существующем роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты si с указанными опциями.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	siw := &ServerInterfaceWrapper{Handler: si, ErrorHandlerFunc: options.ErrorHandlerFunc}
	base := options.BaseURL

	r.Get(base+"/health/live", si.HealthLive)
	r.Get(base+"/health/ready", si.HealthReady)
	r.Get(base+"/metrics", si.GetMetrics)
	r.Get(base+"/api/v1/openapi.json", si.GetOpenAPIDocument)

	r.Route(base+"/api/v1/records", func(r chi.Router) {
		r.Get("/", siw.ListRecords)
		r.Post("/", si.RegisterRecord)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", siw.withID(si.GetRecord))
			r.Put("/", siw.withID(si.UpdateRecord))
			r.Delete("/", siw.withID(si.UnregisterRecord))
			r.Post("/owner", siw.withID(si.TransferOwnership))

			r.Get("/access", siw.withID(siw.CheckAccess))
			r.Get("/permissions", siw.withID(si.ListPermissions))
			r.Put("/permissions/{participant}", siw.withIDName("participant", si.SetPermission))
			r.Get("/viewers", siw.withID(si.ListViewers))
			r.Put("/viewers/{observer}", siw.withIDName("observer", si.GrantViewer))
			r.Delete("/viewers/{observer}", siw.withIDName("observer", si.RevokeViewer))

			r.Get("/attestation", siw.withID(si.GetAttestation))
			r.Put("/attestation", siw.withID(si.Attest))
			r.Post("/attestation/verify", siw.withID(si.VerifyAttestation))

			r.Get("/transfers", siw.withID(si.ListTransfers))
			r.Post("/transfers", siw.withID(si.ScheduleTransfer))
			r.Get("/transfers/{seq}", siw.withIDSeq(si.GetTransfer))
			r.Post("/transfers/{seq}/execute", siw.withIDSeq(si.ExecuteTransfer))
			r.Post("/transfers/{seq}/cancel", siw.withIDSeq(si.CancelTransfer))
		})
	})

	r.Get(base+"/api/v1/protocol", si.GetProtocolState)
	r.Post(base+"/api/v1/protocol/pause", si.PauseProtocol)
	r.Post(base+"/api/v1/protocol/resume", si.ResumeProtocol)
	r.Put(base+"/api/v1/protocol/rate-limit", si.SetRateLimit)
	r.Get(base+"/api/v1/rate-limit/me", si.GetMyRateLimit)

	return r
}
