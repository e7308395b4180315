package rest

import (
	"net/http"

	"github.com/beldeveloper/deploy-lego/controller"
	"github.com/julienschmidt/httprouter"
)

// CreateRouter creates and configures a new instance of the router.
func CreateRouter(c controller.Service) *httprouter.Router {
	h := NewHandler(c)
	r := httprouter.New()

	r.POST("/deployments", h.Deploy)
	r.GET("/deployments", h.Deployments)
	r.POST("/deployments/:id/resume", h.Resume)
	r.DELETE("/deployments/:id", h.Teardown)
	r.GET("/deployments/:id/status", h.Status)
	r.GET("/kinds", h.Kinds)

	r.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetDefaultHeaders(w)
		h := w.Header()
		h.Set("Access-Control-Allow-Methods", h.Get("Allow"))
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
