package rest

import (
	"encoding/json"
	"net/http"

	"github.com/beldeveloper/deploy-lego/controller"
	"github.com/beldeveloper/deploy-lego/model"
	"github.com/julienschmidt/httprouter"
)

// NewHandler creates a new instance of the REST API handler.
func NewHandler(c controller.Service) Handler {
	return Handler{c: c}
}

// Handler handles the REST API requests.
type Handler struct {
	c controller.Service
}

// Deploy runs a new deployment.
func (h Handler) Deploy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var f model.FormDeploy
	err := json.NewDecoder(r.Body).Decode(&f)
	if err != nil {
		apiError(w, model.ErrBadInput)
		return
	}
	res, err := h.c.Deploy(r.Context(), f)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// Deployments returns the list of deployments.
func (h Handler) Deployments(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.c.Deployments(r.Context())
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// Resume continues the interrupted deployment.
func (h Handler) Resume(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.c.Resume(r.Context(), ps.ByName("id"))
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// Teardown releases the remote resources of the deployment.
func (h Handler) Teardown(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.c.Teardown(r.Context(), ps.ByName("id"))
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, map[string]string{"status": model.DeploymentStatusTornDown})
}

// Status reports the health of the deployment.
func (h Handler) Status(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.c.Status(r.Context(), ps.ByName("id"))
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, map[string]model.HealthState{"health": res})
}

// Kinds returns the list of the registered target kinds.
func (h Handler) Kinds(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	apiSuccess(w, h.c.Kinds())
}
