package controllers

import (
	"net/http"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	"github.com/angelmondragon/gamestore-backend/api/validators"
	"github.com/angelmondragon/gamestore-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

// AdminLogin exchanges operator credentials for a bearer token.
func AdminLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "admin login unavailable"))
			return
		}

		var payload auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
