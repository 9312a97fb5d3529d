package admin

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/middleware"
	"github.com/angelmondragon/enxoval-backend/api/responses"
	adminsvc "github.com/angelmondragon/enxoval-backend/internal/admin"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const maxActionBody = 1 << 20

type dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, actor adminsvc.Actor, body []byte) (any, error)
}

func actorFromRequest(r *http.Request) (adminsvc.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return adminsvc.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sessão inválida")
	}
	return adminsvc.Actor{UserID: userID, Email: middleware.EmailFromContext(r.Context())}, nil
}

// Resource serves POST /api/admin/v1/{resource}: the body's action selects
// the typed request and the service call.
func Resource(res dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		ctx = logg.WithField(ctx, "resource", res.Name())
		result, err := res.Dispatch(ctx, actor, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
