package admin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const defaultMaxUploadMB = 5

var allowedUploadKinds = map[string]bool{"product": true, "couple": true}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type objectUploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

// Upload accepts a multipart image (field "file", kind product|couple),
// sniffs its content type, stores it and returns the public URL.
func Upload(store objectUploader, recorder audit.Recorder, maxMB int, logg *logger.Logger) http.HandlerFunc {
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	maxBytes := int64(maxMB) << 20
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMissingConfig, "armazenamento não configurado"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "formulário inválido"))
			return
		}
		kind := strings.ToLower(strings.TrimSpace(r.FormValue("kind")))
		if !allowedUploadKinds[kind] {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tipo de upload inválido").WithDetails(map[string]any{"kind": kind}))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "arquivo obrigatório"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "falha ao ler arquivo"))
			return
		}
		if int64(len(data)) > maxBytes {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("arquivo maior que %d MB", maxMB)))
			return
		}
		if len(data) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "arquivo vazio"))
			return
		}

		detected := mimetype.Detect(data)
		contentType := strings.SplitN(detected.String(), ";", 2)[0]
		ext, ok := allowedImageTypes[contentType]
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "formato não suportado, envie JPEG, PNG ou WebP").WithDetails(map[string]any{"content_type": contentType}))
			return
		}

		object := fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), ext)
		url, err := store.Upload(ctx, object, contentType, bytes.NewReader(data))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image"))
			return
		}

		if recorder != nil {
			recorder.Record(ctx, audit.Entry{
				UserID: actor.UserID,
				Action: "upload_image",
				Entity: kind,
				Meta:   map[string]any{"object": object, "content_type": contentType, "bytes": len(data)},
			})
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"url": url})
	}
}
