package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	huma "github.com/danielgtaylor/huma/v2"
)

// multipartMemory is how much of a form is held in memory before file
// parts spill to disk.
const multipartMemory = 1 << 20

// formContext serves a multipart form that was read under a size limit.
type formContext struct {
	humaContext
	form *multipart.Form
}

// humaContext names the embedded field so it does not clash with the
// Context method of huma.Context.
type humaContext = huma.Context

func (c *formContext) GetMultipartForm() (*multipart.Form, error) {
	return c.form, nil
}

func (c *formContext) Unwrap() huma.Context {
	return c.humaContext
}

// limitUpload reads multipart bodies through http.MaxBytesReader so that no
// more than limit bytes reach memory or disk. Larger bodies get a 413
// before the operation runs. Other content types are left to the operation.
func limitUpload(api huma.API, limit int64, readTimeout time.Duration, log *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if cl := ctx.Header("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > limit {
				_ = huma.WriteErr(api, ctx, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body is larger than %d bytes", limit))
				return
			}
		}

		mediaType, params, err := mime.ParseMediaType(ctx.Header("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
			next(ctx)
			return
		}

		// not every adapter supports deadlines
		_ = ctx.SetReadDeadline(time.Now().Add(readTimeout))

		body := http.MaxBytesReader(nil, io.NopCloser(ctx.BodyReader()), limit)
		form, err := multipart.NewReader(body, params["boundary"]).ReadForm(multipartMemory)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.WarnContext(ctx.Context(), "Upload rejected", slog.Int64("limit", limit))
				_ = huma.WriteErr(api, ctx, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body is larger than %d bytes", limit))
				return
			}
			_ = huma.WriteErr(api, ctx, http.StatusBadRequest, "cannot read multipart form", err)
			return
		}
		defer func() {
			if err := form.RemoveAll(); err != nil {
				log.WarnContext(ctx.Context(), "Unable to remove form files", slog.Any("err", err))
			}
		}()

		next(&formContext{humaContext: ctx, form: form})
	}
}
