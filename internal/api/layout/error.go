package layout

import (
	"LayoutGolang/pkg/response"
	"net/http"
)

var (
	ErrRunNotFound       = response.NewError(http.StatusNotFound, "run not found")
	ErrRunStatusNotFound = response.NewError(http.StatusNotFound, "run status not found")
	ErrMissingImage      = response.NewError(http.StatusBadRequest, "layout image is required")
	ErrInvalidFileType   = response.NewError(http.StatusBadRequest, "invalid file type")
	ErrFileTooLarge      = response.NewError(http.StatusBadRequest, "file too large")
	ErrTooManyCandidates = response.NewError(http.StatusBadRequest, "too many candidates requested")
)
