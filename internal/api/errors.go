package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/linecut/internal/types"
)

type errorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Unresolved []int  `json:"unresolved,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := types.ErrorKind(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	var inc *types.IncompleteSelectionError
	if errors.As(err, &inc) {
		body.Unresolved = inc.Unresolved
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg, Kind: types.KindValidation})
}
