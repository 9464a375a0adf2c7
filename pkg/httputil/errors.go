package httputil

import (
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
)

// WriteDomainError maps a service-layer error to its HTTP response.
//
// Quota errors map to 429 so clients can back off and retry after freeing
// capacity; everything else follows authz.HTTPStatus. Unknown errors become
// a generic 500 without leaking the underlying message.
func WriteDomainError(w http.ResponseWriter, err error) {
	if orgs.IsQuotaExceeded(err) {
		WriteTooManyRequests(w, err.Error())
		return
	}

	status := authz.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		WriteErrorMessage(w, status, "internal server error")
		return
	}
	WriteErrorMessage(w, status, err.Error())
}
