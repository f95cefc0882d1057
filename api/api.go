package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg"
)

// EchoRouter is the subset of echo.Echo the handlers are registered on.
type EchoRouter interface {
	Add(method string, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Wrapper exposes the platform operations over HTTP.
type Wrapper struct {
	Cl *pkg.Platform
}

// RegisterHandlers mounts all platform routes on the router.
func RegisterHandlers(router EchoRouter, wrapper *Wrapper) {
	router.Add(http.MethodPost, "/api/v1/offer", wrapper.CreateOffer)
	router.Add(http.MethodGet, "/api/v1/offer", wrapper.ListOffers)
	router.Add(http.MethodPost, "/api/v1/offer/:id/accept", wrapper.AcceptOffer)
	router.Add(http.MethodGet, "/api/v1/transaction/:id", wrapper.TransactionStatus)
	router.Add(http.MethodPost, "/api/v1/transaction/:id/confirm", wrapper.ConfirmDelivery)
	router.Add(http.MethodGet, "/api/v1/transaction/:id/bundle", wrapper.Bundle)
	router.Add(http.MethodPost, "/api/v1/consent/:id/withdraw", wrapper.WithdrawConsent)
	router.Add(http.MethodGet, "/api/v1/dashboard", wrapper.Dashboard)
	router.Add(http.MethodGet, "/api/v1/audit/export", wrapper.ExportAudit)
	router.Add(http.MethodGet, "/api/v1/audit/integrity/:resourceId", wrapper.VerifyIntegrity)
}

// CreateOffer publishes a new data offer.
func (wrapper Wrapper) CreateOffer(ctx echo.Context) error {
	request := &CreateOfferRequest{}
	if err := ctx.Bind(request); err != nil {
		ctx.Logger().Error("Could not unmarshal json body:", err)
		return err
	}

	if request.RequesterDid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "an offer requires a requesterDid")
	}
	if request.RequesterAddress == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "an offer requires a requesterAddress")
	}
	if len(request.DataTypes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "an offer requires at least one data type")
	}
	if request.Compensation <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "an offer requires a positive compensation")
	}

	offer := pkg.DataOffer{
		Requester:         pkg.DID(request.RequesterDid),
		RequesterName:     request.RequesterName,
		RequesterAddress:  pkg.Address(request.RequesterAddress),
		DataTypes:         request.DataTypes,
		Purpose:           request.Purpose,
		Compensation:      request.Compensation,
		CollectionPeriod:  request.CollectionPeriod,
		RetentionPeriod:   request.RetentionPeriod,
		ThirdPartySharing: request.ThirdPartySharing,
		TargetCriteria:    request.TargetCriteria,
	}
	if request.ValidUntil != nil {
		offer.ValidUntil = *request.ValidUntil
	}

	created, err := wrapper.Cl.CreateDataOffer(offer)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return ctx.JSON(http.StatusCreated, offer2Response(created))
}

// ListOffers lists offers available to the profiled subject.
func (wrapper Wrapper) ListOffers(ctx echo.Context) error {
	profile := pkg.SubjectProfile{
		DID:     pkg.DID(ctx.QueryParam("subjectDid")),
		Address: pkg.Address(ctx.QueryParam("subjectAddress")),
	}
	if age := ctx.QueryParam("age"); age != "" {
		parsed, err := strconv.Atoi(age)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "age must be a number")
		}
		profile.Age = parsed
	}
	if conditions := ctx.QueryParams()["condition"]; len(conditions) > 0 {
		profile.Conditions = conditions
	}

	offers := wrapper.Cl.AvailableOffers(profile)
	response := make([]OfferResponse, 0, len(offers))
	for _, offer := range offers {
		response = append(response, offer2Response(offer))
	}
	return ctx.JSON(http.StatusOK, response)
}

// AcceptOffer runs the acceptance saga for the subject.
func (wrapper Wrapper) AcceptOffer(ctx echo.Context) error {
	request := &AcceptOfferRequest{}
	if err := ctx.Bind(request); err != nil {
		ctx.Logger().Error("Could not unmarshal json body:", err)
		return err
	}
	if request.SubjectDid == "" || request.SubjectAddress == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "acceptance requires subjectDid and subjectAddress")
	}

	transaction, err := wrapper.Cl.AcceptOffer(ctx.Request().Context(), ctx.Param("id"), pkg.SubjectProfile{
		DID:        pkg.DID(request.SubjectDid),
		Address:    pkg.Address(request.SubjectAddress),
		Age:        request.Age,
		Conditions: request.Conditions,
	})
	if err != nil {
		return reasonedHTTPError(err)
	}
	return ctx.JSON(http.StatusCreated, transaction2Response(transaction))
}

// TransactionStatus resolves the joined status view.
func (wrapper Wrapper) TransactionStatus(ctx echo.Context) error {
	view, err := wrapper.Cl.TransactionStatus(ctx.Param("id"))
	if err != nil {
		return reasonedHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, view)
}

// ConfirmDelivery settles the transaction.
func (wrapper Wrapper) ConfirmDelivery(ctx echo.Context) error {
	transaction, err := wrapper.Cl.ConfirmDelivery(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return reasonedHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, transaction2Response(transaction))
}

// Bundle hands the settled content to the consented recipient.
func (wrapper Wrapper) Bundle(ctx echo.Context) error {
	accessor := ctx.QueryParam("accessor")
	if accessor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bundle access requires the accessor did")
	}
	payload, err := wrapper.Cl.Bundle(ctx.Param("id"), pkg.DID(accessor))
	if err != nil {
		return reasonedHTTPError(err)
	}
	return ctx.JSONBlob(http.StatusOK, payload)
}

// WithdrawConsent revokes the consent and closes what it can.
func (wrapper Wrapper) WithdrawConsent(ctx echo.Context) error {
	request := &WithdrawConsentRequest{}
	if err := ctx.Bind(request); err != nil {
		ctx.Logger().Error("Could not unmarshal json body:", err)
		return err
	}
	if request.SubjectDid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "withdrawal requires the subjectDid")
	}

	if err := wrapper.Cl.WithdrawConsent(ctx.Request().Context(), pkg.DID(request.SubjectDid), ctx.Param("id")); err != nil {
		return reasonedHTTPError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Dashboard returns the aggregated platform counters.
func (wrapper Wrapper) Dashboard(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, wrapper.Cl.Dashboard())
}

// ExportAudit streams the audit chain as a single document.
func (wrapper Wrapper) ExportAudit(ctx echo.Context) error {
	includeLedgerTxs := ctx.QueryParam("includeLedgerTxs") == "true"
	document, err := wrapper.Cl.Audit.Export(includeLedgerTxs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ctx.JSONBlob(http.StatusOK, document)
}

// VerifyIntegrity recomputes the audit integrity of a resource.
func (wrapper Wrapper) VerifyIntegrity(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, wrapper.Cl.Audit.VerifyIntegrity(ctx.Param("resourceId")))
}

func offer2Response(offer *pkg.DataOffer) OfferResponse {
	return OfferResponse{
		OfferId:          offer.ID,
		RequesterDid:     string(offer.Requester),
		RequesterName:    offer.RequesterName,
		DataTypes:        offer.DataTypes,
		Purpose:          offer.Purpose,
		Compensation:     offer.Compensation,
		CollectionPeriod: offer.CollectionPeriod,
		RetentionPeriod:  offer.RetentionPeriod,
		Status:           string(offer.Status),
		ValidUntil:       offer.ValidUntil,
		CreatedAt:        offer.CreatedAt,
	}
}

func transaction2Response(transaction *pkg.DataTransaction) TransactionResponse {
	return TransactionResponse{
		TransactionId: transaction.ID,
		OfferId:       transaction.OfferID,
		SubjectDid:    string(transaction.SubjectID),
		ConsentId:     transaction.ConsentID,
		EscrowId:      transaction.EscrowID,
		ContentDigest: transaction.ContentDigest,
		Status:        string(transaction.Status),
		CreatedAt:     transaction.CreatedAt,
		CompletedAt:   transaction.CompletedAt,
	}
}

// reasonedHTTPError maps the platform's reason codes onto HTTP statuses.
func reasonedHTTPError(err error) error {
	platformErr, ok := err.(*pkg.Error)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch platformErr.Code {
	case pkg.ReasonNotFound:
		return echo.NewHTTPError(http.StatusNotFound, platformErr.Error())
	case pkg.ReasonConsentInvalid:
		return echo.NewHTTPError(http.StatusForbidden, platformErr.Error())
	case pkg.ReasonOfferUnavailable, pkg.ReasonExpired, pkg.ReasonEscrowState, pkg.ReasonConditionMismatch:
		return echo.NewHTTPError(http.StatusConflict, platformErr.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, platformErr.Error())
}
