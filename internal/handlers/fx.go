package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"finance-tracker/internal/fx"
	"finance-tracker/internal/logging"
)

type ExchangeRateInput struct {
	From string `query:"from" default:"USD" doc:"Base currency (ISO 4217)"`
	To   string `query:"to" default:"INR" doc:"Quote currency (ISO 4217)"`
}

type ExchangeRate struct {
	Base  string `json:"base" doc:"Base currency"`
	Quote string `json:"quote" doc:"Quote currency"`
	Rate  string `json:"rate" doc:"Units of quote per unit of base, as a decimal string"`
	Date  string `json:"date" doc:"Day the rate was published"`
}

type ExchangeRateOutput struct {
	Body ExchangeRate
}

type rateSource interface {
	Latest(ctx context.Context, base, quote string) (*fx.Rate, error)
}

// ExchangeRateHandler serves display-only exchange rates.
type ExchangeRateHandler struct {
	Rates rateSource
}

func NewExchangeRateHandler(rates rateSource) *ExchangeRateHandler {
	return &ExchangeRateHandler{Rates: rates}
}

// Register registers the exchange rate endpoint with the Huma API.
func (h *ExchangeRateHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-exchange-rate",
		Method:      http.MethodGet,
		Path:        "/api/fx",
		Summary:     "Get exchange rate",
		Description: "Returns the latest published exchange rate. For display only.",
		Tags:        []string{"Exchange rates"},
	}, h.handle)
}

func (h *ExchangeRateHandler) handle(ctx context.Context, input *ExchangeRateInput) (*ExchangeRateOutput, error) {
	stopTimer := logging.Time(ctx, "fxMs")
	rate, err := h.Rates.Latest(ctx, input.From, input.To)
	stopTimer()

	switch {
	case errors.Is(err, fx.ErrInvalidCurrency):
		return nil, huma.Error400BadRequest("invalid currency", err)
	case errors.Is(err, fx.ErrUnavailable):
		return nil, huma.Error502BadGateway("exchange rate unavailable", err)
	case err != nil:
		return nil, huma.NewError(http.StatusInternalServerError, "failed to get exchange rate", err)
	}

	return &ExchangeRateOutput{Body: ExchangeRate{
		Base:  rate.Base,
		Quote: rate.Quote,
		Rate:  rate.Rate.String(),
		Date:  rate.Date,
	}}, nil
}
