package pricing

import (
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/storefront/internal/domain/catalog"
)

// Method identifies a configured shipping method.
type Method string

const (
	MethodStandard      Method = "standard"
	MethodExpedited     Method = "expedited"
	MethodOvernight     Method = "overnight"
	MethodInternational Method = "international"
)

// ParseMethod converts a wire string to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodStandard, MethodExpedited, MethodOvernight, MethodInternational:
		return Method(s), nil
	}
	return "", errors.Errorf("unknown shipping method: %q", s)
}

// Option describes one configured shipping method.
type Option struct {
	Method        Method
	Name          string
	Description   string
	BaseCost      decimal.Decimal
	DeliveryDays  string
	International bool
}

// options is the ordered shipping method table. Order matters for display.
var options = []Option{
	{MethodStandard, "Standard Shipping", "3-5 business days", decimal.RequireFromString("4.99"), "3-5 business days", false},
	{MethodExpedited, "Expedited Shipping", "1-2 business days", decimal.RequireFromString("9.99"), "1-2 business days", false},
	{MethodOvernight, "Overnight Shipping", "Next business day", decimal.RequireFromString("19.99"), "Next business day", false},
	{MethodInternational, "International Shipping", "7-14 business days", decimal.RequireFromString("24.99"), "7-14 business days", true},
}

// OptionFor returns the configured option for the given method.
func OptionFor(m Method) (Option, bool) {
	for _, o := range options {
		if o.Method == m {
			return o, true
		}
	}
	return Option{}, false
}

// MethodUnavailableError indicates the chosen method cannot serve the
// destination. Available lists the methods that can.
type MethodUnavailableError struct {
	Method    Method
	Available []Method
}

func (e *MethodUnavailableError) Error() string {
	return "international shipping required for this destination"
}

// Line pairs a catalog book with a purchase quantity for pricing.
type Line struct {
	Book     catalog.Book
	Quantity int
}

// Quote is the result of a shipping cost calculation. It carries everything
// the order pipeline and display logic need downstream.
type Quote struct {
	Cost                 decimal.Decimal
	Method               string
	Description          string
	DeliveryEstimate     string
	WeightOz             float64
	FreeShippingEligible bool
}

// Weight and surcharge rule constants.
const (
	weightThresholdOz = 32.0
	surchargeStepOz   = 16.0
)

var (
	stepSurcharge          = decimal.RequireFromString("2.99")
	internationalSurcharge = decimal.RequireFromString("15.00")
)

// Config controls the tunable pricing knobs.
type Config struct {
	TaxRate         decimal.Decimal
	FreeShippingMin decimal.Decimal
	HomeCountry     string
}

// Engine computes shipping costs, tax, and delivery estimates. All methods
// are pure except for the injected clock.
type Engine struct {
	taxRate         decimal.Decimal
	freeShippingMin decimal.Decimal
	homeCountry     string
	now             func() time.Time
}

// NewEngine creates an Engine, filling zero config fields with defaults
// (8% tax, $35 free shipping threshold, United States home country).
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		taxRate:         cfg.TaxRate,
		freeShippingMin: cfg.FreeShippingMin,
		homeCountry:     cfg.HomeCountry,
		now:             time.Now,
	}
	if e.taxRate.IsZero() {
		e.taxRate = decimal.RequireFromString("0.08")
	}
	if e.freeShippingMin.IsZero() {
		e.freeShippingMin = decimal.NewFromInt(35)
	}
	if e.homeCountry == "" {
		e.homeCountry = "United States"
	}
	return e
}

// ShippingQuote computes the shipping cost for the given lines, method, and
// destination country. Only physical-relevant lines contribute weight and
// count toward the free shipping threshold.
func (e *Engine) ShippingQuote(lines []Line, method Method, destCountry string) (*Quote, error) {
	physical := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Book.Kind.Physical() {
			physical = append(physical, l)
		}
	}

	if len(physical) == 0 {
		return &Quote{
			Cost:             decimal.Zero,
			Method:           "digital_delivery",
			Description:      "Digital delivery - no shipping required",
			DeliveryEstimate: "Immediate",
		}, nil
	}

	foreign := e.foreign(destCountry)
	if foreign && method != MethodInternational {
		return nil, &MethodUnavailableError{
			Method:    method,
			Available: []Method{MethodInternational},
		}
	}

	opt, ok := OptionFor(method)
	if !ok {
		return nil, errors.Errorf("unknown shipping method: %q", method)
	}
	cost := opt.BaseCost

	var weight float64
	subtotal := decimal.Zero
	for _, l := range physical {
		weight += l.Book.WeightOz * float64(l.Quantity)
		subtotal = subtotal.Add(l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	if weight > weightThresholdOz {
		steps := int64(math.Ceil((weight - weightThresholdOz) / surchargeStepOz))
		cost = cost.Add(stepSurcharge.Mul(decimal.NewFromInt(steps)))
	}

	if foreign {
		cost = cost.Add(internationalSurcharge)
	}

	eligible := subtotal.GreaterThanOrEqual(e.freeShippingMin) && !foreign
	if eligible && method == MethodStandard {
		cost = decimal.Zero
	}

	return &Quote{
		Cost:                 cost.Round(2),
		Method:               opt.Name,
		Description:          opt.Description,
		DeliveryEstimate:     opt.DeliveryDays,
		WeightOz:             weight,
		FreeShippingEligible: eligible,
	}, nil
}

// AvailableMethods returns the shipping methods that can serve the given
// destination, in configuration order.
func (e *Engine) AvailableMethods(destCountry string) []Option {
	foreign := e.foreign(destCountry)
	out := make([]Option, 0, len(options))
	for _, o := range options {
		if foreign && !o.International {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Tax computes the sales tax on the given taxable amount, unrounded.
// Rounding happens once at final total assembly.
func (e *Engine) Tax(taxable decimal.Decimal) decimal.Decimal {
	return taxable.Mul(e.taxRate)
}

// DeliveryEstimate returns a human-readable delivery date for the method,
// or the digital placeholder when no method was chosen.
func (e *Engine) DeliveryEstimate(method *Method) string {
	if method == nil {
		return "Immediate (Digital)"
	}
	if _, ok := OptionFor(*method); !ok {
		return "Unknown"
	}
	// Three days processing before the carrier window starts.
	return e.now().AddDate(0, 0, 3).Format("January 2, 2006")
}

// HomeCountry returns the configured domestic country.
func (e *Engine) HomeCountry() string {
	return e.homeCountry
}

func (e *Engine) foreign(country string) bool {
	return !strings.EqualFold(country, e.homeCountry)
}
