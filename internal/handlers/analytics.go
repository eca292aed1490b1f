package handlers

import "primedetail.kg/detail-web/internal/config"

// Analytics holds client instrumentation configuration surfaced to templates.
type Analytics struct {
	GA4MeasurementID string // e.g. G-XXXXXXXXXX
	GTMContainerID   string // e.g. GTM-XXXXXXX
	Debug            bool
}

// Enabled reports whether any tag should be emitted.
func (a Analytics) Enabled() bool {
	return a.GA4MeasurementID != "" || a.GTMContainerID != ""
}

// AnalyticsFrom copies the analytics section of the config.
func AnalyticsFrom(cfg config.AnalyticsConfig) Analytics {
	return Analytics{
		GA4MeasurementID: cfg.GA4MeasurementID,
		GTMContainerID:   cfg.GTMContainerID,
		Debug:            cfg.Debug,
	}
}

// Events tracked by the client script, named in data-track attributes.
const (
	EventCTAClick      = "cta_click"
	EventSubmitBooking = "submit_booking"
	EventOpenPricing   = "open_pricing"
	EventSwitchLang    = "switch_lang"
	EventViewService   = "view_service"
	EventSelectPackage = "select_package"
	EventOpenPortfolio = "open_portfolio_item"
)
