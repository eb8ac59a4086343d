package services

import (
	"fmt"
	"net/url"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
)

// FormVariant selects the field set collected alongside attribution values.
type FormVariant string

const (
	FormStandard FormVariant = "standard"
	FormBT       FormVariant = "bt"
)

// FormField maps an output name to the form element it is read from.
type FormField struct {
	Name      string `json:"name"`
	ElementID string `json:"id"`
	Phone     bool   `json:"phone,omitempty"`
}

var formFields = map[FormVariant][]FormField{
	FormStandard: {
		{Name: "Nombre", ElementID: "nombre"},
		{Name: "PrimerApellido", ElementID: "primerApellido"},
		{Name: "SegundoApellido", ElementID: "segundoApellido"},
		{Name: "Rut", ElementID: "inputRut"},
		{Name: "Pasaporte", ElementID: "inputPasaporte"},
		{Name: "telefono", ElementID: "telefono", Phone: true},
		{Name: "email", ElementID: "email"},
		{Name: "programa", ElementID: "programa"},
		{Name: "modalidadHorario", ElementID: "modalidadHorario"},
	},
	FormBT: {
		{Name: "Nombre", ElementID: "nombre"},
		{Name: "PrimerApellido", ElementID: "primerApellido"},
		{Name: "Rut", ElementID: "inputRut"},
		{Name: "Pasaporte", ElementID: "inputPasaporte"},
		{Name: "telefono", ElementID: "telefono", Phone: true},
		{Name: "email", ElementID: "email"},
		{Name: "codigo_region", ElementID: "regionBT"},
		{Name: "programa", ElementID: "programaBT"},
		{Name: "modalidadHorario", ElementID: "modalidadHorarioBT"},
		{Name: "FormatoPrueba", ElementID: "formatoBT"},
	},
}

// ParseFormVariant resolves a variant name.
func ParseFormVariant(name string) (FormVariant, bool) {
	v := FormVariant(name)
	_, ok := formFields[v]
	return v, ok
}

// FormFields returns the form-only fields of a variant.
func FormFields(v FormVariant) []FormField {
	return formFields[v]
}

// FormAccessor reads explicit form values by element id.
type FormAccessor interface {
	Available() bool
	Lookup(elementID string) (string, bool)
}

// PhoneFormatter normalizes a raw phone number.
type PhoneFormatter interface {
	Available() bool
	Format(raw string) (string, error)
}

// ValuesAccessor is a FormAccessor over submitted form values.
type ValuesAccessor url.Values

func (v ValuesAccessor) Available() bool { return v != nil }

func (v ValuesAccessor) Lookup(elementID string) (string, bool) {
	vals, ok := v[elementID]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// FormBridgeService merges explicit form values with the attribution snapshot.
type FormBridgeService struct {
	capture *CaptureService
	phone   PhoneFormatter
	logger  *logging.ChanneledLogger
}

// NewFormBridgeService creates the bridge. phone may be nil.
func NewFormBridgeService(capture *CaptureService, phone PhoneFormatter, logger *logging.ChanneledLogger) *FormBridgeService {
	return &FormBridgeService{capture: capture, phone: phone, logger: logger}
}

// Collect returns a flat mapping for variant. Attribution keys resolve as
// form field > snapshot > "", form-only fields as form field > "". When the
// accessor is nil, unavailable or fails, only attribution values are filled.
func (s *FormBridgeService) Collect(variant FormVariant, page attribution.Page, store attribution.Store, accessor FormAccessor) map[string]string {
	snap := s.capture.CaptureSnapshot(page, store)
	out := attributionOnly(variant, snap, page)

	if accessor == nil || !accessor.Available() {
		s.logger.Bridge().Warn("Form accessor not available, returning tracking parameters only", "variant", variant)
		return out
	}

	merged, err := s.mergeForm(variant, snap, accessor, out)
	if err != nil {
		s.logger.Bridge().Error("Form collection failed, returning tracking parameters only", "variant", variant, "error", err.Error())
		return attributionOnly(variant, snap, page)
	}
	return merged
}

func (s *FormBridgeService) mergeForm(variant FormVariant, snap attribution.Snapshot, accessor FormAccessor, out map[string]string) (merged map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("form accessor panic: %v", r)
		}
	}()

	for _, f := range formFields[variant] {
		raw, _ := accessor.Lookup(f.ElementID)
		if f.Phone && raw != "" {
			raw = s.formatPhone(raw)
		}
		out[f.Name] = raw
	}
	for _, k := range attribution.AllKeys() {
		if v, ok := accessor.Lookup(string(k)); ok && v != "" {
			out[string(k)] = v
		}
	}
	return out, nil
}

func (s *FormBridgeService) formatPhone(raw string) string {
	if s.phone == nil || !s.phone.Available() {
		return raw
	}
	formatted, err := s.phone.Format(raw)
	if err != nil {
		s.logger.Bridge().Debug("Phone number left unformatted", "error", err.Error())
		return raw
	}
	return formatted
}

func attributionOnly(variant FormVariant, snap attribution.Snapshot, page attribution.Page) map[string]string {
	out := make(map[string]string, len(formFields[variant])+len(attribution.AllKeys()))
	for _, f := range formFields[variant] {
		out[f.Name] = ""
	}
	for _, k := range attribution.AllKeys() {
		out[string(k)] = snap.Value(k)
	}
	if out[string(attribution.CurrentURL)] == "" {
		out[string(attribution.CurrentURL)] = page.URL
	}
	return out
}
