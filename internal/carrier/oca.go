package carrier

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/retry"
)

const (
	DefaultOCAURL = "https://webservice.oca.com.ar/epak_tracking/Oep_TrackEPak.asmx"
	ocaNamespace  = "http://www.oca.com.ar/OEP"
	soapNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	maxSOAPBody   = 1 << 20
)

var (
	ErrQuoteUnavailable    = errors.New("No se pudo obtener la cotización")
	ErrLabelUnavailable    = errors.New("No se pudo generar la etiqueta")
	ErrTrackingUnavailable = errors.New("No se pudo obtener información de seguimiento")
)

// SOAPFault is returned when OCA answers with a soap:Fault.
type SOAPFault struct {
	Code   string
	Reason string
}

func (f *SOAPFault) Error() string {
	return fmt.Sprintf("oca soap fault %s: %s", f.Code, f.Reason)
}

type OCAConfig struct {
	URL              string
	User             string
	Password         string
	CUIT             string
	ClientID         string
	Operativa        string
	OriginPostalCode string
	Retry            retry.Config
	HTTPClient       *http.Client
}

type OCA struct {
	cfg        OCAConfig
	httpClient *http.Client
}

func NewOCA(cfg OCAConfig) *OCA {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultOCAURL
	}
	if strings.TrimSpace(cfg.Operativa) == "" {
		cfg.Operativa = DefaultOperativa
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(20 * time.Second)
	}
	return &OCA{cfg: cfg, httpClient: httpClient}
}

func (c *OCA) Name() string {
	return models.DefaultShippingProvider
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapNS  string   `xml:"xmlns:soapenv,attr"`
	OepNS   string   `xml:"xmlns:oep,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

// soapBody marshals its payload under the payload's own XMLName.
type soapBody struct {
	Payload any
}

type tarifarRequest struct {
	XMLName          xml.Name `xml:"oep:Tarifar_Envio_Corporativo"`
	Usuario          string   `xml:"oep:Usuario"`
	Clave            string   `xml:"oep:Clave"`
	CUIT             string   `xml:"oep:CUIT"`
	Operativa        string   `xml:"oep:Operativa"`
	CPOrigen         string   `xml:"oep:CPOrigen"`
	CPDestino        string   `xml:"oep:CPDestino"`
	Peso             string   `xml:"oep:Peso"`
	Volumen          string   `xml:"oep:Volumen"`
	ValorDeclarado   string   `xml:"oep:ValorDeclarado"`
	CantidadPaquetes int      `xml:"oep:CantidadPaquetes"`
}

type envio struct {
	NumeroOperacion  string `xml:"oep:NumeroOperacion"`
	Nombre           string `xml:"oep:NombreApellidoDestinatario"`
	Calle            string `xml:"oep:CalleDestinatario"`
	CodigoPostal     string `xml:"oep:CodigoPostalDestinatario"`
	Localidad        string `xml:"oep:LocalidadDestinatario"`
	Provincia        string `xml:"oep:ProvinciaDestinatario"`
	Telefono         string `xml:"oep:TelefonoDestinatario"`
	Email            string `xml:"oep:EmailDestinatario"`
	CantidadPaquetes int    `xml:"oep:CantidadPaquetes"`
	Peso             string `xml:"oep:Peso"`
	ValorDeclarado   string `xml:"oep:ValorDeclarado"`
	Observaciones    string `xml:"oep:Observaciones"`
}

type ingresoRequest struct {
	XMLName   xml.Name `xml:"oep:IngresoORMultiplesRetiros"`
	Usuario   string   `xml:"oep:Usuario"`
	Clave     string   `xml:"oep:Clave"`
	IdCliente string   `xml:"oep:IdCliente"`
	Envios    []envio  `xml:"oep:Envios>oep:Envio"`
}

type trackingRequest struct {
	XMLName             xml.Name `xml:"oep:Tracking_Pieza"`
	Pieza               string   `xml:"oep:Pieza"`
	NroDocumentoCliente string   `xml:"oep:NroDocumentoCliente"`
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (c *OCA) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.OriginPostalCode == "" {
		req.OriginPostalCode = c.cfg.OriginPostalCode
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	operativa := req.Operativa
	if operativa == "" {
		operativa = c.cfg.Operativa
	}
	packages := req.Packages
	if packages <= 0 {
		packages = 1
	}

	resp, err := c.call(ctx, "Tarifar_Envio_Corporativo", tarifarRequest{
		Usuario:          c.cfg.User,
		Clave:            c.cfg.Password,
		CUIT:             c.cfg.CUIT,
		Operativa:        operativa,
		CPOrigen:         req.OriginPostalCode,
		CPDestino:        req.DestinationPostalCode,
		Peso:             formatFloat(req.Weight),
		Volumen:          formatFloat(req.Volume),
		ValorDeclarado:   req.DeclaredValue.StringFixed(2),
		CantidadPaquetes: packages,
	})
	if err != nil {
		return nil, fmt.Errorf("oca quote: %w", err)
	}

	total := resp.first("Total")
	if total == "" {
		return nil, ErrQuoteUnavailable
	}
	price, err := money.Parse(total)
	if err != nil {
		return nil, fmt.Errorf("oca quote: %w", err)
	}
	return &Quote{Price: price, DeliveryTime: resp.first("PlazoEntrega")}, nil
}

func (c *OCA) CreateLabel(ctx context.Context, req LabelRequest) (*Label, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	packages := req.Packages
	if packages <= 0 {
		packages = 1
	}

	resp, err := c.call(ctx, "IngresoORMultiplesRetiros", ingresoRequest{
		Usuario:   c.cfg.User,
		Clave:     c.cfg.Password,
		IdCliente: c.cfg.ClientID,
		Envios: []envio{{
			NumeroOperacion:  req.OrderID,
			Nombre:           req.RecipientName,
			Calle:            req.RecipientAddress,
			CodigoPostal:     req.PostalCode,
			Localidad:        req.City,
			Provincia:        req.Province,
			Telefono:         req.Phone,
			Email:            req.Email,
			CantidadPaquetes: packages,
			Peso:             formatFloat(req.Weight),
			ValorDeclarado:   req.DeclaredValue.StringFixed(2),
			Observaciones:    req.Observations,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("oca label: %w", err)
	}

	number := resp.first("NumeroEnvio")
	if number == "" {
		return nil, ErrLabelUnavailable
	}
	return &Label{TrackingNumber: number, Label: resp.first("Etiqueta")}, nil
}

func (c *OCA) Track(ctx context.Context, trackingNumber, document string) (*Tracking, error) {
	if err := validateTrackingNumber(trackingNumber); err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, "Tracking_Pieza", trackingRequest{
		Pieza:               strings.TrimSpace(trackingNumber),
		NroDocumentoCliente: document,
	})
	if err != nil {
		return nil, fmt.Errorf("oca tracking: %w", err)
	}
	if !resp.hasResult {
		return nil, ErrTrackingUnavailable
	}

	status := resp.first("Estado")
	if status == "" {
		status = "Desconocido"
	}
	return &Tracking{Status: status, Events: resp.events}, nil
}

func (c *OCA) call(ctx context.Context, operation string, payload any) (*soapResponse, error) {
	body, err := xml.Marshal(soapEnvelope{
		SoapNS: soapNamespace,
		OepNS:  ocaNamespace,
		Body:   soapBody{Payload: payload},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", operation, err)
	}
	body = append([]byte(xml.Header), body...)

	var parsed *soapResponse
	err = retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/xml;charset=UTF-8")
		req.Header.Set("SOAPAction", fmt.Sprintf("%q", ocaNamespace+"/"+operation))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSOAPBody))
		if err != nil {
			return err
		}

		// Faults come back as 500 but are not worth retrying.
		result, parseErr := parseSOAPResponse(raw, operation+"Result")
		var fault *SOAPFault
		if errors.As(parseErr, &fault) {
			return fault
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &retry.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		}
		if parseErr != nil {
			return parseErr
		}
		parsed = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

type soapResponse struct {
	hasResult bool
	values    map[string]string
	events    []Event
}

func (r *soapResponse) first(name string) string {
	return r.values[name]
}

type ocaEvent struct {
	Fecha       string `xml:"Fecha"`
	Descripcion string `xml:"Descripcion"`
	Sucursal    string `xml:"Sucursal"`
}

type faultElement struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

var scalarElements = map[string]bool{
	"Total":        true,
	"PlazoEntrega": true,
	"NumeroEnvio":  true,
	"Etiqueta":     true,
	"Estado":       true,
}

// parseSOAPResponse walks the envelope and keeps the first value of each
// known element, every Evento, and any soap:Fault.
func parseSOAPResponse(raw []byte, resultElement string) (*soapResponse, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	result := &soapResponse{values: make(map[string]string)}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid soap response: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch name := start.Name.Local; {
		case name == "Fault":
			var fault faultElement
			if err := decoder.DecodeElement(&fault, &start); err != nil {
				return nil, fmt.Errorf("invalid soap fault: %w", err)
			}
			return nil, &SOAPFault{Code: strings.TrimSpace(fault.Code), Reason: strings.TrimSpace(fault.String)}
		case name == resultElement:
			result.hasResult = true
		case name == "Evento":
			var ev ocaEvent
			if err := decoder.DecodeElement(&ev, &start); err != nil {
				return nil, fmt.Errorf("invalid tracking event: %w", err)
			}
			result.events = append(result.events, Event{
				Date:        strings.TrimSpace(ev.Fecha),
				Description: strings.TrimSpace(ev.Descripcion),
				Location:    strings.TrimSpace(ev.Sucursal),
			})
		case scalarElements[name]:
			var value string
			if err := decoder.DecodeElement(&value, &start); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", name, err)
			}
			if _, seen := result.values[name]; !seen {
				result.values[name] = strings.TrimSpace(value)
			}
		}
	}
	return result, nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
