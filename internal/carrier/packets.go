package carrier

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

type packetLabelPdfRequest struct {
	XMLName     xml.Name `xml:"packetLabelPdf"`
	APIPassword string   `xml:"apiPassword"`
	PacketID    string   `xml:"packetId"`
	Format      string   `xml:"format"`
	Offset      int      `xml:"offset"`
}

type packetsLabelsPdfRequest struct {
	XMLName     xml.Name `xml:"packetsLabelsPdf"`
	APIPassword string   `xml:"apiPassword"`
	PacketIDs   []string `xml:"packetIds>id"`
	Format      string   `xml:"format"`
	Offset      int      `xml:"offset"`
}

// PacketAttributes describes a new shipment. AddressID is the pickup point
// or, for home delivery, the carrier id.
type PacketAttributes struct {
	Number    string  `xml:"number"`
	Name      string  `xml:"name"`
	Surname   string  `xml:"surname"`
	Email     string  `xml:"email,omitempty"`
	Phone     string  `xml:"phone,omitempty"`
	AddressID string  `xml:"addressId"`
	Value     float64 `xml:"value"`
	Currency  string  `xml:"currency,omitempty"`
	Weight    float64 `xml:"weight"`
	Eshop     string  `xml:"eshop,omitempty"`
	Street    string  `xml:"street,omitempty"`
	City      string  `xml:"city,omitempty"`
	Zip       string  `xml:"zip,omitempty"`
	Country   string  `xml:"country,omitempty"`
}

type createPacketRequest struct {
	XMLName     xml.Name         `xml:"createPacket"`
	APIPassword string           `xml:"apiPassword"`
	Attributes  PacketAttributes `xml:"packetAttributes"`
}

type cancelPacketRequest struct {
	XMLName     xml.Name `xml:"cancelPacket"`
	APIPassword string   `xml:"apiPassword"`
	PacketID    string   `xml:"packetId"`
}

// Packet is the carrier's answer to createPacket.
type Packet struct {
	ID          string `xml:"id"`
	Barcode     string `xml:"barcode"`
	BarcodeText string `xml:"barcodeText"`
}

type envelope struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status"`
	Fault   string   `xml:"fault"`
	String  string   `xml:"string"`
	Detail  struct {
		Inner string `xml:",innerxml"`
	} `xml:"detail"`
	Result Packet `xml:"result"`
}

func (e *envelope) fault() *FaultError {
	if !strings.EqualFold(strings.TrimSpace(e.Status), "fault") {
		return nil
	}
	f := &FaultError{
		Fault:   strings.TrimSpace(e.Fault),
		Message: strings.TrimSpace(e.String),
		Detail:  strings.TrimSpace(e.Detail.Inner),
	}
	if f.Fault == "" {
		f.Fault = "unknown"
	}
	return f
}

// PacketLabelPdf fetches the label of a single shipment.
func (c *Client) PacketLabelPdf(ctx context.Context, packetID, format string, offset int) ([]byte, error) {
	if strings.TrimSpace(packetID) == "" {
		return nil, fmt.Errorf("%w: empty packet id", ErrInvalidRequest)
	}

	resp, err := c.post(ctx, "packetLabelPdf", packetLabelPdfRequest{
		APIPassword: c.cfg.APIPassword,
		PacketID:    packetID,
		Format:      c.format(format),
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	return DecodeLabel(resp.StatusCode, resp.ContentType, resp.Body)
}

// PacketsLabelsPdf fetches one combined document for several shipments.
func (c *Client) PacketsLabelsPdf(ctx context.Context, packetIDs []string, format string, offset int) ([]byte, error) {
	if len(packetIDs) == 0 {
		return nil, fmt.Errorf("%w: no packet ids", ErrInvalidRequest)
	}

	resp, err := c.post(ctx, "packetsLabelsPdf", packetsLabelsPdfRequest{
		APIPassword: c.cfg.APIPassword,
		PacketIDs:   packetIDs,
		Format:      c.format(format),
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	return DecodeLabel(resp.StatusCode, resp.ContentType, resp.Body)
}

// CreatePacket registers a shipment and returns its carrier id.
func (c *Client) CreatePacket(ctx context.Context, attrs PacketAttributes) (*Packet, error) {
	if attrs.Number == "" || attrs.AddressID == "" {
		return nil, fmt.Errorf("%w: number and address id are required", ErrInvalidRequest)
	}
	if attrs.Eshop == "" {
		attrs.Eshop = c.cfg.Eshop
	}
	if attrs.Weight <= 0 {
		attrs.Weight = c.cfg.DefaultWeightKg
	}

	resp, err := c.post(ctx, "createPacket", createPacketRequest{
		APIPassword: c.cfg.APIPassword,
		Attributes:  attrs,
	})
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if env.Result.ID == "" {
		return nil, &FormatError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Preview:     preview(resp.Body),
		}
	}
	return &env.Result, nil
}

// CancelPacket cancels a shipment that has not been handed over yet.
func (c *Client) CancelPacket(ctx context.Context, packetID string) error {
	if strings.TrimSpace(packetID) == "" {
		return fmt.Errorf("%w: empty packet id", ErrInvalidRequest)
	}

	resp, err := c.post(ctx, "cancelPacket", cancelPacketRequest{
		APIPassword: c.cfg.APIPassword,
		PacketID:    packetID,
	})
	if err != nil {
		return err
	}

	_, err = decodeEnvelope(resp)
	return err
}

func decodeEnvelope(resp *response) (*envelope, error) {
	var env envelope
	if err := xml.Unmarshal(resp.Body, &env); err != nil {
		return nil, &FormatError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Preview:     preview(resp.Body),
			Err:         err,
		}
	}
	if f := env.fault(); f != nil {
		return nil, f
	}
	if !strings.EqualFold(strings.TrimSpace(env.Status), "ok") {
		return nil, &FormatError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Preview:     preview(resp.Body),
		}
	}
	return &env, nil
}

func (c *Client) format(format string) string {
	if format == "" {
		return c.cfg.LabelFormat
	}
	return format
}
