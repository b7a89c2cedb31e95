package shipx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Service codes for the two delivery methods the shop offers.
const (
	ServiceLockerStandard  = "inpost_locker_standard"
	ServiceCourierStandard = "inpost_courier_standard"
)

// FlexID accepts identifiers the API returns either as JSON numbers or strings.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("shipx: id is neither string nor number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("shipx: invalid numeric id %q", n.String())
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

type Address struct {
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number"`
	City           string `json:"city"`
	PostCode       string `json:"post_code"`
	CountryCode    string `json:"country_code"`
}

type Party struct {
	Name        string   `json:"name,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     *Address `json:"address,omitempty"`
}

type Dimensions struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
	Unit   string `json:"unit"`
}

type Weight struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// Parcel uses a locker template or explicit dimensions, never both.
type Parcel struct {
	Template   string      `json:"template,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Weight     *Weight     `json:"weight,omitempty"`
}

type CreateShipmentRequest struct {
	Receiver         Party             `json:"receiver"`
	Sender           Party             `json:"sender"`
	Parcels          []Parcel          `json:"parcels"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
	Service          string            `json:"service"`
	Reference        string            `json:"reference"`
	Comments         string            `json:"comments,omitempty"`
}

type Offer struct {
	ID      FlexID `json:"id"`
	Status  string `json:"status"`
	Service struct {
		ID string `json:"id"`
	} `json:"service"`
}

type Shipment struct {
	ID             FlexID  `json:"id"`
	Status         string  `json:"status"`
	TrackingNumber string  `json:"tracking_number"`
	Reference      string  `json:"reference"`
	Service        string  `json:"service"`
	SelectedOffer  *Offer  `json:"selected_offer"`
	Offers         []Offer `json:"offers"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// SelectedOfferID returns the carrier's chosen offer, falling back to the only selected entry in Offers.
func (s *Shipment) SelectedOfferID() string {
	if s == nil {
		return ""
	}
	if s.SelectedOffer != nil && s.SelectedOffer.ID != "" {
		return s.SelectedOffer.ID.String()
	}
	for _, offer := range s.Offers {
		if offer.Status == "selected" && offer.ID != "" {
			return offer.ID.String()
		}
	}
	return ""
}

// Label is the raw document returned by the label endpoint.
type Label struct {
	Data        []byte
	ContentType string
	Format      string
}
